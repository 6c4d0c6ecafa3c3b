package keizu

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// System is one step of a Schedule.
type System func(w *World) error

type namedSystem struct {
	name string
	run  System
}

// Schedule runs a fixed list of systems once per tick, in the order they were
// added. Every tick starts with World.Maintain so systems see the changes
// made during the previous tick.
type Schedule struct {
	world   *World
	systems []namedSystem
	log     zerolog.Logger
	tick    uint64
}

// NewSchedule creates an empty Schedule for w.
func NewSchedule(w *World) *Schedule {
	return &Schedule{world: w, log: w.systemLogger("schedule")}
}

// Add appends a system. Names only appear in logs and errors.
func (s *Schedule) Add(name string, sys System) *Schedule {
	s.systems = append(s.systems, namedSystem{name: name, run: sys})
	return s
}

// Tick runs one tick. The first failing system stops the tick and its error
// is returned wrapped with the system name.
func (s *Schedule) Tick() error {
	start := time.Now()
	s.world.Maintain()
	for _, sys := range s.systems {
		if err := sys.run(s.world); err != nil {
			s.log.Error().Err(err).Str("failed_system", sys.name).Uint64("tick", s.tick).Msg("tick aborted")
			return eris.Wrapf(err, "system %q failed on tick %d", sys.name, s.tick)
		}
	}
	s.log.Debug().
		Uint64("tick", s.tick).
		Int("systems", len(s.systems)).
		Dur("elapsed", time.Since(start)).
		Msg("tick complete")
	s.tick++
	return nil
}

// CurrentTick returns the number of ticks completed.
func (s *Schedule) CurrentTick() uint64 {
	return s.tick
}

// InstallTransforms adds the hierarchy update and transform propagation over
// P to s, in that order, and returns both so callers can read from them.
func InstallTransforms[P ParentComponent](s *Schedule) (*Hierarchy[P], *Propagator[P], error) {
	h, err := NewHierarchy[P](s.world)
	if err != nil {
		return nil, nil, err
	}
	p, err := NewPropagator(s.world, h)
	if err != nil {
		return nil, nil, err
	}
	s.Add("hierarchy", func(*World) error {
		h.Update()
		return nil
	})
	s.Add("transform_propagation", func(*World) error {
		p.Update()
		return nil
	})
	return h, p, nil
}
