package keizu

import (
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Propagator keeps Transform globals in step with the hierarchy over P:
// a tracked entity's global is its parent's global times its own local, and
// anything outside the hierarchy has global equal to local.
//
// Only entities touched this tick are recomputed: those with a hierarchy
// change, those whose Transform was inserted, modified or removed, and every
// tracked descendant of one of those. Globals are written without marking
// the Transform dirty, so a second Update with no new changes does nothing.
type Propagator[P ParentComponent] struct {
	world      *World
	hierarchy  *Hierarchy[P]
	transforms *column[Transform]
	log        zerolog.Logger
	touched    map[Entity]struct{}
	seeds      []Entity
	hierReader ReaderID
	reader     ReaderID
}

// NewPropagator creates a Propagator over h. Transform must be tracked.
// Entities that already hold a Transform are recomputed by the first Update.
func NewPropagator[P ParentComponent](w *World, h *Hierarchy[P]) (*Propagator[P], error) {
	c := columnOf[Transform](w)
	if c == nil || !c.tracked() {
		return nil, eris.Wrap(ErrNotTracked, "component keizu.Transform")
	}
	p := &Propagator[P]{
		world:      w,
		hierarchy:  h,
		transforms: c,
		hierReader: h.Track(),
		reader:     c.changes.channel.Register(),
		touched:    make(map[Entity]struct{}),
		log:        w.systemLogger("propagator"),
	}
	for slot := c.present.next(0); slot >= 0; slot = c.present.next(slot + 1) {
		if e, ok := w.entityAt(uint32(slot)); ok {
			p.seeds = append(p.seeds, e)
		}
	}
	return p, nil
}

// Update recomputes the globals touched since the previous Update and
// returns how many were written. Run it after the hierarchy's Update in the
// same tick.
func (p *Propagator[P]) Update() int {
	clear(p.touched)
	written := 0
	for _, e := range p.seeds {
		p.touched[e] = struct{}{}
	}
	p.seeds = nil

	for _, ev := range p.hierarchy.Poll(&p.hierReader) {
		switch ev.Kind {
		case HierarchyRemoved:
			if t := p.transformOf(ev.Entity); t != nil {
				t.global = t.Local
				written++
			}
		case ModifiedOrCreated:
			p.touched[ev.Entity] = struct{}{}
		}
	}
	for _, ev := range p.transforms.changes.channel.Read(&p.reader) {
		p.touched[ev.Entity] = struct{}{}
	}
	if len(p.touched) == 0 {
		return written
	}

	// Entities outside the hierarchy take their local as global and hand the
	// change down to any tracked children.
	sorted := p.hierarchy.All()
	start := len(sorted)
	var children []Entity
	for e := range p.touched {
		if i, ok := p.hierarchy.Index(e); ok {
			start = min(start, i)
			continue
		}
		if t := p.transformOf(e); t != nil {
			t.global = t.Local
			written++
		}
		children = append(children, p.hierarchy.Children(e)...)
	}
	for _, c := range children {
		p.touched[c] = struct{}{}
		if i, ok := p.hierarchy.Index(c); ok {
			start = min(start, i)
		}
	}

	for i := start; i < len(sorted); i++ {
		e := sorted[i]
		if _, hit := p.touched[e]; !hit {
			continue
		}
		if t := p.transformOf(e); t != nil {
			parentGlobal := Identity()
			if parent, ok := p.hierarchy.Parent(e); ok {
				if pt := p.transformOf(parent); pt != nil {
					parentGlobal = pt.global
				}
			}
			t.global = parentGlobal.Mul(t.Local)
			written++
		}
		for _, c := range p.hierarchy.Children(e) {
			p.touched[c] = struct{}{}
		}
	}

	p.log.Trace().
		Int("touched", len(p.touched)).
		Int("written", written).
		Msg("transforms propagated")
	return written
}

func (p *Propagator[P]) transformOf(e Entity) *Transform {
	if !p.world.Alive(e) || !p.transforms.has(e.ID) {
		return nil
	}
	return p.transforms.get(e.ID)
}
