// Profiling:
// go build ./profile/propagation
// go tool pprof -http=":8000" -nodefraction=0.001 ./propagation cpu.pprof

package main

import (
	"math"

	"github.com/edwinsyarief/keizu"
	"github.com/pkg/profile"
)

func main() {
	rounds := 20
	iters := 1000
	depth := 8
	fanout := 4
	p := profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	run(rounds, iters, depth, fanout)
	p.Stop()
}

// run builds a full tree and then rotates the root every tick, so every
// tick propagates through the whole tree.
func run(rounds, iters, depth, fanout int) {
	cfg := keizu.DefaultConfig()
	cfg.LogLevel = "warn"
	for range rounds {
		w := keizu.NewWorld(cfg, keizu.WithTracked(
			keizu.Tracked[keizu.Parent](),
			keizu.Tracked[keizu.Transform](),
		))
		schedule := keizu.NewSchedule(w)
		if _, _, err := keizu.InstallTransforms[keizu.Parent](schedule); err != nil {
			panic(err)
		}

		root := w.Spawn(keizu.NewTransform(keizu.Identity()))
		level := []keizu.Entity{root}
		for range depth {
			var next []keizu.Entity
			for _, parent := range level {
				for i := range fanout {
					local := keizu.Translate(float64(i), 1).Mul(keizu.Rotate(0.1))
					next = append(next, w.Spawn(keizu.NewTransform(local), keizu.Parent{Entity: parent}))
				}
			}
			level = next
		}

		for i := range iters {
			angle := float64(i) * math.Pi / 180
			if err := keizu.Modify(w, root, func(t *keizu.Transform) {
				t.Local = keizu.Rotate(angle)
			}); err != nil {
				panic(err)
			}
			if err := schedule.Tick(); err != nil {
				panic(err)
			}
		}
	}
}
