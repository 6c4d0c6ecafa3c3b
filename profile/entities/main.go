// Profiling:
// go build ./profile/entities
// go tool pprof -http=":8000" -nodefraction=0.001 ./entities mem.pprof

package main

import (
	"github.com/edwinsyarief/keizu"
	"github.com/pkg/profile"
)

type velocity struct {
	X float64
	Y float64
}

func main() {
	rounds := 50
	iters := 1000
	entities := 1000
	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	run(rounds, iters, entities)
	p.Stop()
}

// run spawns a parent with a row of children every iteration, lets the
// hierarchy pick them up and despawns everything again.
func run(rounds, iters, numEntities int) {
	cfg := keizu.DefaultConfig()
	cfg.LogLevel = "warn"
	cfg.InitialCapacity = numEntities
	for range rounds {
		w := keizu.NewWorld(cfg, keizu.WithTracked(
			keizu.Tracked[keizu.Parent](),
			keizu.Tracked[keizu.Transform](),
		))
		keizu.RegisterComponent[velocity](w)
		schedule := keizu.NewSchedule(w)
		if _, _, err := keizu.InstallTransforms[keizu.Parent](schedule); err != nil {
			panic(err)
		}
		query := keizu.NewFilter2[keizu.Transform, velocity](w)
		children := keizu.NewBuilder2[keizu.Parent, velocity](w)
		spawned := make([]keizu.Entity, 0, numEntities)

		for range iters {
			root := w.Spawn(keizu.NewTransform(keizu.Identity()), velocity{X: 1})
			spawned = children.NewEntities(numEntities-1, keizu.Parent{Entity: root}, velocity{Y: 1}, spawned[:0])
			for _, e := range spawned {
				_ = keizu.Insert(w, e, keizu.NewTransform(keizu.Translate(1, 0)))
			}
			if err := schedule.Tick(); err != nil {
				panic(err)
			}
			entities := []keizu.Entity{}
			query.Reset()
			for query.Next() {
				entities = append(entities, query.Entity())
				t, v := query.GetMut()
				t.Get().Local = t.Get().Local.Mul(keizu.Translate(v.Get().X, v.Get().Y))
				t.Release()
			}
			for _, e := range entities {
				_ = w.Despawn(e)
			}
			if err := schedule.Tick(); err != nil {
				panic(err)
			}
		}
	}
}
