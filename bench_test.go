package keizu

import (
	"testing"

	"github.com/rs/zerolog"
)

func newBenchWorld(b *testing.B, size int) *World {
	b.Helper()
	cfg := DefaultConfig()
	cfg.InitialCapacity = size
	return NewWorld(cfg, WithLogger(zerolog.Nop()), WithTracked(Tracked[Parent](), Tracked[Transform](), Tracked[Health]()))
}

func BenchmarkWorldSpawn(b *testing.B) {
	for _, size := range benchSizes {
		b.Run(sizeName(size), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				b.StopTimer()
				w := newBenchWorld(b, size)
				RegisterComponent[Position](w)
				b.StartTimer()
				for range size {
					w.Spawn(Position{})
				}
			}
		})
	}
}

func BenchmarkWorldDespawn(b *testing.B) {
	for _, size := range benchSizes {
		b.Run(sizeName(size), func(b *testing.B) {
			b.ReportAllocs()
			entities := make([]Entity, size)
			for b.Loop() {
				b.StopTimer()
				w := newBenchWorld(b, size)
				for i := range entities {
					entities[i] = w.Spawn(Health{})
				}
				b.StartTimer()
				for _, e := range entities {
					_ = w.Despawn(e)
				}
			}
		})
	}
}

func BenchmarkFilterIterate(b *testing.B) {
	for _, size := range benchSizes {
		b.Run(sizeName(size), func(b *testing.B) {
			w := newBenchWorld(b, size)
			RegisterComponent[Position](w)
			RegisterComponent[Velocity](w)
			for range size {
				w.Spawn(Position{}, Velocity{X: 1, Y: 1})
			}
			query := NewFilter2[Position, Velocity](w)
			b.ReportAllocs()
			for b.Loop() {
				query.Reset()
				for query.Next() {
					p, v := query.Get()
					p.X += v.X
					p.Y += v.Y
				}
			}
		})
	}
}

func BenchmarkModifyMaintain(b *testing.B) {
	for _, size := range benchSizes {
		b.Run(sizeName(size), func(b *testing.B) {
			w := newBenchWorld(b, size)
			for range size {
				w.Spawn(Health{})
			}
			r, err := Track[Health](w)
			if err != nil {
				b.Fatal(err)
			}
			query := NewFilter[Health](w)
			b.ReportAllocs()
			for b.Loop() {
				query.Reset()
				for query.Next() {
					ref := query.GetMut()
					ref.Get().HP++
					ref.Release()
				}
				w.Maintain()
				Poll[Health](w, &r)
			}
		})
	}
}

func BenchmarkHierarchyInsert(b *testing.B) {
	for _, size := range benchSizes {
		b.Run(sizeName(size), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				b.StopTimer()
				w := newBenchWorld(b, size)
				h, err := NewHierarchy[Parent](w)
				if err != nil {
					b.Fatal(err)
				}
				parent := w.Spawn()
				for i := range size {
					child := w.Spawn(Parent{Entity: parent})
					if i%4 == 0 {
						parent = child
					}
				}
				b.StartTimer()
				w.Maintain()
				h.Update()
			}
		})
	}
}

func BenchmarkPropagateRootChange(b *testing.B) {
	for _, size := range benchSizes {
		b.Run(sizeName(size), func(b *testing.B) {
			w := newBenchWorld(b, size)
			s := NewSchedule(w)
			if _, _, err := InstallTransforms[Parent](s); err != nil {
				b.Fatal(err)
			}
			root := w.Spawn(NewTransform(Identity()))
			parent := root
			for i := range size {
				child := w.Spawn(NewTransform(Translate(1, 0)), Parent{Entity: parent})
				if i%8 == 0 {
					parent = child
				}
			}
			if err := s.Tick(); err != nil {
				b.Fatal(err)
			}
			angle := 0.0
			b.ReportAllocs()
			for b.Loop() {
				angle += 0.01
				_ = Modify(w, root, func(t *Transform) { t.Local = Rotate(angle) })
				if err := s.Tick(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
