package keizu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

type transformRig struct {
	w *World
	h *Hierarchy[Parent]
	p *Propagator[Parent]
}

func newTransformRig(t *testing.T) *transformRig {
	t.Helper()
	w := newTestWorld(t, Tracked[Parent](), Tracked[Transform]())
	h, err := NewHierarchy[Parent](w)
	require.NoError(t, err)
	p, err := NewPropagator(w, h)
	require.NoError(t, err)
	return &transformRig{w: w, h: h, p: p}
}

func (r *transformRig) tick() int {
	r.w.Maintain()
	r.h.Update()
	return r.p.Update()
}

func globalOf(t *testing.T, w *World, e Entity) Affine {
	t.Helper()
	tr, err := Get[Transform](w, e)
	require.NoError(t, err)
	return tr.Global()
}

func assertMapsOrigin(t *testing.T, m Affine, x, y float64) {
	t.Helper()
	gx, gy := m.Apply(0, 0)
	assert.InDelta(t, x, gx, eps)
	assert.InDelta(t, y, gy, eps)
}

func TestAffine(t *testing.T) {
	m := Translate(3, 4).Mul(Rotate(math.Pi / 2)).Mul(Scale(2, 2))
	x, y := m.Apply(1, 0)
	assert.InDelta(t, 3.0, x, eps)
	assert.InDelta(t, 6.0, y, eps)

	back := m.Invert().Mul(m)
	assert.True(t, back.ApproxEqual(Identity(), eps))
	assert.Equal(t, Identity(), Scale(0, 1).Invert(), "singular matrices invert to identity")
}

func TestPropagatorRequiresTrackedTransform(t *testing.T) {
	w := newTestWorld(t, Tracked[Parent]())
	h, err := NewHierarchy[Parent](w)
	require.NoError(t, err)
	_, err = NewPropagator(w, h)
	assert.ErrorIs(t, err, ErrNotTracked)
}

func TestPropagatorParentAndChild(t *testing.T) {
	rig := newTransformRig(t)
	w := rig.w
	a := w.Spawn(NewTransform(Translate(-5, -7).Mul(Rotate(math.Pi))))
	b := w.Spawn(NewTransform(Translate(5, 3)), Parent{Entity: a})
	rig.tick()

	assertMapsOrigin(t, globalOf(t, w, a), -5, -7)
	assertMapsOrigin(t, globalOf(t, w, b), -10, -10)

	require.NoError(t, w.Despawn(a))
	rig.tick()
	assertMapsOrigin(t, globalOf(t, w, b), 5, 3)
}

func TestPropagatorIsIdempotent(t *testing.T) {
	rig := newTransformRig(t)
	w := rig.w
	a := w.Spawn(NewTransform(Translate(1, 0)))
	b := w.Spawn(NewTransform(Translate(0, 1)), Parent{Entity: a})
	w.Spawn(NewTransform(Translate(0, 1)), Parent{Entity: b})
	assert.Equal(t, 3, rig.tick())

	before := globalOf(t, w, b)
	assert.Zero(t, rig.tick(), "no changes means no writes")
	assert.Equal(t, before, globalOf(t, w, b))
}

func TestPropagatorParentChangeReachesDescendants(t *testing.T) {
	rig := newTransformRig(t)
	w := rig.w
	a := w.Spawn(NewTransform(Identity()))
	b := w.Spawn(NewTransform(Translate(1, 0)), Parent{Entity: a})
	c := w.Spawn(NewTransform(Translate(1, 0)), Parent{Entity: b})
	unrelated := w.Spawn(NewTransform(Translate(9, 9)))
	rig.tick()
	assertMapsOrigin(t, globalOf(t, w, c), 2, 0)

	require.NoError(t, Modify(w, a, func(tr *Transform) { tr.Local = Translate(0, 10) }))
	assert.Equal(t, 3, rig.tick())
	assertMapsOrigin(t, globalOf(t, w, b), 1, 10)
	assertMapsOrigin(t, globalOf(t, w, c), 2, 10)
	assertMapsOrigin(t, globalOf(t, w, unrelated), 9, 9)
}

func TestPropagatorDespawnedAncestorResetsSubtree(t *testing.T) {
	rig := newTransformRig(t)
	w := rig.w
	root := w.Spawn(NewTransform(Translate(100, 0).Mul(Rotate(math.Pi / 3))))
	a := w.Spawn(NewTransform(Translate(1, 0)), Parent{Entity: root})
	b := w.Spawn(NewTransform(Translate(0, 2).Mul(Scale(2, 2))), Parent{Entity: a})
	c := w.Spawn(NewTransform(Translate(3, 3)), Parent{Entity: b})
	d := w.Spawn(NewTransform(Rotate(math.Pi)), Parent{Entity: a})
	rig.tick()
	assertMapsOrigin(t, globalOf(t, w, a), 100.5, math.Sqrt(3)/2)

	require.NoError(t, w.Despawn(root))
	rig.tick()
	for _, e := range []Entity{a, b, c, d} {
		tr, err := Get[Transform](w, e)
		require.NoError(t, err)
		assert.True(t, tr.Global().ApproxEqual(tr.Local, eps), "entity %s: global %v, local %v", e, tr.Global(), tr.Local)
	}
	assert.Empty(t, rig.h.All())
}

func TestPropagatorWriteAfterInsertInSameTick(t *testing.T) {
	rig := newTransformRig(t)
	w := rig.w
	w.Maintain()
	a := w.Spawn(NewTransform(Translate(1, 0)))
	b := w.Spawn(NewTransform(Identity()), Parent{Entity: a})
	rig.h.Update()
	rig.p.Update()
	assertMapsOrigin(t, globalOf(t, w, b), 1, 0)

	require.NoError(t, Modify(w, b, func(tr *Transform) { tr.Local = Translate(0, 5) }))
	rig.tick()
	assertMapsOrigin(t, globalOf(t, w, b), 1, 5)

	_, err := Remove[Transform](w, b)
	require.NoError(t, err)
	require.NoError(t, Insert(w, b, NewTransform(Identity())))
	rig.h.Update()
	rig.p.Update()
	require.NoError(t, Modify(w, b, func(tr *Transform) { tr.Local = Translate(0, 7) }))
	rig.tick()
	assertMapsOrigin(t, globalOf(t, w, b), 1, 7)
}

func TestPropagatorChildChangeOnly(t *testing.T) {
	rig := newTransformRig(t)
	w := rig.w
	a := w.Spawn(NewTransform(Translate(5, 0)))
	b := w.Spawn(NewTransform(Identity()), Parent{Entity: a})
	c := w.Spawn(NewTransform(Identity()), Parent{Entity: b})
	rig.tick()

	require.NoError(t, Modify(w, c, func(tr *Transform) { tr.Local = Translate(0, 1) }))
	assert.Equal(t, 1, rig.tick())
	assertMapsOrigin(t, globalOf(t, w, c), 5, 1)
}

func TestPropagatorReparent(t *testing.T) {
	rig := newTransformRig(t)
	w := rig.w
	left := w.Spawn(NewTransform(Translate(-10, 0)))
	right := w.Spawn(NewTransform(Translate(10, 0)))
	child := w.Spawn(NewTransform(Translate(0, 1)), Parent{Entity: left})
	rig.tick()
	assertMapsOrigin(t, globalOf(t, w, child), -10, 1)

	require.NoError(t, Modify(w, child, func(p *Parent) { p.Entity = right }))
	rig.tick()
	assertMapsOrigin(t, globalOf(t, w, child), 10, 1)
}

func TestPropagatorParentWithoutTransform(t *testing.T) {
	rig := newTransformRig(t)
	w := rig.w
	group := w.Spawn()
	child := w.Spawn(NewTransform(Translate(2, 3)), Parent{Entity: group})
	rig.tick()
	assertMapsOrigin(t, globalOf(t, w, child), 2, 3)
}

func TestPropagatorRemovedParentComponentResetsGlobal(t *testing.T) {
	rig := newTransformRig(t)
	w := rig.w
	a := w.Spawn(NewTransform(Translate(100, 0)))
	b := w.Spawn(NewTransform(Translate(1, 1)), Parent{Entity: a})
	rig.tick()
	assertMapsOrigin(t, globalOf(t, w, b), 101, 1)

	_, err := Remove[Parent](w, b)
	require.NoError(t, err)
	rig.tick()
	assertMapsOrigin(t, globalOf(t, w, b), 1, 1)
}

func TestPropagatorTransformInsertedLater(t *testing.T) {
	rig := newTransformRig(t)
	w := rig.w
	a := w.Spawn(NewTransform(Translate(4, 0)))
	b := w.Spawn(Parent{Entity: a})
	rig.tick()

	require.NoError(t, Insert(w, b, NewTransform(Translate(0, 4))))
	rig.tick()
	assertMapsOrigin(t, globalOf(t, w, b), 4, 4)
}

func TestPropagatorPicksUpExistingTransforms(t *testing.T) {
	w := newTestWorld(t, Tracked[Parent](), Tracked[Transform]())
	a := w.Spawn(NewTransform(Translate(1, 2)))
	b := w.Spawn(NewTransform(Translate(1, 2)), Parent{Entity: a})

	s := NewSchedule(w)
	_, _, err := InstallTransforms[Parent](s)
	require.NoError(t, err)
	require.NoError(t, s.Tick())
	assertMapsOrigin(t, globalOf(t, w, b), 2, 4)
}
