package keizu

// Filter iterates over all entities that hold a component of type T, in slot
// order. Filters are cheap to create; each goroutine that iterates needs its
// own Filter, but any number of them may iterate the same World at once.
//
//	query := keizu.NewFilter[Position](w)
//	for query.Next() {
//	    p := query.Get()
//	    // ...
//	}
type Filter[T any] struct {
	world *World
	col   *column[T]
	cur   Entity
	slot  int
	done  bool
}

// NewFilter creates a Filter over T, registering T if needed.
func NewFilter[T any](w *World) *Filter[T] {
	return &Filter[T]{world: w, col: ensureColumn[T](w), slot: -1}
}

// Reset rewinds the filter to the first entity.
func (f *Filter[T]) Reset() {
	f.slot = -1
	f.done = false
}

// Next advances to the next matching entity and reports whether one was
// found.
func (f *Filter[T]) Next() bool {
	if f.done {
		return false
	}
	for {
		f.slot = f.col.present.next(f.slot + 1)
		if f.slot < 0 {
			f.done = true
			return false
		}
		if e, ok := f.world.entityAt(uint32(f.slot)); ok {
			f.cur = e
			return true
		}
	}
}

// Entity returns the current entity.
func (f *Filter[T]) Entity() Entity {
	return f.cur
}

// Get returns read access to the current entity's component.
func (f *Filter[T]) Get() *T {
	return f.col.get(f.cur.ID)
}

// GetMut returns a guard for mutable access to the current entity's
// component; releasing it marks the entity dirty for flagged tracked types.
func (f *Filter[T]) GetMut() RefMut[T] {
	return RefMut[T]{value: f.col.get(f.cur.ID), col: f.col, slot: f.cur.ID}
}

// Count resets the filter and returns the number of matching entities.
func (f *Filter[T]) Count() int {
	f.Reset()
	n := 0
	for f.Next() {
		n++
	}
	f.Reset()
	return n
}

// Filter2 iterates over all entities that hold both A and B.
type Filter2[A, B any] struct {
	base Filter[A]
	colB *column[B]
}

// NewFilter2 creates a Filter2 over A and B.
func NewFilter2[A, B any](w *World) *Filter2[A, B] {
	return &Filter2[A, B]{
		base: Filter[A]{world: w, col: ensureColumn[A](w), slot: -1},
		colB: ensureColumn[B](w),
	}
}

// Reset rewinds the filter to the first entity.
func (f *Filter2[A, B]) Reset() {
	f.base.Reset()
}

// Next advances to the next entity holding both components.
func (f *Filter2[A, B]) Next() bool {
	for f.base.Next() {
		if f.colB.has(f.base.cur.ID) {
			return true
		}
	}
	return false
}

// Entity returns the current entity.
func (f *Filter2[A, B]) Entity() Entity {
	return f.base.cur
}

// Get returns read access to both components of the current entity.
func (f *Filter2[A, B]) Get() (*A, *B) {
	return f.base.Get(), f.colB.get(f.base.cur.ID)
}

// GetMut returns guards for both components of the current entity.
func (f *Filter2[A, B]) GetMut() (RefMut[A], RefMut[B]) {
	slot := f.base.cur.ID
	return f.base.GetMut(), RefMut[B]{value: f.colB.get(slot), col: f.colB, slot: slot}
}

// Count resets the filter and returns the number of entities holding both
// components.
func (f *Filter2[A, B]) Count() int {
	f.Reset()
	n := 0
	for f.Next() {
		n++
	}
	f.Reset()
	return n
}

// OptFilter2 iterates over all entities that hold A; B is fetched when
// present.
type OptFilter2[A, B any] struct {
	base Filter[A]
	colB *column[B]
}

// NewOptFilter2 creates an OptFilter2 with A required and B optional.
func NewOptFilter2[A, B any](w *World) *OptFilter2[A, B] {
	return &OptFilter2[A, B]{
		base: Filter[A]{world: w, col: ensureColumn[A](w), slot: -1},
		colB: ensureColumn[B](w),
	}
}

// Reset rewinds the filter to the first entity.
func (f *OptFilter2[A, B]) Reset() {
	f.base.Reset()
}

// Next advances to the next entity holding A.
func (f *OptFilter2[A, B]) Next() bool {
	return f.base.Next()
}

// Entity returns the current entity.
func (f *OptFilter2[A, B]) Entity() Entity {
	return f.base.cur
}

// Get returns the current entity's A and, when present, its B (nil
// otherwise).
func (f *OptFilter2[A, B]) Get() (*A, *B) {
	slot := f.base.cur.ID
	if !f.colB.has(slot) {
		return f.base.Get(), nil
	}
	return f.base.Get(), f.colB.get(slot)
}
