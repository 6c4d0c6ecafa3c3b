package keizu

import (
	"reflect"
	"sync/atomic"

	"github.com/rotisserie/eris"
)

// Resources holds world-global singletons, at most one per type. Resources
// are stored by pointer: Add(&Clock{}) is fetched with Fetch[Clock].
//
// Besides the plain accessors, Fetch and FetchMut hand out borrow guards
// checked at run time: any number of shared borrows, or one exclusive borrow,
// per resource at a time.
type Resources struct {
	items   []resourceSlot
	types   map[reflect.Type]int
	freeIDs []int
}

type resourceSlot struct {
	value any
	state *borrowState
}

// borrowState counts shared borrows; -1 means exclusively borrowed.
type borrowState struct {
	n atomic.Int32
}

func (s *borrowState) acquireShared() bool {
	for {
		n := s.n.Load()
		if n < 0 {
			return false
		}
		if s.n.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (s *borrowState) acquireExclusive() bool {
	return s.n.CompareAndSwap(0, -1)
}

// Add adds a resource and returns its ID. Panics if the resource is nil or a
// resource of the same type already exists. Freed IDs are reused.
func (r *Resources) Add(res any) int {
	if res == nil {
		panic("keizu: cannot add nil resource")
	}
	t := reflect.TypeOf(res)
	if r.types == nil {
		r.types = make(map[reflect.Type]int)
	}
	if _, ok := r.types[t]; ok {
		panic("keizu: resource of type " + t.String() + " already exists")
	}
	slot := resourceSlot{value: res, state: &borrowState{}}
	var id int
	if n := len(r.freeIDs); n > 0 {
		id = r.freeIDs[n-1]
		r.freeIDs = r.freeIDs[:n-1]
		r.items[id] = slot
	} else {
		r.items = append(r.items, slot)
		id = len(r.items) - 1
	}
	r.types[t] = id
	return id
}

// Has reports whether a resource with the given ID exists.
func (r *Resources) Has(id int) bool {
	return id >= 0 && id < len(r.items) && r.items[id].value != nil
}

// Get returns the resource with the given ID, or nil. It does not borrow.
func (r *Resources) Get(id int) any {
	if !r.Has(id) {
		return nil
	}
	return r.items[id].value
}

// Remove removes the resource with the given ID. Outstanding guards keep
// their pointer but no longer block anything.
func (r *Resources) Remove(id int) {
	if !r.Has(id) {
		return
	}
	delete(r.types, reflect.TypeOf(r.items[id].value))
	r.items[id] = resourceSlot{}
	r.freeIDs = append(r.freeIDs, id)
}

// Len returns the number of resources.
func (r *Resources) Len() int {
	return len(r.types)
}

// Clear removes all resources.
func (r *Resources) Clear() {
	clear(r.items)
	r.items = r.items[:0]
	clear(r.types)
	r.freeIDs = r.freeIDs[:0]
}

// HasResource reports whether a resource of type *T exists, and its ID (-1
// when absent).
func HasResource[T any](r *Resources) (bool, int) {
	if id, ok := r.types[reflect.TypeFor[*T]()]; ok {
		return true, id
	}
	return false, -1
}

// GetResource returns the resource of type *T and its ID, or nil and -1. It
// does not borrow.
func GetResource[T any](r *Resources) (*T, int) {
	if id, ok := r.types[reflect.TypeFor[*T]()]; ok {
		return r.items[id].value.(*T), id
	}
	return nil, -1
}

// Res is a shared borrow of a resource.
type Res[T any] struct {
	value *T
	state *borrowState
}

// Get returns the borrowed resource.
func (b *Res[T]) Get() *T {
	return b.value
}

// Release ends the borrow. Releasing twice is harmless.
func (b *Res[T]) Release() {
	if b.state != nil {
		b.state.n.Add(-1)
		b.state = nil
	}
}

// ResMut is an exclusive borrow of a resource.
type ResMut[T any] struct {
	value *T
	state *borrowState
}

// Get returns the borrowed resource.
func (b *ResMut[T]) Get() *T {
	return b.value
}

// Release ends the borrow. Releasing twice is harmless.
func (b *ResMut[T]) Release() {
	if b.state != nil {
		b.state.n.Store(0)
		b.state = nil
	}
}

// Fetch borrows the resource of type *T for reading. It fails with
// ErrResourceNotFound when absent and ErrBorrowConflict while the resource
// is exclusively borrowed.
func Fetch[T any](r *Resources) (Res[T], error) {
	slot, err := lookup[T](r)
	if err != nil {
		return Res[T]{}, err
	}
	if !slot.state.acquireShared() {
		return Res[T]{}, eris.Wrapf(ErrBorrowConflict, "resource %s is borrowed mutably", reflect.TypeFor[T]())
	}
	return Res[T]{value: slot.value.(*T), state: slot.state}, nil
}

// FetchMut borrows the resource of type *T exclusively. It fails with
// ErrResourceNotFound when absent and ErrBorrowConflict while any other
// borrow is held.
func FetchMut[T any](r *Resources) (ResMut[T], error) {
	slot, err := lookup[T](r)
	if err != nil {
		return ResMut[T]{}, err
	}
	if !slot.state.acquireExclusive() {
		return ResMut[T]{}, eris.Wrapf(ErrBorrowConflict, "resource %s is already borrowed", reflect.TypeFor[T]())
	}
	return ResMut[T]{value: slot.value.(*T), state: slot.state}, nil
}

func lookup[T any](r *Resources) (resourceSlot, error) {
	id, ok := r.types[reflect.TypeFor[*T]()]
	if !ok {
		return resourceSlot{}, eris.Wrapf(ErrResourceNotFound, "resource %s", reflect.TypeFor[T]())
	}
	return r.items[id], nil
}
