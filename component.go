package keizu

import (
	"fmt"
	"reflect"
)

// ComponentID is a unique identifier for a component type within a World.
type ComponentID uint32

// Flagged marks a component type whose mutable access is change tracked:
// releasing a RefMut of a tracked Flagged component marks the entity dirty
// for that type, which becomes one Modified event at the next Maintain.
type Flagged interface {
	Flagged()
}

var flaggedType = reflect.TypeFor[Flagged]()

// TrackSpec names a component type whose structural and value changes are
// recorded by the World. Build one with Tracked and pass the full list to
// NewWorld through WithTracked.
type TrackSpec struct {
	typ      reflect.Type
	register func(w *World)
}

// Tracked returns the TrackSpec for component type T.
func Tracked[T any]() TrackSpec {
	return TrackSpec{
		typ: reflect.TypeFor[T](),
		register: func(w *World) {
			ensureColumn[T](w).enableTracking(w)
		},
	}
}

// Type returns the tracked component type.
func (s TrackSpec) Type() reflect.Type {
	return s.typ
}

// storage is the type-erased view of a column used by structural operations
// that do not know the component type (Spawn, Despawn, snapshots).
type storage interface {
	componentID() ComponentID
	componentType() reflect.Type
	has(slot uint32) bool
	insertAny(e Entity, v any)
	drop(e Entity) bool
	tracker() *changeTracker
}

// column is the sparse store of one component type, indexed by entity slot,
// with a presence bit per slot.
type column[T any] struct {
	typ     reflect.Type
	data    []T
	present bitset
	changes *changeTracker // nil for untracked types
	id      ComponentID
	flagged bool
}

func (c *column[T]) componentID() ComponentID { return c.id }
func (c *column[T]) componentType() reflect.Type { return c.typ }
func (c *column[T]) has(slot uint32) bool { return c.present.has(slot) }
func (c *column[T]) tracker() *changeTracker { return c.changes }
func (c *column[T]) insertAny(e Entity, v any) { c.insert(e, v.(T)) }
func (c *column[T]) get(slot uint32) *T { return &c.data[slot] }
func (c *column[T]) tracked() bool { return c.changes != nil }
func (c *column[T]) markDirty(slot uint32) { c.changes.dirty.set(slot) }
func (c *column[T]) dirtyOnRelease() bool { return c.changes != nil && c.flagged }
func (c *column[T]) enableTracking(w *World) { c.changes = w.newTracker(&c.present) }
func (c *column[T]) String() string { return fmt.Sprintf("column[%s]", c.typ) }

func (c *column[T]) drop(e Entity) bool {
	_, ok := c.remove(e)
	return ok
}

// insert stores v for e. A first insert emits Inserted for tracked types and
// drops earlier dirty marks on the slot; a replacement marks the entity dirty.
func (c *column[T]) insert(e Entity, v T) {
	slot := e.ID
	if int(slot) >= len(c.data) {
		c.data = extendSlice(c.data, int(slot)+1-len(c.data))
	}
	c.data[slot] = v
	if c.present.has(slot) {
		if c.changes != nil {
			c.changes.dirty.set(slot)
		}
		return
	}
	c.present.set(slot)
	if c.changes != nil {
		c.changes.recordInserted(e)
	}
}

// remove clears the value stored for e and reports whether it was present.
func (c *column[T]) remove(e Entity) (T, bool) {
	var zero T
	slot := e.ID
	if !c.present.has(slot) {
		return zero, false
	}
	v := c.data[slot]
	c.data[slot] = zero
	c.present.unset(slot)
	if c.changes != nil {
		c.changes.recordRemoved(e)
	}
	return v, true
}

// componentRegistry maps component types to their columns.
type componentRegistry struct {
	byType  map[reflect.Type]storage
	columns []storage
}

// RegisterComponent registers an untracked component type and returns its
// ID. Registering an existing type returns the existing ID. Only registered
// types can be passed to Spawn and World.Insert; the generic functions
// register on first use.
func RegisterComponent[T any](w *World) ComponentID {
	return ensureColumn[T](w).id
}

// columnOf returns the column for T, or nil if T was never registered.
func columnOf[T any](w *World) *column[T] {
	s, ok := w.components.byType[reflect.TypeFor[T]()]
	if !ok {
		return nil
	}
	return s.(*column[T])
}

func ensureColumn[T any](w *World) *column[T] {
	t := reflect.TypeFor[T]()
	if s, ok := w.components.byType[t]; ok {
		return s.(*column[T])
	}
	if len(w.components.columns) >= MaxComponentTypes {
		panic("keizu: too many component types")
	}
	c := &column[T]{
		typ:     t,
		id:      ComponentID(len(w.components.columns)),
		flagged: reflect.PointerTo(t).Implements(flaggedType),
	}
	w.components.byType[t] = c
	w.components.columns = append(w.components.columns, c)
	return c
}

// extendSlice extends a slice by n elements, reallocating if necessary.
func extendSlice[T any](s []T, n int) []T {
	newLen := len(s) + n
	if cap(s) >= newLen {
		return s[:newLen]
	}
	ns := make([]T, newLen, max(2*cap(s), newLen))
	copy(ns, s)
	return ns
}
