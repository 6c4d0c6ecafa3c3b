package keizu

import "github.com/rotisserie/eris"

// Insert attaches v to e, registering T on first use. The first insert of a
// tracked type writes an Inserted event before returning; replacing an
// existing value marks the entity dirty instead.
func Insert[T any](w *World, e Entity, v T) error {
	if !w.Alive(e) {
		return notFound(e)
	}
	ensureColumn[T](w).insert(e, v)
	return nil
}

// Remove detaches T from e and returns the removed value. Tracked types write
// a Removed event before returning.
func Remove[T any](w *World, e Entity) (T, error) {
	var zero T
	if !w.Alive(e) {
		return zero, notFound(e)
	}
	c := columnOf[T](w)
	if c == nil {
		return zero, missing[T](e)
	}
	v, ok := c.remove(e)
	if !ok {
		return zero, missing[T](e)
	}
	return v, nil
}

// Get returns read access to e's component of type T. Writes through the
// returned pointer are not change tracked; use GetMut or Modify for that.
func Get[T any](w *World, e Entity) (*T, error) {
	if !w.Alive(e) {
		return nil, notFound(e)
	}
	c := columnOf[T](w)
	if c == nil || !c.has(e.ID) {
		return nil, missing[T](e)
	}
	return c.get(e.ID), nil
}

// Has reports whether e is alive and holds a component of type T.
func Has[T any](w *World, e Entity) bool {
	if !w.Alive(e) {
		return false
	}
	c := columnOf[T](w)
	return c != nil && c.has(e.ID)
}

// RefMut is a guard for mutable access to one component value. Releasing it
// marks the entity dirty when T is tracked and Flagged. The mark is an atomic
// bit-set, so guards may be released from several goroutines at once.
type RefMut[T any] struct {
	value *T
	col   *column[T]
	slot  uint32
}

// Get returns the guarded value.
func (r RefMut[T]) Get() *T {
	return r.value
}

// Release ends the mutable access. Releasing twice is harmless.
func (r RefMut[T]) Release() {
	if r.col != nil && r.col.dirtyOnRelease() {
		r.col.markDirty(r.slot)
	}
}

// GetMut returns a guard for mutable access to e's component of type T.
//
//	ref, err := keizu.GetMut[keizu.Transform](w, e)
//	if err != nil {
//	    return err
//	}
//	defer ref.Release()
//	ref.Get().Local = keizu.Translate(1, 2)
func GetMut[T any](w *World, e Entity) (RefMut[T], error) {
	if !w.Alive(e) {
		return RefMut[T]{}, notFound(e)
	}
	c := columnOf[T](w)
	if c == nil || !c.has(e.ID) {
		return RefMut[T]{}, missing[T](e)
	}
	return RefMut[T]{value: c.get(e.ID), col: c, slot: e.ID}, nil
}

// Modify calls fn with mutable access to e's component of type T and
// releases the guard when fn returns.
func Modify[T any](w *World, e Entity, fn func(*T)) error {
	ref, err := GetMut[T](w, e)
	if err != nil {
		return err
	}
	defer ref.Release()
	fn(ref.Get())
	return nil
}

// MarkModified marks e dirty for T whether or not T is Flagged. It fails
// with ErrNotTracked for untracked types.
func MarkModified[T any](w *World, e Entity) error {
	if !w.Alive(e) {
		return notFound(e)
	}
	c := columnOf[T](w)
	if c == nil || !c.tracked() {
		var zero T
		return eris.Wrapf(ErrNotTracked, "component %T", zero)
	}
	if !c.has(e.ID) {
		return missing[T](e)
	}
	c.markDirty(e.ID)
	return nil
}

func missing[T any](e Entity) error {
	var zero T
	return eris.Wrapf(ErrMissing, "component %T on entity %s", zero, e)
}
