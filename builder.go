package keizu

// Builder spawns entities holding a component of type T without the
// per-value type lookup of World.Spawn.
type Builder[T any] struct {
	world *World
	col   *column[T]
}

// NewBuilder ...
func NewBuilder[T any](w *World) *Builder[T] {
	return &Builder[T]{world: w, col: ensureColumn[T](w)}
}

// NewEntity spawns one entity holding the zero T.
func (b *Builder[T]) NewEntity() Entity {
	var zero T
	return b.NewEntityWith(zero)
}

// NewEntityWith ...
func (b *Builder[T]) NewEntityWith(comp T) Entity {
	e := b.world.createEntity()
	b.col.insert(e, comp)
	return e
}

// NewEntities spawns count entities holding comp and appends them to dst.
func (b *Builder[T]) NewEntities(count int, comp T, dst []Entity) []Entity {
	if free := len(b.world.entities.freeIDs); free < count {
		b.world.expand(count - free)
	}
	for range count {
		dst = append(dst, b.NewEntityWith(comp))
	}
	return dst
}

// Get ...
func (b *Builder[T]) Get(e Entity) *T {
	if !b.world.Alive(e) || !b.col.has(e.ID) {
		return nil
	}
	return b.col.get(e.ID)
}

// Set inserts or replaces e's T. It reports false for dead entities.
func (b *Builder[T]) Set(e Entity, comp T) bool {
	if !b.world.Alive(e) {
		return false
	}
	b.col.insert(e, comp)
	return true
}

// Builder2 spawns entities holding both A and B.
type Builder2[A, B any] struct {
	world *World
	colA  *column[A]
	colB  *column[B]
}

// NewBuilder2 ...
func NewBuilder2[A, B any](w *World) *Builder2[A, B] {
	return &Builder2[A, B]{world: w, colA: ensureColumn[A](w), colB: ensureColumn[B](w)}
}

// NewEntityWith ...
func (b *Builder2[A, B]) NewEntityWith(a A, c B) Entity {
	e := b.world.createEntity()
	b.colA.insert(e, a)
	b.colB.insert(e, c)
	return e
}

// NewEntities spawns count entities holding a and c and appends them to dst.
func (b *Builder2[A, B]) NewEntities(count int, a A, c B, dst []Entity) []Entity {
	if free := len(b.world.entities.freeIDs); free < count {
		b.world.expand(count - free)
	}
	for range count {
		dst = append(dst, b.NewEntityWith(a, c))
	}
	return dst
}

// Get ...
func (b *Builder2[A, B]) Get(e Entity) (*A, *B) {
	if !b.world.Alive(e) || !b.colA.has(e.ID) || !b.colB.has(e.ID) {
		return nil, nil
	}
	return b.colA.get(e.ID), b.colB.get(e.ID)
}
