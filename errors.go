package keizu

import "github.com/rotisserie/eris"

var (
	// ErrNotFound is returned when an operation references a despawned or
	// never-spawned entity.
	ErrNotFound = eris.New("entity not found")
	// ErrMissing is returned when an entity does not hold the requested
	// component type.
	ErrMissing = eris.New("component missing on entity")
	// ErrNotTracked is returned when change tracking is requested for a
	// component type that was not registered as tracked.
	ErrNotTracked = eris.New("component type is not tracked")
	// ErrNotRegistered is returned when a component value of an unknown type
	// is inserted through the type-erased API.
	ErrNotRegistered = eris.New("component type is not registered")
	// ErrBorrowConflict is returned when a resource borrow would break the
	// many-readers-or-one-writer rule.
	ErrBorrowConflict = eris.New("resource already borrowed")
	// ErrResourceNotFound is returned when no resource of the type exists.
	ErrResourceNotFound = eris.New("resource not found")
)
