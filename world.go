package keizu

import (
	"fmt"
	"os"
	"reflect"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// MaxComponentTypes defines the maximum number of unique component types that
// can be registered in a World.
const MaxComponentTypes = 256

// entityRegistry is the generational slot table.
type entityRegistry struct {
	freeIDs []uint32     // stack of recycled slots
	metas   []entityMeta // indexed by slot
	live    int
}

// World is the entity store: a generational entity table and one sparse
// column per component type, plus the change logs of tracked types and a
// resource table.
//
// Structural operations (Spawn, Despawn, Insert, Remove, Maintain) require
// exclusive access. Component reads and RefMut releases may run from several
// goroutines at once as long as no structural operation runs concurrently.
type World struct {
	resources  *Resources
	components componentRegistry
	entities   entityRegistry
	trackers   []*changeTracker
	log        zerolog.Logger
	cfg        Config
}

// Option configures a World at construction.
type Option func(w *World)

// WithLogger replaces the World logger. Options apply in order, so the last of
// WithLogger and WithPrettyLog decides the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *World) {
		w.log = l
	}
}

// WithPrettyLog replaces the World logger with one writing human-readable
// logs to stderr. It keeps the level of the logger it replaces, which is the
// configured level unless an earlier WithLogger set another.
func WithPrettyLog() Option {
	return func(w *World) {
		w.log = prettyLogger(os.Stderr, w.log.GetLevel())
	}
}

// WithTracked registers the exhaustive list of change-tracked component
// types. Tracking cannot be enabled after construction.
func WithTracked(specs ...TrackSpec) Option {
	return func(w *World) {
		for _, s := range specs {
			s.register(w)
		}
	}
}

// NewWorld creates a World with cfg.InitialCapacity preallocated entity
// slots.
func NewWorld(cfg Config, opts ...Option) *World {
	capacity := max(cfg.InitialCapacity, 0)
	w := &World{
		resources: &Resources{},
		components: componentRegistry{
			byType: make(map[reflect.Type]storage, 16),
		},
		log: newLogger(os.Stderr, cfg.LogLevel),
		cfg: cfg,
	}
	w.expand(capacity)
	for _, opt := range opts {
		opt(w)
	}
	w.log.Debug().
		Int("capacity", capacity).
		Int("tracked", len(w.trackers)).
		Msg("world created")
	return w
}

// Config returns the configuration the World was built with.
func (w *World) Config() Config {
	return w.cfg
}

// Resources returns the world's resource table.
func (w *World) Resources() *Resources {
	return w.resources
}

// Alive reports whether e refers to a live entity. Handles whose generation
// no longer matches their slot are never alive.
func (w *World) Alive(e Entity) bool {
	if int(e.ID) >= len(w.entities.metas) {
		return false
	}
	meta := w.entities.metas[e.ID]
	return meta.alive && meta.version == e.Version
}

// Len returns the number of live entities.
func (w *World) Len() int {
	return w.entities.live
}

// entityAt returns the live entity occupying a slot.
func (w *World) entityAt(slot uint32) (Entity, bool) {
	if int(slot) >= len(w.entities.metas) {
		return Entity{}, false
	}
	meta := w.entities.metas[slot]
	return Entity{ID: slot, Version: meta.version}, meta.alive
}

// Spawn creates an entity holding the given components. Every component
// value must be of a registered type; an unknown type is a programming error
// and panics before the entity is created.
func (w *World) Spawn(components ...any) Entity {
	stores := make([]storage, len(components))
	for i, c := range components {
		s, ok := w.components.byType[reflect.TypeOf(c)]
		if !ok {
			panic(fmt.Sprintf("keizu: component type %T is not registered", c))
		}
		stores[i] = s
	}
	e := w.createEntity()
	for i, c := range components {
		stores[i].insertAny(e, c)
	}
	return e
}

// Insert attaches the given components to e, replacing values of types it
// already holds. It fails with ErrNotFound for dead entities and with
// ErrNotRegistered for unknown component types, in both cases before any
// component is written.
func (w *World) Insert(e Entity, components ...any) error {
	if !w.Alive(e) {
		return notFound(e)
	}
	stores := make([]storage, len(components))
	for i, c := range components {
		s, ok := w.components.byType[reflect.TypeOf(c)]
		if !ok {
			return eris.Wrapf(ErrNotRegistered, "component %T", c)
		}
		stores[i] = s
	}
	for i, c := range components {
		stores[i].insertAny(e, c)
	}
	return nil
}

// Despawn removes every component of e, writing Removed events for tracked
// types, then invalidates the handle and frees its slot.
func (w *World) Despawn(e Entity) error {
	if !w.Alive(e) {
		return notFound(e)
	}
	for _, s := range w.components.columns {
		s.drop(e)
	}
	meta := &w.entities.metas[e.ID]
	meta.alive = false
	meta.version++
	if meta.version == 0 {
		meta.version = 1
	}
	w.entities.freeIDs = append(w.entities.freeIDs, e.ID)
	w.entities.live--
	return nil
}

// Clear despawns every live entity.
func (w *World) Clear() {
	for slot := range w.entities.metas {
		if e, ok := w.entityAt(uint32(slot)); ok {
			_ = w.Despawn(e)
		}
	}
}

// createEntity pops a free slot, growing the table when none is left.
func (w *World) createEntity() Entity {
	if len(w.entities.freeIDs) == 0 {
		w.expand(max(len(w.entities.metas), 64))
	}
	last := len(w.entities.freeIDs) - 1
	id := w.entities.freeIDs[last]
	w.entities.freeIDs = w.entities.freeIDs[:last]
	meta := &w.entities.metas[id]
	meta.alive = true
	w.entities.live++
	return Entity{ID: id, Version: meta.version}
}

// expand adds additional free slots and sizes every dirty set to match.
func (w *World) expand(additional int) {
	if additional <= 0 {
		return
	}
	oldCap := len(w.entities.metas)
	newCap := oldCap + additional
	newMetas := make([]entityMeta, additional)
	for i := range newMetas {
		newMetas[i].version = 1
	}
	w.entities.metas = append(w.entities.metas, newMetas...)
	// push in reverse so the lowest slot is popped first
	for i := newCap - 1; i >= oldCap; i-- {
		w.entities.freeIDs = append(w.entities.freeIDs, uint32(i))
	}
	for _, t := range w.trackers {
		t.dirty.grow(wordsFor(newCap))
	}
}

func notFound(e Entity) error {
	return eris.Wrapf(ErrNotFound, "entity %s", e)
}
