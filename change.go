package keizu

import (
	"reflect"

	"github.com/rotisserie/eris"
)

// EventKind is the kind of a ComponentEvent.
type EventKind uint8

const (
	// Inserted is written when a component is first attached to an entity.
	Inserted EventKind = iota + 1
	// Modified is written at Maintain, once per dirtied entity.
	Modified
	// Removed is written when a component is detached, including on despawn.
	Removed
)

func (k EventKind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// ComponentEvent is one entry of a tracked component type's change log.
type ComponentEvent struct {
	Entity Entity
	Kind   EventKind
}

// changeTracker is the Change Notifier state of one tracked component type.
type changeTracker struct {
	dirty   atomicBitset
	present *bitset // presence of the owning column
	channel EventChannel[ComponentEvent]
}

// recordInserted writes Inserted and forgets writes made before the insert,
// so a slot reused within one cycle does not carry its old dirty bit.
func (t *changeTracker) recordInserted(e Entity) {
	t.dirty.unset(e.ID)
	t.channel.Write(ComponentEvent{Entity: e, Kind: Inserted})
}

func (t *changeTracker) recordRemoved(e Entity) {
	t.channel.Write(ComponentEvent{Entity: e, Kind: Removed})
}

// flush turns the dirty set into Modified events. Only writes made after the
// latest insert are in the set, and a slot whose component is gone by now gets
// no event. Any number of writes to one entity collapse into a single event.
func (t *changeTracker) flush(metas []entityMeta) int {
	n := 0
	t.dirty.drain(func(slot uint32) {
		if !t.present.has(slot) {
			return
		}
		if int(slot) >= len(metas) || !metas[slot].alive {
			return
		}
		t.channel.Write(ComponentEvent{
			Entity: Entity{ID: slot, Version: metas[slot].version},
			Kind:   Modified,
		})
		n++
	})
	return n
}

func (w *World) newTracker(present *bitset) *changeTracker {
	t := &changeTracker{present: present}
	t.dirty.grow(wordsFor(len(w.entities.metas)))
	w.trackers = append(w.trackers, t)
	return t
}

// Maintain runs the flush cycle for every tracked component type: dirty
// entities become Modified events and consumed log prefixes are compacted. Call it once per tick, before any
// consumer polls.
func (w *World) Maintain() {
	modified, compacted := 0, 0
	for _, t := range w.trackers {
		modified += t.flush(w.entities.metas)
		compacted += t.channel.Compact(w.cfg.CompactThreshold)
	}
	w.log.Trace().
		Int("modified", modified).
		Int("compacted", compacted).
		Msg("change notifier flushed")
}

// Track registers a new reader of T's change log. The reader sees every event
// written after this call. It fails with ErrNotTracked when T was not passed
// to NewWorld through WithTracked.
func Track[T any](w *World) (ReaderID, error) {
	t, err := trackerOf[T](w)
	if err != nil {
		return ReaderID{}, err
	}
	return t.channel.Register(), nil
}

// Poll returns the events of T written since the reader's previous Poll and
// advances the reader. It panics when T is not tracked.
func Poll[T any](w *World, r *ReaderID) []ComponentEvent {
	t, err := trackerOf[T](w)
	if err != nil {
		panic("keizu: component type " + reflect.TypeFor[T]().String() + " is not tracked")
	}
	return t.channel.Read(r)
}

// DropReader releases a reader of T's change log.
func DropReader[T any](w *World, r *ReaderID) {
	if t, err := trackerOf[T](w); err == nil {
		t.channel.Drop(r)
	}
}

func trackerOf[T any](w *World) (*changeTracker, error) {
	c := columnOf[T](w)
	if c == nil || !c.tracked() {
		var zero T
		return nil, eris.Wrapf(ErrNotTracked, "component %T", zero)
	}
	return c.changes, nil
}

func wordsFor(slots int) int {
	return (slots + 63) >> 6
}
