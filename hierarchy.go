package keizu

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// ParentComponent is implemented by component types that point at the
// owning parent entity. Hierarchy works with any such type.
type ParentComponent interface {
	ParentEntity() Entity
}

// Parent is the default parent-reference component.
type Parent struct {
	Entity Entity `json:"entity"`
}

// ParentEntity returns the parent.
func (p Parent) ParentEntity() Entity {
	return p.Entity
}

// Flagged makes mutable access to Parent change tracked, so writing a new
// parent through GetMut or Modify reparents at the next update.
func (Parent) Flagged() {}

// HierarchyEventKind is the kind of a HierarchyEvent.
type HierarchyEventKind uint8

const (
	// ModifiedOrCreated is written for every entity whose position in the
	// tree changed this update, and for all of its tracked descendants.
	ModifiedOrCreated HierarchyEventKind = iota + 1
	// HierarchyRemoved is written for every entity that left the hierarchy.
	HierarchyRemoved
)

func (k HierarchyEventKind) String() string {
	switch k {
	case ModifiedOrCreated:
		return "modified_or_created"
	case HierarchyRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// HierarchyEvent is one entry of the hierarchy's event stream.
type HierarchyEvent struct {
	Entity Entity
	Kind   HierarchyEventKind
}

// Hierarchy keeps the entities that hold a parent-reference component P in
// an order where every parent precedes its descendants.
//
// State after every Update:
//   - position[sorted[i]] == i
//   - childrenOf[p] holds exactly the entities whose parentOf is p
//   - a tracked parent precedes each of its children in sorted
//   - roots holds exactly the parents with children that are not tracked
//     themselves
type Hierarchy[P ParentComponent] struct {
	world      *World
	parents    *column[P]
	position   map[Entity]int
	parentOf   map[Entity]Entity
	childrenOf map[Entity][]Entity
	roots      map[Entity]struct{}
	log        zerolog.Logger
	sorted     []Entity
	seeds      []Entity
	events     EventChannel[HierarchyEvent]
	reader     ReaderID

	// per-update scratch
	seen       map[Entity]struct{}
	marked     map[Entity]struct{}
	changed    map[Entity]struct{}
	candidates []Entity
	stack      []Entity
}

// NewHierarchy creates a Hierarchy over P. P must be tracked. Entities that
// already hold P are picked up by the first Update.
func NewHierarchy[P ParentComponent](w *World) (*Hierarchy[P], error) {
	c := columnOf[P](w)
	if c == nil || !c.tracked() {
		var zero P
		return nil, eris.Wrapf(ErrNotTracked, "parent component %T", zero)
	}
	h := &Hierarchy[P]{
		world:      w,
		parents:    c,
		reader:     c.changes.channel.Register(),
		position:   make(map[Entity]int),
		parentOf:   make(map[Entity]Entity),
		childrenOf: make(map[Entity][]Entity),
		roots:      make(map[Entity]struct{}),
		seen:       make(map[Entity]struct{}),
		marked:     make(map[Entity]struct{}),
		changed:    make(map[Entity]struct{}),
		log:        w.systemLogger("hierarchy"),
	}
	for slot := c.present.next(0); slot >= 0; slot = c.present.next(slot + 1) {
		if e, ok := w.entityAt(uint32(slot)); ok {
			h.seeds = append(h.seeds, e)
		}
	}
	return h, nil
}

// Update consumes this tick's P events and brings the order up to date:
// removals (cascading to descendants), insertions, reparenting, change
// marking and root cleanup, in that order.
func (h *Hierarchy[P]) Update() {
	if h.world.cfg.ValidateHierarchy {
		h.Validate()
	}
	h.events.Compact(h.world.cfg.CompactThreshold)

	candidates := h.collect()

	// removal pass
	removals := h.stack[:0]
	for _, e := range candidates {
		if _, tracked := h.position[e]; tracked && !h.holdsParent(e) {
			removals = append(removals, e)
		}
	}
	for r := range h.roots {
		if !h.world.Alive(r) {
			removals = append(removals, r)
		}
	}
	h.stack = removals
	removed := h.remove(removals)

	// insertion and reparent passes, against the state left by removal
	clear(h.changed)
	inserted, relinked := 0, 0
	for _, e := range candidates {
		if _, tracked := h.position[e]; !tracked && h.holdsParent(e) {
			if h.insert(e) {
				inserted++
			}
		}
	}
	for _, e := range candidates {
		if _, tracked := h.position[e]; tracked && h.holdsParent(e) {
			if h.reparent(e) {
				relinked++
			}
		}
	}

	h.markChanged()

	// root cleanup
	for r := range h.roots {
		if len(h.childrenOf[r]) == 0 {
			delete(h.roots, r)
			delete(h.childrenOf, r)
		}
	}

	if removed+inserted+relinked > 0 {
		h.log.Debug().
			Int("removed", removed).
			Int("inserted", inserted).
			Int("reparented", relinked).
			Int("tracked", len(h.sorted)).
			Int("roots", len(h.roots)).
			Msg("hierarchy updated")
	}
}

// collect returns every entity named by a seed or an event this tick, once,
// in first-seen order.
func (h *Hierarchy[P]) collect() []Entity {
	clear(h.seen)
	out := h.candidates[:0]
	add := func(e Entity) {
		if _, ok := h.seen[e]; ok {
			return
		}
		h.seen[e] = struct{}{}
		out = append(out, e)
	}
	for _, e := range h.seeds {
		add(e)
	}
	h.seeds = nil
	for _, ev := range h.parents.changes.channel.Read(&h.reader) {
		add(ev.Entity)
	}
	h.candidates = out
	return out
}

func (h *Hierarchy[P]) holdsParent(e Entity) bool {
	return h.world.Alive(e) && h.parents.has(e.ID)
}

// remove takes the given entities and all of their tracked descendants out
// of the hierarchy, writing HierarchyRemoved for each one that was tracked.
func (h *Hierarchy[P]) remove(entities []Entity) int {
	if len(entities) == 0 {
		return 0
	}
	clear(h.marked)
	stack := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if _, ok := h.marked[e]; !ok {
			h.marked[e] = struct{}{}
			stack = append(stack, e)
		}
	}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range h.childrenOf[e] {
			if _, ok := h.marked[c]; !ok {
				h.marked[c] = struct{}{}
				stack = append(stack, c)
			}
		}
	}

	first := len(h.sorted)
	for e := range h.marked {
		if i, ok := h.position[e]; ok && i < first {
			first = i
		}
		if p, ok := h.parentOf[e]; ok {
			if _, gone := h.marked[p]; !gone {
				h.unlink(p, e)
			}
			delete(h.parentOf, e)
		}
		delete(h.childrenOf, e)
		delete(h.roots, e)
	}

	n := 0
	j := first
	for i := first; i < len(h.sorted); i++ {
		e := h.sorted[i]
		if _, gone := h.marked[e]; gone {
			delete(h.position, e)
			h.events.Write(HierarchyEvent{Entity: e, Kind: HierarchyRemoved})
			n++
			continue
		}
		h.sorted[j] = e
		h.position[e] = j
		j++
	}
	clear(h.sorted[j:])
	h.sorted = h.sorted[:j]
	return n
}

// insert starts tracking e under its current parent. An entity that was a
// bare root goes right before its first child; anything else is appended.
func (h *Hierarchy[P]) insert(e Entity) bool {
	p := (*h.parents.get(e.ID)).ParentEntity()
	if !h.acceptLink(e, p) {
		return false
	}
	idx := len(h.sorted)
	for _, c := range h.childrenOf[e] {
		i, ok := h.position[c]
		if !ok {
			invariant("child %s of %s is not in the order", c, e)
		}
		idx = min(idx, i)
	}
	h.sorted = slices.Insert(h.sorted, idx, e)
	for i := idx; i < len(h.sorted); i++ {
		h.position[h.sorted[i]] = i
	}
	delete(h.roots, e)
	h.link(p, e)
	h.fixOrder(e)
	h.changed[e] = struct{}{}
	return true
}

// reparent moves e under the parent its component currently names. A link
// that cannot be made takes e and its subtree out of the hierarchy.
func (h *Hierarchy[P]) reparent(e Entity) bool {
	p := (*h.parents.get(e.ID)).ParentEntity()
	old, ok := h.parentOf[e]
	if !ok {
		invariant("tracked entity %s has no parent", e)
	}
	if p == old {
		return false
	}
	if !h.acceptLink(e, p) {
		h.remove([]Entity{e})
		return false
	}
	h.unlink(old, e)
	if _, tracked := h.parentOf[old]; !tracked && len(h.childrenOf[old]) == 0 {
		delete(h.roots, old)
	}
	h.link(p, e)
	h.fixOrder(e)
	h.changed[e] = struct{}{}
	return true
}

// acceptLink reports whether e may be placed under p: p must be alive, must
// not be e, and must not be one of e's descendants.
func (h *Hierarchy[P]) acceptLink(e, p Entity) bool {
	if !h.world.Alive(p) {
		h.log.Debug().Stringer("entity", e).Stringer("parent", p).Msg("parent is not alive, entity left untracked")
		return false
	}
	if p == e {
		h.log.Warn().Stringer("entity", e).Msg("entity names itself as parent, entity left untracked")
		return false
	}
	for a, ok := p, true; ok; a, ok = h.parentOf[a] {
		if a == e {
			h.log.Warn().Stringer("entity", e).Stringer("parent", p).Msg("link would form a cycle, entity left untracked")
			return false
		}
	}
	return true
}

func (h *Hierarchy[P]) link(p, e Entity) {
	h.childrenOf[p] = append(h.childrenOf[p], e)
	h.parentOf[e] = p
	if _, tracked := h.parentOf[p]; !tracked {
		h.roots[p] = struct{}{}
	}
}

func (h *Hierarchy[P]) unlink(p, e Entity) {
	children := h.childrenOf[p]
	i := slices.Index(children, e)
	if i < 0 {
		invariant("%s is not in the child list of its parent %s", e, p)
	}
	children = slices.Delete(children, i, i+1)
	if len(children) == 0 {
		delete(h.childrenOf, p)
		return
	}
	h.childrenOf[p] = children
}

// fixOrder restores the order after e was linked: while e's parent sits at
// or after e, the parent is moved to just before e and the check continues
// with the parent.
func (h *Hierarchy[P]) fixOrder(e Entity) {
	for {
		p, ok := h.parentOf[e]
		if !ok {
			return
		}
		pi, tracked := h.position[p]
		if !tracked {
			return
		}
		ei := h.position[e]
		if pi < ei {
			return
		}
		copy(h.sorted[ei+1:pi+1], h.sorted[ei:pi])
		h.sorted[ei] = p
		for i := ei; i <= pi; i++ {
			h.position[h.sorted[i]] = i
		}
		e = p
	}
}

// markChanged flows the changed set down to every tracked descendant and
// writes ModifiedOrCreated for each marked entity, in order.
func (h *Hierarchy[P]) markChanged() {
	if len(h.changed) == 0 {
		return
	}
	start := len(h.sorted)
	for e := range h.changed {
		if i, ok := h.position[e]; ok {
			start = min(start, i)
		}
	}
	for i := start; i < len(h.sorted); i++ {
		e := h.sorted[i]
		_, hit := h.changed[e]
		if !hit {
			_, hit = h.changed[h.parentOf[e]]
		}
		if hit {
			h.changed[e] = struct{}{}
			h.events.Write(HierarchyEvent{Entity: e, Kind: ModifiedOrCreated})
		}
	}
}

// Track registers a reader of the hierarchy's event stream.
func (h *Hierarchy[P]) Track() ReaderID {
	return h.events.Register()
}

// Poll returns the hierarchy events written since the reader's previous
// Poll.
func (h *Hierarchy[P]) Poll(r *ReaderID) []HierarchyEvent {
	return h.events.Read(r)
}

// DropReader releases a reader of the hierarchy's event stream.
func (h *Hierarchy[P]) DropReader(r *ReaderID) {
	h.events.Drop(r)
}

// All returns the tracked entities, parents before children. The slice is
// owned by the hierarchy and must not be modified.
func (h *Hierarchy[P]) All() []Entity {
	return h.sorted
}

// Len returns the number of tracked entities.
func (h *Hierarchy[P]) Len() int {
	return len(h.sorted)
}

// Index returns e's position in All.
func (h *Hierarchy[P]) Index(e Entity) (int, bool) {
	i, ok := h.position[e]
	return i, ok
}

// Children returns the tracked children of e in link order. The slice is
// owned by the hierarchy and must not be modified.
func (h *Hierarchy[P]) Children(e Entity) []Entity {
	return h.childrenOf[e]
}

// Parent returns the parent e is linked to.
func (h *Hierarchy[P]) Parent(e Entity) (Entity, bool) {
	p, ok := h.parentOf[e]
	return p, ok
}

// Roots returns the parents that are not tracked themselves, ordered by
// entity bits.
func (h *Hierarchy[P]) Roots() []Entity {
	out := make([]Entity, 0, len(h.roots))
	for r := range h.roots {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Entity) int {
		return cmp.Compare(a.Bits(), b.Bits())
	})
	return out
}

// Descendants returns every tracked descendant of e in order.
func (h *Hierarchy[P]) Descendants(e Entity) []Entity {
	var out []Entity
	stack := append([]Entity(nil), h.childrenOf[e]...)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, c)
		stack = append(stack, h.childrenOf[c]...)
	}
	slices.SortFunc(out, func(a, b Entity) int {
		return cmp.Compare(h.position[a], h.position[b])
	})
	return out
}

// Validate checks every hierarchy invariant and panics on the first
// violation.
func (h *Hierarchy[P]) Validate() {
	if len(h.position) != len(h.sorted) {
		invariant("position holds %d entries for %d tracked entities", len(h.position), len(h.sorted))
	}
	for i, e := range h.sorted {
		if h.position[e] != i {
			invariant("position of %s is %d, want %d", e, h.position[e], i)
		}
		p, ok := h.parentOf[e]
		if !ok {
			invariant("tracked entity %s has no parent", e)
		}
		if pi, tracked := h.position[p]; tracked && pi >= i {
			invariant("parent %s at %d does not precede %s at %d", p, pi, e, i)
		}
	}
	links := 0
	for p, children := range h.childrenOf {
		if len(children) == 0 {
			invariant("empty child list for %s", p)
		}
		for _, c := range children {
			if h.parentOf[c] != p {
				invariant("%s is listed under %s but linked to %s", c, p, h.parentOf[c])
			}
		}
		links += len(children)
		_, tracked := h.parentOf[p]
		_, root := h.roots[p]
		if tracked == root {
			invariant("root membership of %s is %t, tracked is %t", p, root, tracked)
		}
	}
	if links != len(h.parentOf) {
		invariant("%d child links for %d linked entities", links, len(h.parentOf))
	}
	for r := range h.roots {
		if len(h.childrenOf[r]) == 0 {
			invariant("root %s has no children", r)
		}
	}
}

func invariant(format string, args ...any) {
	panic(fmt.Sprintf("keizu: hierarchy invariant violated: "+format, args...))
}
