package keizu

// ReaderID identifies one consumer of an EventChannel. Each reader keeps its
// own cursor, so several readers can consume the same channel at different
// cadences and still observe every event exactly once, in write order.
type ReaderID struct {
	slot  int
	valid bool
}

// Valid reports whether the reader was obtained from a channel and has not
// been dropped.
func (r ReaderID) Valid() bool {
	return r.valid
}

// EventChannel is an append-only event log with independent reader cursors.
//
// Cursors are absolute positions; base is the absolute position of events[0].
// Compact discards the prefix every live reader has already consumed.
type EventChannel[E any] struct {
	events  []E
	cursors []uint64
	live    []bool
	free    []int
	base    uint64
}

// Register creates a reader positioned at the current end of the log. It
// observes only events written after registration.
func (c *EventChannel[E]) Register() ReaderID {
	end := c.base + uint64(len(c.events))
	if n := len(c.free); n > 0 {
		slot := c.free[n-1]
		c.free = c.free[:n-1]
		c.cursors[slot] = end
		c.live[slot] = true
		return ReaderID{slot: slot, valid: true}
	}
	c.cursors = append(c.cursors, end)
	c.live = append(c.live, true)
	return ReaderID{slot: len(c.cursors) - 1, valid: true}
}

// Drop releases the reader so it no longer holds back compaction.
func (c *EventChannel[E]) Drop(r *ReaderID) {
	if !c.owns(*r) {
		return
	}
	c.live[r.slot] = false
	c.free = append(c.free, r.slot)
	r.valid = false
}

// Write appends an event to the log.
func (c *EventChannel[E]) Write(e E) {
	c.events = append(c.events, e)
}

// Read returns every event written since the reader's previous Read and
// advances its cursor. The returned slice is never overwritten by later
// writes or compaction.
func (c *EventChannel[E]) Read(r *ReaderID) []E {
	if !c.owns(*r) {
		panic("keizu: reader is not registered with this channel")
	}
	start := int(c.cursors[r.slot] - c.base)
	end := len(c.events)
	c.cursors[r.slot] = c.base + uint64(end)
	if start == end {
		return nil
	}
	return c.events[start:end:end]
}

// Pending returns how many events the reader has not consumed yet.
func (c *EventChannel[E]) Pending(r ReaderID) int {
	if !c.owns(r) {
		return 0
	}
	return int(c.base + uint64(len(c.events)) - c.cursors[r.slot])
}

// Len returns the number of retained events.
func (c *EventChannel[E]) Len() int {
	return len(c.events)
}

// Compact drops the events every live reader has consumed, provided at least
// threshold of them are reclaimable. It returns the number of dropped events.
func (c *EventChannel[E]) Compact(threshold int) int {
	low := c.base + uint64(len(c.events))
	for i, cur := range c.cursors {
		if c.live[i] && cur < low {
			low = cur
		}
	}
	n := int(low - c.base)
	if n == 0 || n < threshold {
		return 0
	}
	rest := make([]E, len(c.events)-n, max(len(c.events)-n, 16))
	copy(rest, c.events[n:])
	c.events = rest
	c.base = low
	return n
}

func (c *EventChannel[E]) owns(r ReaderID) bool {
	return r.valid && r.slot < len(c.live) && c.live[r.slot]
}
