package keizu

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

const snapshotFormat = 1

// Snapshot is the persisted form of a transform hierarchy: local transforms
// and parent links only. Globals and hierarchy order are derived state and
// are rebuilt by the first tick after RestoreSnapshot.
type Snapshot struct {
	Format int         `json:"format"`
	Nodes  []SavedNode `json:"nodes"`
}

// SavedNode is one captured entity.
type SavedNode struct {
	Entity Entity  `json:"entity"`
	Parent *Entity `json:"parent,omitempty"`
	Local  *Affine `json:"local,omitempty"`
}

// CaptureSnapshot records every live entity that holds a Transform or a
// Parent, in slot order, plus every live entity referenced as a parent. A
// parent holding neither component is captured with both fields nil. Links to
// dead entities are left out.
func CaptureSnapshot(w *World) Snapshot {
	s := Snapshot{Format: snapshotFormat}
	transforms := columnOf[Transform](w)
	parents := columnOf[Parent](w)
	var referenced bitset
	if parents != nil {
		for slot := parents.present.next(0); slot >= 0; slot = parents.present.next(slot + 1) {
			if p := parents.get(uint32(slot)).Entity; w.Alive(p) {
				referenced.set(p.ID)
			}
		}
	}
	for slot := range w.entities.metas {
		e, ok := w.entityAt(uint32(slot))
		if !ok {
			continue
		}
		var node SavedNode
		if transforms != nil && transforms.has(e.ID) {
			local := transforms.get(e.ID).Local
			node.Local = &local
		}
		if parents != nil && parents.has(e.ID) {
			if p := parents.get(e.ID).Entity; w.Alive(p) {
				node.Parent = &p
			}
		}
		if node.Local == nil && node.Parent == nil && !referenced.has(e.ID) {
			continue
		}
		node.Entity = e
		s.Nodes = append(s.Nodes, node)
	}
	return s
}

// RestoreSnapshot spawns one fresh entity per node and rebuilds its
// Transform and Parent, remapping links between captured entities. A parent
// outside the snapshot is kept if it is alive in w. The returned map goes
// from captured to new entities.
//
// Nothing is spawned when the snapshot does not validate.
func RestoreSnapshot(w *World, s Snapshot) (map[Entity]Entity, error) {
	if s.Format != snapshotFormat {
		return nil, eris.Errorf("unsupported snapshot format %d", s.Format)
	}
	captured := make(map[Entity]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		if _, dup := captured[n.Entity]; dup {
			return nil, eris.Errorf("entity %s captured twice", n.Entity)
		}
		captured[n.Entity] = struct{}{}
	}
	for _, n := range s.Nodes {
		if n.Parent == nil {
			continue
		}
		if _, ok := captured[*n.Parent]; !ok && !w.Alive(*n.Parent) {
			return nil, eris.Wrapf(ErrNotFound, "parent %s of %s", *n.Parent, n.Entity)
		}
	}

	remap := make(map[Entity]Entity, len(s.Nodes))
	for _, n := range s.Nodes {
		remap[n.Entity] = w.createEntity()
	}
	for _, n := range s.Nodes {
		e := remap[n.Entity]
		if n.Local != nil {
			if err := Insert(w, e, NewTransform(*n.Local)); err != nil {
				return remap, err
			}
		}
		if n.Parent != nil {
			parent, ok := remap[*n.Parent]
			if !ok {
				parent = *n.Parent
			}
			if err := Insert(w, e, Parent{Entity: parent}); err != nil {
				return remap, err
			}
		}
	}
	w.log.Debug().Int("nodes", len(s.Nodes)).Msg("snapshot restored")
	return remap, nil
}

// EncodeSnapshot serializes s as JSON.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, eris.Wrap(err, "encode snapshot")
	}
	return b, nil
}

// DecodeSnapshot parses a snapshot written by EncodeSnapshot.
func DecodeSnapshot(b []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return Snapshot{}, eris.Wrap(err, "decode snapshot")
	}
	if s.Format != snapshotFormat {
		return Snapshot{}, eris.Errorf("unsupported snapshot format %d", s.Format)
	}
	return s, nil
}
