package keizu

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// Entity represents a unique identifier for an object in the World. It combines
// a 32-bit slot ID with a 32-bit generation so that recycled slots are never
// confused with the entity that previously occupied them.
type Entity struct {
	// ID is the slot index, recycled after despawn.
	ID uint32
	// Version is the slot generation. It starts at 1, so the zero Entity is
	// never alive.
	Version uint32
}

// EntityFromBits rebuilds an Entity from the value produced by Entity.Bits.
func EntityFromBits(bits uint64) Entity {
	return Entity{ID: uint32(bits), Version: uint32(bits >> 32)}
}

// Bits returns the stable bit pattern of the handle: generation in the high
// 32 bits, slot in the low 32 bits.
func (e Entity) Bits() uint64 {
	return uint64(e.Version)<<32 | uint64(e.ID)
}

// IsZero reports whether e is the zero handle.
func (e Entity) IsZero() bool {
	return e.ID == 0 && e.Version == 0
}

func (e Entity) String() string {
	return fmt.Sprintf("%dv%d", e.ID, e.Version)
}

// MarshalJSON encodes the entity as its bit pattern.
func (e Entity) MarshalJSON() ([]byte, error) {
	return strconv.AppendUint(nil, e.Bits(), 10), nil
}

// UnmarshalJSON decodes a bit pattern written by MarshalJSON.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var bits uint64
	if err := json.Unmarshal(data, &bits); err != nil {
		return eris.Wrap(err, "decode entity bits")
	}
	*e = EntityFromBits(bits)
	return nil
}

// entityMeta holds the state of one slot of the entity table.
type entityMeta struct {
	version uint32 // current generation of the slot
	alive   bool
}
