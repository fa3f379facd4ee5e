package depot

import (
	"fmt"
	"math"
)

// Entity is an opaque handle made of a slot index and the generation the slot
// had when the handle was issued. The zero Entity is never alive.
type Entity struct {
	index      uint32
	generation uint32
}

func (e Entity) Index() uint32 { return e.index }

func (e Entity) Generation() uint32 { return e.generation }

func (e Entity) IsZero() bool { return e.generation == 0 }

// Bits packs the handle as generation<<32 | index.
func (e Entity) Bits() uint64 {
	return uint64(e.generation)<<32 | uint64(e.index)
}

// EntityFromBits is the inverse of Entity.Bits.
func EntityFromBits(bits uint64) Entity {
	return Entity{index: uint32(bits), generation: uint32(bits >> 32)}
}

func (e Entity) String() string {
	return fmt.Sprintf("Entity(%dv%d)", e.index, e.generation)
}

type entityRecord struct {
	arch       *archetype
	chunk      int
	slot       int
	generation uint32
	live       bool
}

type entityTable struct {
	records []entityRecord
	free    []uint32
	live    int
	limit   int
}

const maxEntityIndex = math.MaxUint32 - 1

func (t *entityTable) allocate() (Entity, error) {
	if n := len(t.free); n > 0 {
		index := t.free[n-1]
		t.free = t.free[:n-1]
		rec := &t.records[index]
		rec.live = true
		t.live++
		return Entity{index: index, generation: rec.generation}, nil
	}
	if (t.limit > 0 && len(t.records) >= t.limit) || len(t.records) > maxEntityIndex {
		limit := t.limit
		if limit == 0 {
			limit = maxEntityIndex
		}
		return Entity{}, CapacityExhaustedError{Resource: "entity table", Limit: limit}
	}
	index := uint32(len(t.records))
	t.records = append(t.records, entityRecord{generation: 1, live: true})
	t.live++
	return Entity{index: index, generation: 1}, nil
}

func (t *entityTable) release(e Entity) {
	rec := &t.records[e.index]
	rec.arch = nil
	rec.chunk, rec.slot = -1, -1
	rec.live = false
	rec.generation++
	if rec.generation == 0 {
		rec.generation = 1
	}
	t.free = append(t.free, e.index)
	t.live--
}

func (t *entityTable) lookup(e Entity) (*entityRecord, bool) {
	if e.generation == 0 || int(e.index) >= len(t.records) {
		return nil, false
	}
	rec := &t.records[e.index]
	if !rec.live || rec.generation != e.generation {
		return nil, false
	}
	return rec, true
}
