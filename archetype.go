package depot

import (
	"encoding/binary"
	"iter"
	"slices"

	"github.com/TheBitDrifter/mask"
	"github.com/TheBitDrifter/table"
	"github.com/cespare/xxhash/v2"
)

var _ Archetype = &archetype{}

type archetypeID uint32

type archetype struct {
	id         archetypeID
	signature  mask.Mask
	components []*ComponentType // sorted by id
	columns    [MaxComponentTypes]int16
	chunks     []*chunk
	spare      []*chunk // released, empty chunks kept for reuse
	capacity   int
	size       int

	// transitions to the archetype reached by adding or removing one component
	addEdges    map[ComponentID]*archetype
	removeEdges map[ComponentID]*archetype
}

func newArchetype(id archetypeID, signature mask.Mask, chunkBytes int, components []*ComponentType) *archetype {
	sorted := slices.Clone(components)
	slices.SortFunc(sorted, func(a, b *ComponentType) int {
		return int(a.id) - int(b.id)
	})
	arch := &archetype{
		id:          id,
		signature:   signature,
		components:  sorted,
		capacity:    chunkCapacity(chunkBytes, sorted),
		addEdges:    make(map[ComponentID]*archetype),
		removeEdges: make(map[ComponentID]*archetype),
	}
	for i := range arch.columns {
		arch.columns[i] = -1
	}
	for i, ct := range sorted {
		arch.columns[ct.id] = int16(i)
	}
	return arch
}

func (a *archetype) ID() uint32 {
	return uint32(a.id)
}

func (a *archetype) Mask() mask.Mask {
	return a.signature
}

func (a *archetype) ComponentTypes() iter.Seq[*ComponentType] {
	return func(yield func(*ComponentType) bool) {
		for _, ct := range a.components {
			if !yield(ct) {
				return
			}
		}
	}
}

func (a *archetype) columnIndex(id ComponentID) int {
	return int(a.columns[id])
}

func (a *archetype) has(id ComponentID) bool {
	return a.columns[id] >= 0
}

// fingerprint hashes the component names, so it is stable across processes
// that register components in a different order.
func (a *archetype) fingerprint() uint64 {
	names := make([]uint64, len(a.components))
	for i, ct := range a.components {
		names[i] = ct.fingerprint
	}
	slices.Sort(names)
	buf := make([]byte, 8*len(names))
	for i, h := range names {
		binary.LittleEndian.PutUint64(buf[i*8:], h)
	}
	return xxhash.Sum64(buf)
}

// tail returns the chunk new entities go to, allocating one when the tail
// is full. Released chunks are reused before new tables are built.
func (a *archetype) tail(index table.EntryIndex) (chunkIndex int, allocated bool, err error) {
	if len(a.chunks) > 0 && !a.chunks[len(a.chunks)-1].full() {
		return len(a.chunks) - 1, false, nil
	}
	var c *chunk
	if n := len(a.spare); n > 0 {
		c = a.spare[n-1]
		a.spare[n-1] = nil
		a.spare = a.spare[:n-1]
	} else {
		c, err = newChunk(a, index)
		if err != nil {
			return 0, false, err
		}
		allocated = true
	}
	a.chunks = append(a.chunks, c)
	return len(a.chunks) - 1, allocated, nil
}

// push appends e to the tail chunk.
func (a *archetype) push(e Entity, index table.EntryIndex, tick uint64) (chunkIndex, slot int, allocated bool, err error) {
	chunkIndex, allocated, err = a.tail(index)
	if err != nil {
		return 0, 0, false, err
	}
	c := a.chunks[chunkIndex]
	slot, err = c.grow(1, tick)
	if err != nil {
		a.trim()
		return 0, 0, allocated, err
	}
	c.entities[slot] = e
	a.size++
	return chunkIndex, slot, allocated, nil
}

// swapRemove vacates a slot by moving the archetype's last occupied slot into
// it. Every chunk but the tail stays full. The moved entity, if any, is
// returned so its index record can be updated.
func (a *archetype) swapRemove(chunkIndex, slot int, tick uint64) (moved Entity, ok bool, err error) {
	tailIndex := len(a.chunks) - 1
	tail := a.chunks[tailIndex]
	last := tail.len - 1
	target := a.chunks[chunkIndex]

	if chunkIndex != tailIndex || slot != last {
		for i := range target.columns {
			if err := target.copyColumn(target.columns[i].element, slot, tail, last); err != nil {
				return Entity{}, false, err
			}
			target.columns[i].version = tick
		}
		moved = tail.entities[last]
		target.entities[slot] = moved
		ok = true
	}
	if err := tail.pop(); err != nil {
		return Entity{}, false, err
	}
	a.size--
	a.trim()
	return moved, ok, nil
}

// room is how many entities fit before another chunk is needed.
func (a *archetype) room() int {
	if n := len(a.chunks); n > 0 && !a.chunks[n-1].full() {
		return a.chunks[n-1].free()
	}
	return a.capacity
}

// trim releases the tail chunk when it is empty.
func (a *archetype) trim() {
	n := len(a.chunks)
	if n > 0 && a.chunks[n-1].len == 0 {
		a.spare = append(a.spare, a.chunks[n-1])
		a.chunks[n-1] = nil
		a.chunks = a.chunks[:n-1]
	}
}

// ArchetypeInfo describes an archetype for introspection and for external
// serializers that need the native storage order.
type ArchetypeInfo struct {
	ID            uint32
	Fingerprint   uint64
	Components    []string
	Entities      int
	Chunks        int
	ChunkCapacity int
}

func (a *archetype) info() ArchetypeInfo {
	names := make([]string, len(a.components))
	for i, ct := range a.components {
		names[i] = ct.name
	}
	return ArchetypeInfo{
		ID:            uint32(a.id),
		Fingerprint:   a.fingerprint(),
		Components:    names,
		Entities:      a.size,
		Chunks:        len(a.chunks),
		ChunkCapacity: a.capacity,
	}
}
