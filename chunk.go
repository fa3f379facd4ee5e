package depot

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/TheBitDrifter/table"
)

const (
	// DefaultChunkBytes is the memory budget of one chunk: entity handles plus
	// one row of every component column, times the chunk capacity.
	DefaultChunkBytes = 16 * 1024
	MaxChunkCapacity  = 4096
)

// tableBuild serializes table construction; the table factory records every
// table it builds in a package-level map.
var tableBuild sync.Mutex

var _ table.ElementType = elementType{}

// elementType presents a component as a table row type. Table element ids
// start at 1.
type elementType struct {
	ct *ComponentType
}

func (et elementType) ID() table.ElementTypeID { return table.ElementTypeID(et.ct.id) + 1 }

func (et elementType) Type() reflect.Type { return et.ct.typ }

func (et elementType) Size() uint32 { return uint32(et.ct.size) }

var _ table.Schema = componentSchema{}

// componentSchema lays table rows out by component id, so every chunk table
// of every world agrees on row positions without registration.
type componentSchema struct{}

func (componentSchema) Register(...table.ElementType) {}

func (componentSchema) Registered() int { return MaxComponentTypes }

func (componentSchema) Contains(et table.ElementType) bool {
	return et.ID() >= 1 && int(et.ID()) <= MaxComponentTypes
}

func (s componentSchema) ContainsAll(ets ...table.ElementType) bool {
	for _, et := range ets {
		if !s.Contains(et) {
			return false
		}
	}
	return true
}

func (componentSchema) RowIndexFor(et table.ElementType) uint32 { return uint32(et.ID() - 1) }

func (componentSchema) RowIndexForID(id table.ElementTypeID) uint32 { return uint32(id - 1) }

// column caches the base address of one table row for slot addressing. It is
// refreshed whenever the table may have reallocated.
type column struct {
	element elementType
	base    unsafe.Pointer
	size    uintptr
	version uint64
}

func (c *column) at(slot int) unsafe.Pointer {
	return unsafe.Add(c.base, uintptr(slot)*c.size)
}

// chunk is a block of at most capacity entities. Component data lives in a
// table whose length always equals len; archetypes without components have no
// table.
type chunk struct {
	table    table.Table
	entities []Entity
	columns  []column
	len      int
}

func newChunk(arch *archetype, index table.EntryIndex) (*chunk, error) {
	c := &chunk{
		entities: make([]Entity, arch.capacity),
		columns:  make([]column, len(arch.components)),
	}
	if len(arch.components) == 0 {
		return c, nil
	}
	elementTypes := make([]table.ElementType, len(arch.components))
	for i, ct := range arch.components {
		et := elementType{ct: ct}
		elementTypes[i] = et
		c.columns[i] = column{element: et, size: ct.size}
	}
	tableBuild.Lock()
	tbl, err := table.NewTableBuilder().
		WithSchema(componentSchema{}).
		WithEntryIndex(index).
		WithElementTypes(elementTypes...).
		Build()
	tableBuild.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to build chunk table: %w", err)
	}
	c.table = tbl
	return c, nil
}

func (c *chunk) full() bool {
	return c.len == len(c.entities)
}

func (c *chunk) free() int {
	return len(c.entities) - c.len
}

// grow appends n zeroed slots and returns the first of them.
func (c *chunk) grow(n int, tick uint64) (int, error) {
	start := c.len
	if c.table != nil {
		if _, err := c.table.NewEntries(n); err != nil {
			return 0, err
		}
		c.rebase()
	}
	c.len += n
	c.touch(tick)
	return start, nil
}

// pop zeroes and drops the last slot.
func (c *chunk) pop() error {
	last := c.len - 1
	c.entities[last] = Entity{}
	c.len--
	if c.table == nil {
		return nil
	}
	for i := range c.columns {
		if err := c.drop(i, last); err != nil {
			return err
		}
	}
	if _, err := c.table.DeleteEntries(last); err != nil {
		return err
	}
	c.rebase()
	return nil
}

// drop zeroes a slot so references it held can be collected and a later grow
// hands out zero values.
func (c *chunk) drop(col, slot int) error {
	et := c.columns[col].element
	return c.table.Set(et, reflect.Zero(et.Type()), slot)
}

// copyColumn copies one element of src's column into this chunk's column of
// the same component.
func (c *chunk) copyColumn(et elementType, dst int, src *chunk, from int) error {
	v, err := src.table.Get(et, from)
	if err != nil {
		return err
	}
	return c.table.Set(et, v, dst)
}

func (c *chunk) rebase() {
	for i := range c.columns {
		row, err := c.table.Row(c.columns[i].element)
		if err != nil {
			panic(fmt.Sprintf("depot: chunk table lost row %v: %v", c.columns[i].element.ct, err))
		}
		c.columns[i].base = row.UnsafePointer()
	}
}

func (c *chunk) touch(tick uint64) {
	for i := range c.columns {
		c.columns[i].version = tick
	}
}

func chunkCapacity(budget int, components []*ComponentType) int {
	row := int(unsafe.Sizeof(Entity{}))
	for _, ct := range components {
		row += int(ct.size)
	}
	return min(max(budget/row, 1), MaxChunkCapacity)
}

// ChunkView exposes one chunk to chunk-level iteration. Column access through
// AccessibleComponent.Column honours the access declared by the query.
type ChunkView struct {
	ref    chunkRef
	access *AccessSet
	tick   uint64
}

type chunkRef struct {
	arch  *archetype
	chunk *chunk
}

func (v ChunkView) Len() int {
	return v.ref.chunk.len
}

// Entities returns the handles of the occupied slots in slot order.
func (v ChunkView) Entities() []Entity {
	return v.ref.chunk.entities[:v.ref.chunk.len]
}

func (v ChunkView) Archetype() Archetype {
	return v.ref.arch
}

// Version reports the tick at which the component's column in this chunk was
// last written, or false when the chunk does not carry it.
func (v ChunkView) Version(c Component) (uint64, bool) {
	col := v.ref.arch.columnIndex(c.Descriptor().id)
	if col < 0 {
		return 0, false
	}
	return v.ref.chunk.columns[col].version, true
}
