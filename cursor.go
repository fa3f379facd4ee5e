package depot

import (
	"iter"
)

var _ iCursor = &Cursor{}

func newCursor(q *query, w *World) *Cursor {
	return &Cursor{
		query: q,
		world: w,
	}
}

// newScopedCursor walks a single chunk. The caller holds the world lock.
func newScopedCursor(q *query, w *World, target chunkRef) *Cursor {
	return &Cursor{
		query:       q,
		world:       w,
		targets:     []chunkRef{target},
		slot:        -1,
		initialized: true,
		scoped:      true,
	}
}

// Next advances to the next matching entity. The world stays locked against
// structural changes until Next returns false or Reset is called.
func (c *Cursor) Next() bool {
	if !c.initialized {
		c.initialize()
	}
	c.slot++
	for c.current.chunk == nil || c.slot >= c.current.chunk.len {
		if !c.advance() {
			c.Reset()
			return false
		}
	}
	return true
}

func (c *Cursor) advance() bool {
	if c.index >= len(c.targets) {
		return false
	}
	c.current = c.targets[c.index]
	c.index++
	c.slot = 0
	c.markWrites()
	return true
}

// markWrites stamps the columns this query may write in the current chunk.
func (c *Cursor) markWrites() {
	tick := c.world.tick
	for i, ct := range c.current.arch.components {
		if c.query.access.CanWrite(ct) {
			c.current.chunk.columns[i].version = tick
		}
	}
}

func (c *Cursor) Entities() iter.Seq2[Entity, *Cursor] {
	return func(yield func(Entity, *Cursor) bool) {
		defer c.Reset()
		for c.Next() {
			if !yield(c.Entity(), c) {
				return
			}
		}
	}
}

func (c *Cursor) initialize() {
	if c.initialized {
		return
	}
	c.world.Lock()
	c.targets = c.query.collect(c.world)
	c.index = 0
	c.slot = -1
	c.current = chunkRef{}
	c.initialized = true
}

// Reset abandons the iteration and releases the world lock. It is safe to
// call more than once. Scoped cursors stay exhausted: they never lock the
// world and never select chunks of their own.
func (c *Cursor) Reset() {
	if c.initialized && !c.scoped {
		c.world.Unlock()
	}
	c.targets = nil
	c.index = 0
	c.slot = -1
	c.current = chunkRef{}
	c.initialized = c.scoped
}

// Entity is the handle of the entity at the cursor position.
func (c *Cursor) Entity() Entity {
	return c.current.chunk.entities[c.slot]
}

func (c *Cursor) RemainingInChunk() int {
	if c.current.chunk == nil {
		return 0
	}
	return c.current.chunk.len - c.slot - 1
}

// TotalMatched counts the entities the iteration will visit.
func (c *Cursor) TotalMatched() int {
	if !c.initialized {
		c.initialize()
	}
	total := 0
	for _, ref := range c.targets {
		total += ref.chunk.len
	}
	return total
}

func (c *Cursor) column(ct *ComponentType, mode AccessMode) (*column, bool) {
	allowed := c.query.access.CanRead(ct)
	if mode == AccessWrite {
		allowed = c.query.access.CanWrite(ct)
	}
	if !allowed {
		panic(AccessConflictError{
			Op:     "cursor",
			Reason: mode.String() + " of " + ct.name + " was not declared by the query",
		})
	}
	col := c.current.arch.columnIndex(ct.id)
	if col < 0 {
		return nil, false
	}
	return &c.current.chunk.columns[col], true
}
