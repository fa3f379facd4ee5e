package depot

type factory struct{}

// Factory is the global factory instance for creating worlds, queries and
// cursors.
var Factory factory

func (f factory) NewWorld(opts ...WorldOption) *World {
	return newWorld(opts...)
}

func (f factory) NewQuery() Query {
	return newQuery()
}

// NewCursor creates a cursor over q. q must have been built by NewQuery.
func (f factory) NewCursor(q Query, w *World) *Cursor {
	return newCursor(q.(*query), w)
}

func (f factory) NewCommandBuffer() *CommandBuffer {
	return NewCommandBuffer()
}

func FactoryNewCache[T any](cap int) Cache[T] {
	return &SimpleCache[T]{
		itemIndices: make(map[string]int),
		maxCapacity: cap,
	}
}
