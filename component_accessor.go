package depot

import "unsafe"

// With pairs the component with a value for NewEntity, AddComponent and
// command buffers.
func (c AccessibleComponent[T]) With(v T) Value {
	return componentValue[T]{ct: c.ComponentType, v: v}
}

// Read returns a copy of the component for the entity at the cursor. The
// query must declare the component.
func (c AccessibleComponent[T]) Read(cursor *Cursor) T {
	col, ok := cursor.column(c.ComponentType, AccessRead)
	if !ok {
		panic(ComponentNotFoundError{Component: c.ComponentType})
	}
	return *(*T)(col.at(cursor.slot))
}

// Write returns a pointer to the component for the entity at the cursor. The
// query must declare it with Write.
func (c AccessibleComponent[T]) Write(cursor *Cursor) *T {
	col, ok := cursor.column(c.ComponentType, AccessWrite)
	if !ok {
		panic(ComponentNotFoundError{Component: c.ComponentType})
	}
	return (*T)(col.at(cursor.slot))
}

func (c AccessibleComponent[T]) TryRead(cursor *Cursor) (T, bool) {
	col, ok := cursor.column(c.ComponentType, AccessRead)
	if !ok {
		var zero T
		return zero, false
	}
	return *(*T)(col.at(cursor.slot)), true
}

func (c AccessibleComponent[T]) TryWrite(cursor *Cursor) (*T, bool) {
	col, ok := cursor.column(c.ComponentType, AccessWrite)
	if !ok {
		return nil, false
	}
	return (*T)(col.at(cursor.slot)), true
}

// CheckCursor determines if the component exists in the archetype at the cursor position
func (c AccessibleComponent[T]) CheckCursor(cursor *Cursor) bool {
	return cursor.current.arch != nil && cursor.current.arch.has(c.id)
}

// Column returns the chunk's component array for reading. Callers must not
// write through it.
func (c AccessibleComponent[T]) Column(view ChunkView) []T {
	return c.slice(view, AccessRead)
}

// ColumnMut returns the chunk's component array for writing and marks it
// changed.
func (c AccessibleComponent[T]) ColumnMut(view ChunkView) []T {
	col := c.slice(view, AccessWrite)
	if idx := view.ref.arch.columnIndex(c.id); idx >= 0 {
		view.ref.chunk.columns[idx].version = view.tick
	}
	return col
}

func (c AccessibleComponent[T]) slice(view ChunkView, mode AccessMode) []T {
	allowed := view.access.CanRead(c.ComponentType)
	if mode == AccessWrite {
		allowed = view.access.CanWrite(c.ComponentType)
	}
	if !allowed {
		panic(AccessConflictError{
			Op:     "chunk view",
			Reason: mode.String() + " of " + c.name + " was not declared",
		})
	}
	idx := view.ref.arch.columnIndex(c.id)
	if idx < 0 {
		return nil
	}
	col := &view.ref.chunk.columns[idx]
	return unsafe.Slice((*T)(col.base), view.ref.chunk.len)
}
