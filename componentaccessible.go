package depot

// Get retrieves e's component for reading. It returns false when e is stale
// or lacks the component. The pointer is valid until the next structural
// change; writing through it is not recorded by change detection.
func (c AccessibleComponent[T]) Get(w *World, e Entity) (*T, bool) {
	col, slot, ok := w.locate(e, c.ComponentType)
	if !ok {
		return nil, false
	}
	return (*T)(col.at(slot)), true
}

// GetMut is Get for writing; the component's column is marked changed.
func (c AccessibleComponent[T]) GetMut(w *World, e Entity) (*T, bool) {
	col, slot, ok := w.locate(e, c.ComponentType)
	if !ok {
		return nil, false
	}
	col.version = w.tick
	return (*T)(col.at(slot)), true
}

// Set overwrites a component e already has.
func (c AccessibleComponent[T]) Set(w *World, e Entity, v T) error {
	if !w.Alive(e) {
		return StaleEntityError{Entity: e}
	}
	ptr, ok := c.GetMut(w, e)
	if !ok {
		return ComponentNotFoundError{Component: c.ComponentType}
	}
	*ptr = v
	return nil
}

func (c AccessibleComponent[T]) Add(w *World, e Entity, v T) error {
	return w.AddComponent(e, c.With(v))
}

func (c AccessibleComponent[T]) Remove(w *World, e Entity) error {
	return w.RemoveComponent(e, c)
}

// CheckEntity reports whether e is alive and carries the component.
func (c AccessibleComponent[T]) CheckEntity(w *World, e Entity) bool {
	return w.Has(e, c)
}
