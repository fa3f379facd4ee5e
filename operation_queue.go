package depot

import (
	"fmt"

	"go.uber.org/multierr"
)

type operationType int

const (
	opCreate operationType = iota
	opDestroy
	opAddComponent
	opRemoveComponent
)

func (t operationType) String() string {
	switch t {
	case opCreate:
		return "create"
	case opDestroy:
		return "destroy"
	case opAddComponent:
		return "add component"
	case opRemoveComponent:
		return "remove component"
	}
	return fmt.Sprintf("operationType(%d)", int(t))
}

type operation struct {
	typ       operationType
	entity    Entity
	values    []Value
	component Component
}

// CommandBuffer records structural changes for later application, typically
// by a system while the world is locked for iteration. A CommandBuffer is not
// safe for concurrent use; give each goroutine its own.
type CommandBuffer struct {
	ops            []operation
	pendingDestroy map[Entity]struct{}
}

func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{
		pendingDestroy: make(map[Entity]struct{}),
	}
}

// Spawn records the creation of an entity with the given values.
func (b *CommandBuffer) Spawn(values ...Value) {
	b.ops = append(b.ops, operation{typ: opCreate, values: append([]Value(nil), values...)})
}

// Destroy records the destruction of e. Recording the same entity twice, and
// any component change recorded for it afterwards, is dropped.
func (b *CommandBuffer) Destroy(e Entity) {
	if _, exists := b.pendingDestroy[e]; exists {
		return
	}
	b.pendingDestroy[e] = struct{}{}
	b.ops = append(b.ops, operation{typ: opDestroy, entity: e})
}

func (b *CommandBuffer) Add(e Entity, v Value) {
	if _, isDestroyed := b.pendingDestroy[e]; isDestroyed {
		return
	}
	b.ops = append(b.ops, operation{typ: opAddComponent, entity: e, values: []Value{v}})
}

func (b *CommandBuffer) Remove(e Entity, c Component) {
	if _, isDestroyed := b.pendingDestroy[e]; isDestroyed {
		return
	}
	b.ops = append(b.ops, operation{typ: opRemoveComponent, entity: e, component: c})
}

// Len is the number of recorded operations.
func (b *CommandBuffer) Len() int {
	return len(b.ops)
}

// Reset discards every recorded operation.
func (b *CommandBuffer) Reset() {
	clear(b.ops)
	b.ops = b.ops[:0]
	clear(b.pendingDestroy)
}

// Apply replays the recorded operations against s in recording order. A
// failing operation does not stop the replay; all failures are combined in the
// returned error. The buffer is empty afterwards.
func (b *CommandBuffer) Apply(s Storage) error {
	if len(b.ops) == 0 {
		return nil
	}
	defer b.Reset()

	var errs error
	for i, op := range b.ops {
		var err error
		switch op.typ {
		case opCreate:
			_, err = s.NewEntity(op.values...)
		case opDestroy:
			// destroying a stale entity is a no-op
			s.DestroyEntity(op.entity)
		case opAddComponent:
			err = s.AddComponent(op.entity, op.values[0])
		case opRemoveComponent:
			err = s.RemoveComponent(op.entity, op.component)
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("command %d (%v): %w", i, op.typ, err))
		}
	}
	return errs
}
