package depot

import (
	"iter"

	"github.com/TheBitDrifter/mask"
)

// Storage is the structural mutation surface of a World. Command buffers
// replay recorded operations against it.
type Storage interface {
	NewEntity(values ...Value) (Entity, error)
	NewEntities(n int, components ...Component) ([]Entity, error)
	DestroyEntity(Entity) bool
	AddComponent(Entity, Value) error
	RemoveComponent(Entity, Component) error
	Alive(Entity) bool
	Locked() bool
	Lock()
	Unlock()
}

type EntityDestroyCallback func(Entity)

type Archetype interface {
	mask.Maskable
	ID() uint32
	ComponentTypes() iter.Seq[*ComponentType]
}

type Query interface {
	QueryNode
	And(items ...any) QueryNode
	Or(items ...any) QueryNode
	Not(items ...any) QueryNode
	ChangedSince(tick uint64, components ...Component) Query
	Accesses() AccessSet
	ForEach(w *World, fn func(*Cursor))
	ParForEach(w *World, pool *WorkerPool, fn func(*Cursor))
	ParForEachChunk(w *World, pool *WorkerPool, fn func(ChunkView))
}

type QueryNode interface {
	Evaluate(archetype Archetype) bool
}

type iCursor interface {
	Entities() iter.Seq2[Entity, *Cursor]
	Next() bool
}

type Cache[T any] interface {
	GetIndex(string) (int, bool)
	GetItem(int) *T
	GetItem32(uint32) *T
	Len() int
	Register(string, T) (int, error)
}

// Warning: internal Dependencies abound!
type Cursor struct {
	query *query
	world *World

	// Chunks selected when iteration started
	targets []chunkRef
	index   int
	slot    int
	current chunkRef

	initialized bool
	// scoped cursors walk a single chunk on behalf of a parallel iteration
	// that already holds the world lock
	scoped bool
}

// AccessibleComponent extends a registered ComponentType with typed access
// to its column data.
type AccessibleComponent[T any] struct {
	*ComponentType
}
