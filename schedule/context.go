package schedule

import (
	"github.com/TheBitDrifter/depot"
	"go.uber.org/zap"
)

// Context is handed to a system for one run.
type Context struct {
	World *depot.World
	// Commands collects structural changes; they are applied after the stage.
	Commands *depot.CommandBuffer
	// Tick is the change tick writes of this run are stamped with.
	Tick uint64
	// LastRun is the change tick of the system's previous run, zero on the
	// first run. Pass it to Query.ChangedSince to see what changed since.
	LastRun uint64
	Logger  *zap.Logger
	Pool    *depot.WorkerPool

	system *System
}

// Cursor returns a cursor over q. It panics with depot.AccessConflictError if
// q touches components the system did not declare.
func (c *Context) Cursor(q depot.Query) *depot.Cursor {
	c.check(q)
	return depot.Factory.NewCursor(q, c.World)
}

func (c *Context) ForEach(q depot.Query, fn func(*depot.Cursor)) {
	c.check(q)
	q.ForEach(c.World, fn)
}

func (c *Context) ParForEach(q depot.Query, fn func(*depot.Cursor)) {
	c.check(q)
	q.ParForEach(c.World, c.Pool, fn)
}

func (c *Context) ParForEachChunk(q depot.Query, fn func(depot.ChunkView)) {
	c.check(q)
	q.ParForEachChunk(c.World, c.Pool, fn)
}

func (c *Context) check(q depot.Query) {
	accesses := q.Accesses()
	if !c.system.access.Covers(accesses) {
		panic(depot.AccessConflictError{
			Op:     "system " + c.system.name,
			Reason: "query accesses " + accesses.String() + " exceed the declared " + c.system.access.String(),
		})
	}
}
