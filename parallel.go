package depot

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// WorkerPool bounds how many tasks of one batch run at the same time.
type WorkerPool struct {
	workers int
}

// NewWorkerPool returns a pool of n workers, or runtime.GOMAXPROCS(0) when n
// is not positive.
func NewWorkerPool(n int) *WorkerPool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return &WorkerPool{workers: n}
}

func (p *WorkerPool) Workers() int {
	return p.workers
}

// Run executes tasks and waits for all of them. It returns the first error.
// If a task panics, the remaining tasks still finish and the first panic is
// raised again on the calling goroutine.
func (p *WorkerPool) Run(tasks ...func() error) error {
	var (
		g         errgroup.Group
		once      sync.Once
		recovered any
	)
	g.SetLimit(p.workers)
	for _, task := range tasks {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() { recovered = r })
					err = fmt.Errorf("task panicked: %v", r)
				}
			}()
			return task()
		})
	}
	err := g.Wait()
	if recovered != nil {
		panic(recovered)
	}
	return err
}

func poolOrDefault(p *WorkerPool) *WorkerPool {
	if p == nil {
		return NewWorkerPool(0)
	}
	return p
}

// ParForEach runs fn for every matching entity, spreading chunks over the
// pool. Entities of one chunk are visited in order by a single worker. fn must
// only touch data through the cursor.
func (q *query) ParForEach(w *World, pool *WorkerPool, fn func(*Cursor)) {
	w.Lock()
	defer w.Unlock()
	targets := q.collect(w)
	tasks := make([]func() error, len(targets))
	for i, ref := range targets {
		tasks[i] = func() error {
			cursor := newScopedCursor(q, w, ref)
			for cursor.Next() {
				fn(cursor)
			}
			return nil
		}
	}
	_ = poolOrDefault(pool).Run(tasks...)
}

// ParForEachChunk hands each matching chunk to fn on the pool.
func (q *query) ParForEachChunk(w *World, pool *WorkerPool, fn func(ChunkView)) {
	w.Lock()
	defer w.Unlock()
	access := q.access.Clone()
	targets := q.collect(w)
	tasks := make([]func() error, len(targets))
	for i, ref := range targets {
		view := ChunkView{ref: ref, access: &access, tick: w.tick}
		tasks[i] = func() error {
			fn(view)
			return nil
		}
	}
	_ = poolOrDefault(pool).Run(tasks...)
}
