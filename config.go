package depot

import (
	"sync"

	"go.uber.org/zap"
)

// Config holds process-wide defaults applied to worlds at construction.
var Config config = config{
	chunkBytes: DefaultChunkBytes,
}

type config struct {
	mu          sync.RWMutex
	chunkBytes  int
	entityLimit int
	logger      *zap.Logger
}

// SetChunkBytes sets the memory budget of a single chunk. Values below the
// size of one entity row still yield chunks of capacity one.
func (c *config) SetChunkBytes(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 {
		n = DefaultChunkBytes
	}
	c.chunkBytes = n
}

// SetEntityLimit caps the number of entity slots a world may allocate.
// Zero means no limit beyond the index width.
func (c *config) SetEntityLimit(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entityLimit = max(n, 0)
}

// SetLogger configures the logger handed to new worlds and schedulers.
func (c *config) SetLogger(l *zap.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = l
}

func (c *config) Logger() *zap.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.logger == nil {
		return zap.NewNop()
	}
	return c.logger
}

func (c *config) snapshot() (chunkBytes, entityLimit int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.chunkBytes, c.entityLimit
}
