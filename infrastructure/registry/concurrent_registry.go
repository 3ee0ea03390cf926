package registry

import (
	"sync"

	"neteria/application"
	"neteria/protocol"
)

// ConcurrentRegistry wraps an application.ClientRegistry with an RWMutex
// so the receive loop and the scheduler loop can share it safely.
type ConcurrentRegistry struct {
	mu    sync.RWMutex
	inner application.ClientRegistry
}

// NewConcurrentRegistry wraps inner for safe concurrent access.
func NewConcurrentRegistry(inner application.ClientRegistry) *ConcurrentRegistry {
	return &ConcurrentRegistry{inner: inner}
}

var _ application.ClientRegistry = (*ConcurrentRegistry)(nil)

func (c *ConcurrentRegistry) Upsert(entry application.ClientEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Upsert(entry)
}

func (c *ConcurrentRegistry) Get(cuuid protocol.ClientID) (application.ClientEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inner.Get(cuuid)
}

func (c *ConcurrentRegistry) Delete(cuuid protocol.ClientID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Delete(cuuid)
}

func (c *ConcurrentRegistry) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inner.Len()
}
