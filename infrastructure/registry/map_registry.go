// Package registry implements the server's ClientID-keyed session table as
// a plain map wrapped by composable decorators providing concurrency
// safety and idle-session expiry.
package registry

import (
	"neteria/application"
	"neteria/protocol"
)

// MapRegistry is the unsynchronized base implementation: a plain map. It is
// only safe for single-goroutine use; wrap it in ConcurrentRegistry for
// concurrent access from the receive loop and the scheduler loop.
type MapRegistry struct {
	entries map[protocol.ClientID]application.ClientEntry
}

// NewMapRegistry builds an empty registry.
func NewMapRegistry() *MapRegistry {
	return &MapRegistry{entries: make(map[protocol.ClientID]application.ClientEntry)}
}

var _ application.ClientRegistry = (*MapRegistry)(nil)

// Upsert merges entry's fields into any existing record for its CUUID. A
// zero PublicKey in entry does not clobber a previously stored one, which
// is what lets a client re-register without encryption after once
// registering with it.
func (m *MapRegistry) Upsert(entry application.ClientEntry) {
	existing, ok := m.entries[entry.CUUID]
	if ok && entry.PublicKey == nil {
		entry.PublicKey = existing.PublicKey
	}
	m.entries[entry.CUUID] = entry
}

func (m *MapRegistry) Get(cuuid protocol.ClientID) (application.ClientEntry, error) {
	entry, ok := m.entries[cuuid]
	if !ok {
		return application.ClientEntry{}, application.ErrClientNotFound
	}
	return entry, nil
}

func (m *MapRegistry) Delete(cuuid protocol.ClientID) {
	delete(m.entries, cuuid)
}

func (m *MapRegistry) Len() int {
	return len(m.entries)
}
