package application

import (
	"errors"
	"net/netip"
	"time"

	"neteria/protocol"
)

// ErrClientNotFound is returned by ClientRegistry lookups that miss.
var ErrClientNotFound = errors.New("neteria: client not found in registry")

// ClientEntry is the server's per-client registry record (ClientRegistryEntry
// in the design).
type ClientEntry struct {
	CUUID        protocol.ClientID
	Address      netip.AddrPort
	RegisteredAt time.Time
	PublicKey    *PublicKey
}

// ClientRegistry is the server's ClientId-keyed session table. Concrete
// implementations may layer concurrency-safety and TTL expiry as decorators
// around a plain map-backed base (see infrastructure/registry).
type ClientRegistry interface {
	// Upsert merges entry's fields into any existing record for its
	// CUUID, or inserts it if new.
	Upsert(entry ClientEntry)

	// Get returns the entry for cuuid, or ErrClientNotFound.
	Get(cuuid protocol.ClientID) (ClientEntry, error)

	// Delete removes cuuid's entry, if present.
	Delete(cuuid protocol.ClientID)

	// Len reports the current number of registered clients.
	Len() int
}
