package registry

import (
	"context"
	"sync"
	"time"

	"neteria/application"
	"neteria/protocol"
)

// TTLRegistry wraps an application.ClientRegistry with idle-session expiry.
// This is an operator opt-in: a server built with idle timeout of zero
// never evicts, which is the default and preserves the base behavior of
// removing entries only on retry exhaustion, never on a timer.
type TTLRegistry struct {
	ctx     context.Context
	inner   application.ClientRegistry
	idle    time.Duration
	sweep   time.Duration
	mu      sync.Mutex
	lastHit map[protocol.ClientID]time.Time
}

// NewTTLRegistry wraps inner, evicting any client whose registry entry has
// not been touched (Upsert or Get) for idle. sweep controls how often the
// background reaper checks. Call with a cancellable ctx; the reaper
// goroutine exits when ctx is done.
func NewTTLRegistry(ctx context.Context, inner application.ClientRegistry, idle, sweep time.Duration) *TTLRegistry {
	t := &TTLRegistry{
		ctx:     ctx,
		inner:   inner,
		idle:    idle,
		sweep:   sweep,
		lastHit: make(map[protocol.ClientID]time.Time),
	}
	go t.reap()
	return t
}

var _ application.ClientRegistry = (*TTLRegistry)(nil)

func (t *TTLRegistry) Upsert(entry application.ClientEntry) {
	t.inner.Upsert(entry)
	t.touch(entry.CUUID)
}

func (t *TTLRegistry) Get(cuuid protocol.ClientID) (application.ClientEntry, error) {
	entry, err := t.inner.Get(cuuid)
	if err != nil {
		return entry, err
	}
	t.touch(cuuid)
	return entry, nil
}

func (t *TTLRegistry) Delete(cuuid protocol.ClientID) {
	t.inner.Delete(cuuid)
	t.mu.Lock()
	delete(t.lastHit, cuuid)
	t.mu.Unlock()
}

func (t *TTLRegistry) Len() int {
	return t.inner.Len()
}

func (t *TTLRegistry) touch(cuuid protocol.ClientID) {
	t.mu.Lock()
	t.lastHit[cuuid] = time.Now()
	t.mu.Unlock()
}

func (t *TTLRegistry) reap() {
	ticker := time.NewTicker(t.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			var expired []protocol.ClientID

			t.mu.Lock()
			for cuuid, last := range t.lastHit {
				if now.Sub(last) > t.idle {
					expired = append(expired, cuuid)
				}
			}
			t.mu.Unlock()

			for _, cuuid := range expired {
				t.Delete(cuuid)
			}
		}
	}
}
