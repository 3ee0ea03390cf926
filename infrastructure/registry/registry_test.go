package registry

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"neteria/application"
	"neteria/protocol"
)

func newClientID(t *testing.T) protocol.ClientID {
	t.Helper()
	id, err := protocol.NewClientID()
	if err != nil {
		t.Fatalf("NewClientID: %v", err)
	}
	return id
}

func TestMapRegistry_UpsertThenGet(t *testing.T) {
	r := NewMapRegistry()
	cuuid := newClientID(t)
	addr := netip.MustParseAddrPort("10.0.0.5:40080")

	r.Upsert(application.ClientEntry{CUUID: cuuid, Address: addr, RegisteredAt: time.Now()})

	got, err := r.Get(cuuid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Address != addr {
		t.Fatalf("Address = %v, want %v", got.Address, addr)
	}
}

func TestMapRegistry_Get_MissingReturnsErrClientNotFound(t *testing.T) {
	r := NewMapRegistry()
	_, err := r.Get(newClientID(t))
	if !errors.Is(err, application.ErrClientNotFound) {
		t.Fatalf("err = %v, want ErrClientNotFound", err)
	}
}

func TestMapRegistry_Upsert_PreservesPublicKeyWhenNotResent(t *testing.T) {
	r := NewMapRegistry()
	cuuid := newClientID(t)
	key := &application.PublicKey{}

	r.Upsert(application.ClientEntry{CUUID: cuuid, PublicKey: key})
	r.Upsert(application.ClientEntry{CUUID: cuuid, Address: netip.MustParseAddrPort("10.0.0.6:1")})

	got, err := r.Get(cuuid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.PublicKey != key {
		t.Fatal("expected previously stored public key to survive a re-register without one")
	}
}

func TestMapRegistry_Delete(t *testing.T) {
	r := NewMapRegistry()
	cuuid := newClientID(t)
	r.Upsert(application.ClientEntry{CUUID: cuuid})
	r.Delete(cuuid)

	if _, err := r.Get(cuuid); !errors.Is(err, application.ErrClientNotFound) {
		t.Fatalf("expected deleted client to be gone, got err=%v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", r.Len())
	}
}

func TestConcurrentRegistry_SafeUnderConcurrentAccess(t *testing.T) {
	r := NewConcurrentRegistry(NewMapRegistry())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		cuuid := newClientID(t)
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Upsert(application.ClientEntry{CUUID: cuuid})
			_, _ = r.Get(cuuid)
			r.Delete(cuuid)
		}()
	}
	wg.Wait()
}

func TestTTLRegistry_EvictsIdleEntriesAfterTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewTTLRegistry(ctx, NewMapRegistry(), 20*time.Millisecond, 5*time.Millisecond)
	cuuid := newClientID(t)
	r.Upsert(application.ClientEntry{CUUID: cuuid})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.Len() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected idle entry to be evicted")
}
