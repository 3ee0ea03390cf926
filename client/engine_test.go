package client

import (
	"context"
	"encoding/json"
	"net/netip"
	"sync"
	"testing"
	"time"

	"neteria/application"
	"neteria/protocol"
)

type discardLogger struct{}

func (discardLogger) Printf(string, ...any) {}

// encodeTestMessage/decodeTestMessage give the tests a way to build and
// inspect wire payloads without depending on infrastructure/codec, using
// plain encoding/json directly against protocol.Message's own tags.
func encodeTestMessage(msg protocol.Message) []byte {
	b, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}
	return b
}

func decodeTestMessage(payload []byte) protocol.Message {
	var msg protocol.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		panic(err)
	}
	return msg
}

// fakeCodec is a plain JSON codec stand-in with no compression or
// encryption layering, so engine tests can focus on state-machine behavior.
type fakeCodec struct{}

func (fakeCodec) Encode(msg protocol.Message, _ *application.PublicKey) ([]byte, error) {
	return encodeTestMessage(msg), nil
}

func (fakeCodec) Decode(payload []byte, _ bool) (protocol.Message, error) {
	return decodeTestMessage(payload), nil
}

// fakeScheduler runs callbacks only when Fire is called explicitly, giving
// tests full control over retransmit timing.
type fakeScheduler struct {
	mu      sync.Mutex
	pending []func()
}

func (s *fakeScheduler) CallLater(_ time.Duration, fn func()) {
	s.mu.Lock()
	s.pending = append(s.pending, fn)
	s.mu.Unlock()
}

func (s *fakeScheduler) Run(stop <-chan struct{}) { <-stop }

// Fire runs and clears exactly the callbacks pending at the time of the
// call, mirroring one scheduler tick; callbacks scheduled during firing are
// deferred to the next Fire.
func (s *fakeScheduler) Fire() {
	s.mu.Lock()
	due := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, fn := range due {
		fn()
	}
}

// fakeTransport records every Send call and lets tests inject received
// datagrams without a real socket.
type fakeTransport struct {
	mu   sync.Mutex
	sent []sentDatagram
}

type sentDatagram struct {
	payload []byte
	addr    netip.AddrPort
	mode    application.SendMode
}

func (t *fakeTransport) LocalPort() int { return 0 }

func (t *fakeTransport) Send(_ context.Context, payload []byte, addr netip.AddrPort, mode application.SendMode) error {
	t.mu.Lock()
	t.sent = append(t.sent, sentDatagram{payload: payload, addr: addr, mode: mode})
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) Listen(ctx context.Context, _ func([]byte, netip.AddrPort)) error {
	<-ctx.Done()
	return nil
}

func (t *fakeTransport) Stats() application.Stats { return application.Stats{} }
func (t *fakeTransport) Close() error             { return nil }

func (t *fakeTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func (t *fakeTransport) last() sentDatagram {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent[len(t.sent)-1]
}

func newTestEngine(t *testing.T) (*Engine, *fakeTransport, *fakeScheduler) {
	t.Helper()
	cuuid, err := protocol.NewClientID()
	if err != nil {
		t.Fatalf("NewClientID: %v", err)
	}
	tr := &fakeTransport{}
	sched := &fakeScheduler{}
	cfg := DefaultConfig()
	cfg.Version = "1.0.2"
	cfg.ServerPort = 40080
	e := New(cuuid, cfg, tr, fakeCodec{}, sched, discardLogger{}, nil)
	return e, tr, sched
}

func TestEngine_DiscoverThenAutoRegister(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	serverAddr := netip.MustParseAddrPort("10.0.0.5:40080")

	if err := e.Discover(context.Background(), true); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if tr.sentCount() != 1 {
		t.Fatalf("expected 1 datagram sent, got %d", tr.sentCount())
	}
	if tr.last().mode != application.SendBroadcast {
		t.Fatalf("expected broadcast mode, got %v", tr.last().mode)
	}

	e.HandleIncoming(encodeTestMessage(protocol.Message{
		Method:     protocol.MethodOHAIClient,
		Version:    "1.0.2",
		ServerName: "S",
	}), serverAddr)

	if tr.sentCount() != 2 {
		t.Fatalf("expected auto-register to send REGISTER, got %d sends", tr.sentCount())
	}
	if tr.last().addr != serverAddr {
		t.Fatalf("expected REGISTER to %s, got %s", serverAddr, tr.last().addr)
	}

	e.HandleIncoming(encodeTestMessage(protocol.Message{Method: protocol.MethodOKRegister}), serverAddr)

	if !e.Registered() {
		t.Fatal("expected client to be registered")
	}
	if e.ServerAddress() != serverAddr {
		t.Fatalf("expected server address %s, got %s", serverAddr, e.ServerAddress())
	}
}

func TestEngine_Event_RequiresRegistration(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.Event(context.Background(), "hi", protocol.PriorityNormal); err != ErrNotRegistered {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestEngine_Event_LegalDeletesPending(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	serverAddr := netip.MustParseAddrPort("10.0.0.5:40080")
	e.HandleIncoming(encodeTestMessage(protocol.Message{Method: protocol.MethodOKRegister}), serverAddr)

	euuid, err := e.Event(context.Background(), "hi", protocol.PriorityNormal)
	if err != nil {
		t.Fatalf("Event: %v", err)
	}

	e.HandleIncoming(encodeTestMessage(protocol.Message{
		Method:   protocol.MethodLegal,
		EUUID:    &euuid,
		Priority: protocol.PriorityNormal,
	}), serverAddr)

	e.mu.Lock()
	_, stillPending := e.pendingEvents[euuid]
	e.mu.Unlock()
	if stillPending {
		t.Fatal("expected pending entry deleted after LEGAL")
	}

	if _, ok := e.EventConfirmation(euuid); ok {
		t.Fatal("normal-priority LEGAL should not populate event confirmations")
	}

	last := tr.last()
	got := decodeTestMessage(last.payload)
	if got.Method != protocol.MethodOKEvent {
		t.Fatalf("expected OK EVENT reply, got %s", got.Method)
	}
}

func TestEngine_Event_IllegalRollsBack(t *testing.T) {
	e, _, _ := newTestEngine(t)
	serverAddr := netip.MustParseAddrPort("10.0.0.5:40080")
	e.HandleIncoming(encodeTestMessage(protocol.Message{Method: protocol.MethodOKRegister}), serverAddr)

	euuid, err := e.Event(context.Background(), "spend_gold", protocol.PriorityNormal)
	if err != nil {
		t.Fatalf("Event: %v", err)
	}

	e.HandleIncoming(encodeTestMessage(protocol.Message{
		Method:   protocol.MethodIllegal,
		EUUID:    &euuid,
		Priority: protocol.PriorityNormal,
	}), serverAddr)

	data, ok := e.Rollback(euuid)
	if !ok {
		t.Fatal("expected rollback entry for illegal event")
	}
	if data != "spend_gold" {
		t.Fatalf("unexpected rollback payload: %v", data)
	}
}

func TestEngine_Event_RetryExhaustionDeletesSilently(t *testing.T) {
	e, tr, sched := newTestEngine(t)
	serverAddr := netip.MustParseAddrPort("10.0.0.5:40080")
	e.HandleIncoming(encodeTestMessage(protocol.Message{Method: protocol.MethodOKRegister}), serverAddr)

	if _, err := e.Event(context.Background(), "hi", protocol.PriorityNormal); err != nil {
		t.Fatalf("Event: %v", err)
	}
	if tr.sentCount() != 1 {
		t.Fatalf("expected 1 initial send, got %d", tr.sentCount())
	}

	for i := 0; i < e.cfg.MaxRetries; i++ {
		sched.Fire()
	}
	if tr.sentCount() != 1+e.cfg.MaxRetries {
		t.Fatalf("expected %d sends after %d retries, got %d", 1+e.cfg.MaxRetries, e.cfg.MaxRetries, tr.sentCount())
	}

	sched.Fire() // exhaustion wake: no send, entry deleted
	if tr.sentCount() != 1+e.cfg.MaxRetries {
		t.Fatalf("expected no further sends after retry exhaustion, got %d", tr.sentCount())
	}

	sched.Fire() // nothing left scheduled
	if tr.sentCount() != 1+e.cfg.MaxRetries {
		t.Fatal("expected scheduler to have nothing left to fire")
	}
}

func TestEngine_VersionMismatch_ByeRegisterStaysUnregistered(t *testing.T) {
	e, _, _ := newTestEngine(t)
	serverAddr := netip.MustParseAddrPort("10.0.0.5:40080")

	e.HandleIncoming(encodeTestMessage(protocol.Message{Method: protocol.MethodByeRegister}), serverAddr)

	if e.Registered() {
		t.Fatal("expected client to remain unregistered after BYE REGISTER")
	}
}

func TestEngine_Notify_StoresInboxAndAcks(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	serverAddr := netip.MustParseAddrPort("10.0.0.5:40080")

	euuid, err := protocol.NewEventID()
	if err != nil {
		t.Fatalf("NewEventID: %v", err)
	}

	e.HandleIncoming(encodeTestMessage(protocol.Message{
		Method:    protocol.MethodNotify,
		EUUID:     &euuid,
		EventData: "incoming_attack",
	}), serverAddr)

	data, ok := e.NotifyInbox(euuid)
	if !ok || data != "incoming_attack" {
		t.Fatalf("expected notify inbox entry, got %v %v", data, ok)
	}

	got := decodeTestMessage(tr.last().payload)
	if got.Method != protocol.MethodOKNotify {
		t.Fatalf("expected OK NOTIFY reply, got %s", got.Method)
	}
}

func TestEngine_DrainNotifications_ClearsInbox(t *testing.T) {
	e, _, _ := newTestEngine(t)
	serverAddr := netip.MustParseAddrPort("10.0.0.5:40080")

	euuid, err := protocol.NewEventID()
	if err != nil {
		t.Fatalf("NewEventID: %v", err)
	}
	e.HandleIncoming(encodeTestMessage(protocol.Message{
		Method:    protocol.MethodNotify,
		EUUID:     &euuid,
		EventData: "incoming_attack",
	}), serverAddr)

	drained := e.DrainNotifications()
	if len(drained) != 1 || drained[euuid] != "incoming_attack" {
		t.Fatalf("expected drained inbox with one entry, got %v", drained)
	}

	if _, ok := e.NotifyInbox(euuid); ok {
		t.Fatal("expected inbox entry to be gone after drain")
	}
	if drained2 := e.DrainNotifications(); len(drained2) != 0 {
		t.Fatalf("expected empty drain on second call, got %v", drained2)
	}
}
