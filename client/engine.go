// Package client implements the client-side half of the message-exchange
// engine: discovery, registration, event submission, and the handlers
// that react to the server's adjudications and notifications.
package client

import (
	"context"
	"fmt"
	"math/big"
	"net/netip"
	"sync"
	"time"

	"neteria/application"
	"neteria/protocol"
)

// maxDatagramBytes mirrors network.MaxDatagramBytes. Duplicated here
// rather than imported to keep this package free of a dependency on the
// concrete transport implementation.
const maxDatagramBytes = 10_240

// Config holds the client engine's tunable knobs.
type Config struct {
	// Version is sent with OHAI and must match one of the server's
	// AllowedVersions for discovery to succeed.
	Version string
	// ServerPort is the UDP port discovery broadcasts are sent to.
	ServerPort int
	// Timeout is the retransmit interval for both registration and event
	// retries (default 2s).
	Timeout time.Duration
	// MaxRetries bounds retransmission before an entry is silently
	// dropped (default 4).
	MaxRetries int
}

// DefaultConfig returns the package defaults with no version or server
// port set; callers must fill those in.
func DefaultConfig() Config {
	return Config{
		Timeout:    2 * time.Second,
		MaxRetries: 4,
	}
}

// pendingEvent is the client-side record of an in-flight EVENT: enough to
// resend and, on ILLEGAL, enough to let the caller roll back.
type pendingEvent struct {
	method     string
	eventData  any
	priority   protocol.Priority
	retryCount int
}

// DiscoveredServer is one entry of Discovered's result.
type DiscoveredServer struct {
	Version    string
	ServerName string
}

// Engine is the client-side state machine. It is safe for concurrent use:
// HandleIncoming runs on the transport's receive goroutine while
// scheduler-driven retransmits run on the scheduler's goroutine, and both
// touch the same maps.
type Engine struct {
	cuuid protocol.ClientID
	cfg   Config

	transport  application.Transport
	codec      application.Codec
	scheduler  application.Scheduler
	logger     application.Logger
	encryption application.Encryption // nil disables client-side encryption

	mu                 sync.Mutex
	registered         bool
	registerAbandoned  bool
	serverAddress      netip.AddrPort
	serverPublicKey    *application.PublicKey
	registerRetries    int
	autoRegister       bool
	pendingEvents      map[protocol.EventID]*pendingEvent
	rollbacks          map[protocol.EventID]pendingEvent
	notifyInbox        map[protocol.EventID]any
	eventConfirmations map[protocol.EventID]pendingEvent
	discovered         map[netip.AddrPort]DiscoveredServer
}

// New builds a client engine. cuuid is minted once by the caller at process
// startup (protocol.NewClientID) and stays stable for the engine's
// lifetime. encryption may be nil to disable encryption entirely.
func New(cuuid protocol.ClientID, cfg Config, transport application.Transport, codec application.Codec, scheduler application.Scheduler, logger application.Logger, encryption application.Encryption) *Engine {
	return &Engine{
		cuuid:              cuuid,
		cfg:                cfg,
		transport:          transport,
		codec:              codec,
		scheduler:          scheduler,
		logger:             logger,
		encryption:         encryption,
		pendingEvents:      make(map[protocol.EventID]*pendingEvent),
		rollbacks:          make(map[protocol.EventID]pendingEvent),
		notifyInbox:        make(map[protocol.EventID]any),
		eventConfirmations: make(map[protocol.EventID]pendingEvent),
		discovered:         make(map[netip.AddrPort]DiscoveredServer),
	}
}

// Run drives the engine's receive loop and scheduler until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	stop := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(stop)
	}()
	go e.scheduler.Run(stop)

	return e.transport.Listen(ctx, e.HandleIncoming)
}

// Registered reports whether OK REGISTER has been received.
func (e *Engine) Registered() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registered
}

// ServerAddress reports the confirmed server address, valid once
// Registered() is true.
func (e *Engine) ServerAddress() netip.AddrPort {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.serverAddress
}

// Discover broadcasts OHAI on the configured server port. If autoRegister is
// true, the next OHAI Client reply triggers an immediate Register call
// against the responding address.
func (e *Engine) Discover(ctx context.Context, autoRegister bool) error {
	e.mu.Lock()
	e.autoRegister = autoRegister
	e.mu.Unlock()

	msg := protocol.Message{
		Method:  protocol.MethodOHAI,
		CUUID:   &e.cuuid,
		Version: e.cfg.Version,
	}
	payload, err := e.codec.Encode(msg, nil)
	if err != nil {
		return fmt.Errorf("neteria: encode OHAI: %w", err)
	}

	broadcast := netip.AddrPortFrom(netip.MustParseAddr("255.255.255.255"), uint16(e.cfg.ServerPort))
	return e.transport.Send(ctx, payload, broadcast, application.SendBroadcast)
}

// Register sends REGISTER to addr. When retry is true (the caller's first
// attempt, as opposed to an internal retransmit) the retry counter resets
// to zero. Retransmission is scheduled and continues against this same
// addr until registered or retries reach MaxRetries: the retransmit
// target is pinned to the address this call was first invoked with, not
// re-derived from Discovered on each retry.
func (e *Engine) Register(ctx context.Context, addr netip.AddrPort, retry bool) error {
	e.mu.Lock()
	if retry {
		e.registerRetries = 0
	}
	e.registerAbandoned = false
	e.mu.Unlock()

	if err := e.sendRegister(ctx, addr); err != nil {
		e.logger.Printf("neteria: send REGISTER to %s: %v", addr, err)
	}
	e.scheduleRegisterRetry(addr)
	return nil
}

func (e *Engine) sendRegister(ctx context.Context, addr netip.AddrPort) error {
	msg := protocol.Message{
		Method: protocol.MethodRegister,
		CUUID:  &e.cuuid,
	}
	if e.encryption != nil {
		pub := e.encryption.PublicKey()
		msg.Encryption = &protocol.PublicKeyParams{N: pub.N.String(), E: pub.E.String()}
	}

	payload, err := e.codec.Encode(msg, nil) // registration is always cleartext
	if err != nil {
		return fmt.Errorf("encode REGISTER: %w", err)
	}
	if len(payload) > maxDatagramBytes {
		return ErrOversizeDatagram
	}
	return e.transport.Send(ctx, payload, addr, application.SendUnicast)
}

func (e *Engine) scheduleRegisterRetry(addr netip.AddrPort) {
	e.scheduler.CallLater(e.cfg.Timeout, func() {
		e.mu.Lock()
		if e.registered || e.registerAbandoned {
			e.mu.Unlock()
			return
		}
		candidate := e.registerRetries + 1
		if candidate > e.cfg.MaxRetries {
			e.mu.Unlock()
			e.logger.Printf("neteria: register retries exhausted against %s, giving up", addr)
			return
		}
		e.registerRetries = candidate
		e.mu.Unlock()

		if err := e.sendRegister(context.Background(), addr); err != nil {
			e.logger.Printf("neteria: resend REGISTER to %s: %v", addr, err)
		}
		e.scheduleRegisterRetry(addr)
	})
}

// Event submits an application event. It fails with ErrNotRegistered if the
// client has not completed registration. Priority is opaque to the client;
// it is transmitted and echoed back by the server's adjudication.
func (e *Engine) Event(ctx context.Context, eventData any, priority protocol.Priority) (protocol.EventID, error) {
	e.mu.Lock()
	registered := e.registered
	serverAddr := e.serverAddress
	peerKey := e.serverPublicKey
	e.mu.Unlock()

	if !registered {
		return protocol.EventID{}, ErrNotRegistered
	}

	euuid, err := protocol.NewEventID()
	if err != nil {
		return protocol.EventID{}, fmt.Errorf("neteria: mint event id: %w", err)
	}

	pe := &pendingEvent{
		method:     protocol.MethodEvent,
		eventData:  eventData,
		priority:   priority,
		retryCount: 0,
	}

	payload, err := e.encodeEvent(euuid, pe, peerKey)
	if err != nil {
		return protocol.EventID{}, err
	}

	e.mu.Lock()
	e.pendingEvents[euuid] = pe
	e.mu.Unlock()

	if err := e.transport.Send(ctx, payload, serverAddr, application.SendUnicast); err != nil {
		e.logger.Printf("neteria: send EVENT %s: %v", euuid, err)
	}
	e.scheduleEventRetry(euuid, serverAddr)

	return euuid, nil
}

func (e *Engine) encodeEvent(euuid protocol.EventID, pe *pendingEvent, peerKey *application.PublicKey) ([]byte, error) {
	msg := protocol.Message{
		Method:    protocol.MethodEvent,
		CUUID:     &e.cuuid,
		EUUID:     &euuid,
		EventData: pe.eventData,
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Priority:  pe.priority,
		Retry:     pe.retryCount,
	}
	payload, err := e.codec.Encode(msg, peerKey)
	if err != nil {
		return nil, fmt.Errorf("neteria: encode EVENT: %w", err)
	}
	if len(payload) > maxDatagramBytes {
		return nil, ErrOversizeDatagram
	}
	return payload, nil
}

func (e *Engine) scheduleEventRetry(euuid protocol.EventID, addr netip.AddrPort) {
	e.scheduler.CallLater(e.cfg.Timeout, func() {
		e.mu.Lock()
		pe, ok := e.pendingEvents[euuid]
		if !ok {
			e.mu.Unlock()
			return
		}
		candidate := pe.retryCount + 1
		if candidate > e.cfg.MaxRetries {
			delete(e.pendingEvents, euuid)
			e.mu.Unlock()
			return
		}
		pe.retryCount = candidate
		peerKey := e.serverPublicKey
		snapshot := *pe
		e.mu.Unlock()

		payload, err := e.encodeEvent(euuid, &snapshot, peerKey)
		if err != nil {
			e.logger.Printf("neteria: re-encode EVENT %s: %v", euuid, err)
		} else if err := e.transport.Send(context.Background(), payload, addr, application.SendUnicast); err != nil {
			e.logger.Printf("neteria: resend EVENT %s: %v", euuid, err)
		}
		e.scheduleEventRetry(euuid, addr)
	})
}

// NotifyInbox returns the event data received for euuid via NOTIFY, if any.
func (e *Engine) NotifyInbox(euuid protocol.EventID) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	data, ok := e.notifyInbox[euuid]
	return data, ok
}

// DrainNotifications removes and returns every NOTIFY payload accumulated
// since the last drain, for callers that consume the inbox as a whole
// rather than by individual euuid.
func (e *Engine) DrainNotifications() map[protocol.EventID]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.notifyInbox
	e.notifyInbox = make(map[protocol.EventID]any)
	return out
}

// Rollback returns and removes the rollback entry recorded for euuid after
// the server declared it ILLEGAL, so the caller can compensate.
func (e *Engine) Rollback(euuid protocol.EventID) (eventData any, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pe, ok := e.rollbacks[euuid]
	if !ok {
		return nil, false
	}
	delete(e.rollbacks, euuid)
	return pe.eventData, true
}

// EventConfirmation returns and removes a high-priority LEGAL confirmation
// recorded for euuid, so the caller can inspect the outcome.
func (e *Engine) EventConfirmation(euuid protocol.EventID) (eventData any, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pe, ok := e.eventConfirmations[euuid]
	if !ok {
		return nil, false
	}
	delete(e.eventConfirmations, euuid)
	return pe.eventData, true
}

// Discovered returns a snapshot of servers seen via OHAI Client replies.
func (e *Engine) Discovered() map[netip.AddrPort]DiscoveredServer {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[netip.AddrPort]DiscoveredServer, len(e.discovered))
	for k, v := range e.discovered {
		out[k] = v
	}
	return out
}

// Reset returns the engine to UNREGISTERED, clearing the registration state
// and pending events. Rollbacks, event confirmations, the notify inbox, the
// discovered-server list and the auto-register flag are kept. The state
// machine is otherwise terminal at REGISTERED.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registered = false
	e.registerAbandoned = false
	e.serverAddress = netip.AddrPort{}
	e.serverPublicKey = nil
	e.registerRetries = 0
	e.pendingEvents = make(map[protocol.EventID]*pendingEvent)
}

// HandleIncoming decodes payload and dispatches on its method field.
// Decode failures and unknown methods are ignored, never replied to.
func (e *Engine) HandleIncoming(payload []byte, source netip.AddrPort) {
	msg, err := e.decode(payload)
	if err != nil {
		return
	}

	switch msg.Method {
	case protocol.MethodOHAIClient:
		e.handleOHAIClient(msg, source)
	case protocol.MethodOKRegister:
		e.handleOKRegister(msg, source)
	case protocol.MethodByeRegister:
		e.handleByeRegister()
	case protocol.MethodNotify:
		e.handleNotify(msg, source)
	case protocol.MethodLegal:
		e.handleAdjudication(msg, source, true)
	case protocol.MethodIllegal:
		e.handleAdjudication(msg, source, false)
	default:
		// unknown method, ignore
	}
}

// decode tries a cleartext decode first, since every server reply except
// NOTIFY is cleartext: confidentiality is one-way, and only
// client-to-server EVENT payloads and server-to-client NOTIFY payloads are
// ever encrypted. Only on cleartext failure, and only if this client runs
// with encryption enabled, does it retry assuming an encrypted NOTIFY —
// the client has no per-source "encrypted hosts" table like the server
// because it has exactly one peer (see DESIGN.md).
func (e *Engine) decode(payload []byte) (protocol.Message, error) {
	msg, err := e.codec.Decode(payload, false)
	if err == nil {
		return msg, nil
	}
	if e.encryption == nil {
		return protocol.Message{}, err
	}
	return e.codec.Decode(payload, true)
}

func (e *Engine) handleOHAIClient(msg protocol.Message, source netip.AddrPort) {
	e.mu.Lock()
	e.discovered[source] = DiscoveredServer{Version: msg.Version, ServerName: msg.ServerName}
	auto := e.autoRegister
	if auto {
		e.autoRegister = false
	}
	e.mu.Unlock()

	if auto {
		_ = e.Register(context.Background(), source, true)
	}
}

func (e *Engine) handleOKRegister(msg protocol.Message, source netip.AddrPort) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.registered = true
	e.serverAddress = source

	if msg.Encryption != nil && e.encryption != nil {
		n, ok1 := new(big.Int).SetString(msg.Encryption.N, 10)
		exp, ok2 := new(big.Int).SetString(msg.Encryption.E, 10)
		if ok1 && ok2 {
			e.serverPublicKey = &application.PublicKey{N: n, E: exp}
		}
	}
}

func (e *Engine) handleByeRegister() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registerAbandoned = true
}

func (e *Engine) handleNotify(msg protocol.Message, source netip.AddrPort) {
	if msg.EUUID == nil {
		return
	}
	euuid := *msg.EUUID

	e.mu.Lock()
	e.notifyInbox[euuid] = msg.EventData
	e.mu.Unlock()

	reply := protocol.Message{Method: protocol.MethodOKNotify, CUUID: &e.cuuid, EUUID: &euuid}
	payload, err := e.codec.Encode(reply, nil)
	if err != nil {
		e.logger.Printf("neteria: encode OK NOTIFY %s: %v", euuid, err)
		return
	}
	if err := e.transport.Send(context.Background(), payload, source, application.SendUnicast); err != nil {
		e.logger.Printf("neteria: send OK NOTIFY %s: %v", euuid, err)
	}
}

func (e *Engine) handleAdjudication(msg protocol.Message, source netip.AddrPort, legal bool) {
	if msg.EUUID == nil {
		return
	}
	euuid := *msg.EUUID

	e.mu.Lock()
	pe, ok := e.pendingEvents[euuid]
	if ok {
		delete(e.pendingEvents, euuid)
		if legal {
			if pe.priority == protocol.PriorityHigh {
				e.eventConfirmations[euuid] = *pe
			}
		} else {
			e.rollbacks[euuid] = *pe
		}
	}
	e.mu.Unlock()

	reply := protocol.Message{Method: protocol.MethodOKEvent, CUUID: &e.cuuid, EUUID: &euuid}
	payload, err := e.codec.Encode(reply, nil)
	if err != nil {
		e.logger.Printf("neteria: encode OK EVENT %s: %v", euuid, err)
		return
	}
	if err := e.transport.Send(context.Background(), payload, source, application.SendUnicast); err != nil {
		e.logger.Printf("neteria: send OK EVENT %s: %v", euuid, err)
	}
}
