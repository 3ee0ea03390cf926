// Package server implements the server-side half of the message-exchange
// engine: discovery replies, client registration and admission, event
// adjudication through the policy hook, notification push, and the
// retransmission loop shared by both.
package server

import (
	"context"
	"fmt"
	"math/big"
	"net/netip"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"neteria/application"
	"neteria/protocol"
)

// maxDatagramBytes mirrors network.MaxDatagramBytes.
const maxDatagramBytes = 10_240

// notRegisteredReason is the literal BYE EVENT payload text sent to a
// client that submits an EVENT without having registered first.
const notRegisteredReason = "Not registered"

// defaultExecWorkers bounds the errgroup pool EventExecute calls run on.
// Policy callbacks run off the receive path, but once this many are still
// running, handleEvent waits for a free slot before it returns.
const defaultExecWorkers = 32

// Config holds the server engine's tunable knobs.
type Config struct {
	Version           string
	ServerName        string
	AllowedVersions   []string
	Timeout           time.Duration
	MaxRetries        int
	RegistrationLimit int
	// ExecWorkers bounds concurrent EventExecute invocations. Zero uses
	// defaultExecWorkers.
	ExecWorkers int
}

// DefaultConfig returns the package defaults; callers must fill in
// Version, ServerName, and AllowedVersions.
func DefaultConfig() Config {
	return Config{
		Timeout:           2 * time.Second,
		MaxRetries:        4,
		RegistrationLimit: 50,
		ExecWorkers:       defaultExecWorkers,
	}
}

// inFlightEntry is the server-side in-flight record: retry bookkeeping
// plus the cached bytes and owning client needed to resend without
// re-adjudicating.
type inFlightEntry struct {
	cuuid      protocol.ClientID
	retryCount int
	response   []byte
}

// Engine is the server-side state machine. Safe for concurrent use: the
// receive goroutine and the scheduler goroutine both mutate the registry
// and in-flight table.
type Engine struct {
	cfg Config

	registry   application.ClientRegistry
	transport  application.Transport
	codec      application.Codec
	scheduler  application.Scheduler
	logger     application.Logger
	encryption application.Encryption // nil disables server-side encryption
	policy     application.Policy

	execPool *errgroup.Group

	mu             sync.Mutex
	inFlight       map[protocol.EventID]*inFlightEntry
	encryptedHosts map[netip.AddrPort]protocol.ClientID
}

// New builds a server engine. encryption may be nil to disable encryption
// entirely, in which case REGISTER's encryption parameters are ignored.
func New(cfg Config, registry application.ClientRegistry, transport application.Transport, codec application.Codec, scheduler application.Scheduler, logger application.Logger, encryption application.Encryption, policy application.Policy) *Engine {
	workers := cfg.ExecWorkers
	if workers <= 0 {
		workers = defaultExecWorkers
	}
	pool := &errgroup.Group{}
	pool.SetLimit(workers)

	return &Engine{
		cfg:            cfg,
		registry:       registry,
		transport:      transport,
		codec:          codec,
		scheduler:      scheduler,
		logger:         logger,
		encryption:     encryption,
		policy:         policy,
		execPool:       pool,
		inFlight:       make(map[protocol.EventID]*inFlightEntry),
		encryptedHosts: make(map[netip.AddrPort]protocol.ClientID),
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

// Wait blocks until every in-flight EventExecute worker has returned. Useful
// for a clean shutdown after Run's context is cancelled.
func (e *Engine) Wait() error {
	return e.execPool.Wait()
}

// Notify pushes an unsolicited event to a registered client, using the same
// reliability machinery as an EVENT reply.
func (e *Engine) Notify(ctx context.Context, cuuid protocol.ClientID, eventData any) (protocol.EventID, error) {
	entry, err := e.registry.Get(cuuid)
	if err != nil {
		return protocol.EventID{}, fmt.Errorf("neteria: notify: %w", err)
	}

	euuid, err := protocol.NewEventID()
	if err != nil {
		return protocol.EventID{}, fmt.Errorf("neteria: mint event id: %w", err)
	}

	msg := protocol.Message{
		Method:    protocol.MethodNotify,
		EUUID:     &euuid,
		EventData: eventData,
	}
	payload, err := e.codec.Encode(msg, entry.PublicKey)
	if err != nil {
		return protocol.EventID{}, fmt.Errorf("neteria: encode NOTIFY: %w", err)
	}
	if len(payload) > maxDatagramBytes {
		return protocol.EventID{}, ErrOversizeDatagram
	}

	e.mu.Lock()
	e.inFlight[euuid] = &inFlightEntry{cuuid: cuuid, response: payload}
	e.mu.Unlock()

	if err := e.transport.Send(ctx, payload, entry.Address, application.SendUnicast); err != nil {
		e.logger.Printf("neteria: send NOTIFY %s: %v", euuid, err)
	}
	e.scheduleRetransmit(euuid, cuuid)

	return euuid, nil
}

// HandleIncoming decodes payload and dispatches on its method field.
func (e *Engine) HandleIncoming(payload []byte, source netip.AddrPort) {
	e.mu.Lock()
	_, encrypted := e.encryptedHosts[source]
	e.mu.Unlock()

	msg, err := e.codec.Decode(payload, encrypted)
	if err != nil && encrypted {
		// A client sends REGISTER, OK EVENT and OK NOTIFY in the clear even
		// after registering a public key, so retry as cleartext.
		msg, err = e.codec.Decode(payload, false)
	}
	if err != nil {
		return // decode failure: drop silently
	}

	switch msg.Method {
	case protocol.MethodOHAI:
		e.handleOHAI(msg, source)
	case protocol.MethodRegister:
		e.handleRegister(msg, source)
	case protocol.MethodEvent:
		e.handleEvent(msg, source)
	case protocol.MethodOKEvent, protocol.MethodOKNotify:
		e.handleAck(msg)
	default:
		// unknown method, ignore
	}
}

func (e *Engine) handleOHAI(msg protocol.Message, source netip.AddrPort) {
	if !slices.Contains(e.cfg.AllowedVersions, msg.Version) {
		e.sendCleartext(protocol.Message{Method: protocol.MethodByeRegister}, source)
		return
	}
	reply := protocol.Message{
		Method:     protocol.MethodOHAIClient,
		Version:    e.cfg.Version,
		ServerName: e.cfg.ServerName,
	}
	e.sendCleartext(reply, source)
}

func (e *Engine) handleRegister(msg protocol.Message, source netip.AddrPort) {
	if msg.CUUID == nil {
		return
	}

	if e.registry.Len() > e.cfg.RegistrationLimit {
		e.sendCleartext(protocol.Message{Method: protocol.MethodByeRegister}, source)
		return
	}

	entry := application.ClientEntry{
		CUUID:        *msg.CUUID,
		Address:      source,
		RegisteredAt: time.Now(),
	}

	if msg.Encryption != nil && e.encryption != nil {
		n, ok1 := new(big.Int).SetString(msg.Encryption.N, 10)
		exp, ok2 := new(big.Int).SetString(msg.Encryption.E, 10)
		if ok1 && ok2 {
			pub := application.PublicKey{N: n, E: exp}
			entry.PublicKey = &pub

			e.mu.Lock()
			e.encryptedHosts[source] = *msg.CUUID
			e.mu.Unlock()
		}
	}

	e.registry.Upsert(entry)

	reply := protocol.Message{Method: protocol.MethodOKRegister}
	if e.encryption != nil {
		pub := e.encryption.PublicKey()
		reply.Encryption = &protocol.PublicKeyParams{N: pub.N.String(), E: pub.E.String()}
	}
	e.sendCleartext(reply, source)
}

func (e *Engine) handleEvent(msg protocol.Message, source netip.AddrPort) {
	if msg.CUUID == nil || msg.EUUID == nil {
		return
	}
	cuuid := *msg.CUUID
	euuid := *msg.EUUID

	entry, err := e.registry.Get(cuuid)
	if err != nil || entry.Address.Addr() != source.Addr() {
		reply := protocol.Message{Method: protocol.MethodByeEvent, Data: notRegisteredReason}
		e.sendCleartext(reply, source)
		return
	}

	e.mu.Lock()
	if _, exists := e.inFlight[euuid]; exists {
		e.mu.Unlock()
		return // duplicate submission, drop silently
	}
	e.inFlight[euuid] = &inFlightEntry{cuuid: cuuid}
	e.mu.Unlock()

	legal := e.policy.EventLegal(cuuid, euuid, msg.EventData)

	method := protocol.MethodIllegal
	if legal {
		method = protocol.MethodLegal
	}
	reply := protocol.Message{Method: method, EUUID: &euuid, Priority: msg.Priority}
	payload, err := e.codec.Encode(reply, nil) // LEGAL/ILLEGAL are always cleartext
	if err != nil {
		e.logger.Printf("neteria: encode %s %s: %v", method, euuid, err)
		e.mu.Lock()
		delete(e.inFlight, euuid)
		e.mu.Unlock()
		return
	}
	if len(payload) > maxDatagramBytes {
		e.logger.Printf("neteria: %s: %v", euuid, ErrOversizeDatagram)
		e.mu.Lock()
		delete(e.inFlight, euuid)
		e.mu.Unlock()
		return
	}

	e.mu.Lock()
	e.inFlight[euuid].response = payload
	e.mu.Unlock()

	if err := e.transport.Send(context.Background(), payload, source, application.SendUnicast); err != nil {
		e.logger.Printf("neteria: send %s %s: %v", method, euuid, err)
	}

	if legal {
		e.execPool.Go(func() error {
			e.policy.EventExecute(cuuid, euuid, msg.EventData)
			return nil
		})
	}

	e.scheduleRetransmit(euuid, cuuid)
}

func (e *Engine) handleAck(msg protocol.Message) {
	if msg.EUUID == nil {
		return
	}
	euuid := *msg.EUUID

	e.mu.Lock()
	_, ok := e.inFlight[euuid]
	if ok {
		delete(e.inFlight, euuid)
	}
	e.mu.Unlock()

	if !ok {
		e.logger.Printf("neteria: ack for unknown in-flight event %s", euuid)
	}
}

func (e *Engine) scheduleRetransmit(euuid protocol.EventID, cuuid protocol.ClientID) {
	e.scheduler.CallLater(e.cfg.Timeout, func() {
		e.mu.Lock()
		entry, ok := e.inFlight[euuid]
		if !ok {
			e.mu.Unlock()
			return
		}

		if _, err := e.registry.Get(cuuid); err != nil {
			delete(e.inFlight, euuid)
			e.mu.Unlock()
			return
		}

		candidate := entry.retryCount + 1
		if candidate > e.cfg.MaxRetries {
			delete(e.inFlight, euuid)
			e.mu.Unlock()
			e.registry.Delete(cuuid)
			return
		}
		entry.retryCount = candidate
		response := entry.response
		e.mu.Unlock()

		current, err := e.registry.Get(cuuid)
		if err == nil {
			if err := e.transport.Send(context.Background(), response, current.Address, application.SendUnicast); err != nil {
				e.logger.Printf("neteria: resend %s: %v", euuid, err)
			}
		}
		e.scheduleRetransmit(euuid, cuuid)
	})
}

func (e *Engine) sendCleartext(msg protocol.Message, dest netip.AddrPort) {
	payload, err := e.codec.Encode(msg, nil)
	if err != nil {
		e.logger.Printf("neteria: encode %s: %v", msg.Method, err)
		return
	}
	if err := e.transport.Send(context.Background(), payload, dest, application.SendUnicast); err != nil {
		e.logger.Printf("neteria: send %s to %s: %v", msg.Method, dest, err)
	}
}
