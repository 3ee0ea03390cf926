// Package network provides the concrete UDP application.Transport: a bound
// socket supporting unicast, broadcast, and multicast sends, a blocking
// receive loop, and optional throughput statistics.
package network

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/ipv4"

	"neteria/application"
)

// MaxDatagramBytes is the engine's receive-buffer size and the upper bound
// enforced on outgoing payloads.
const MaxDatagramBytes = 10_240

// MulticastTTL is the TTL set on outgoing multicast datagrams.
const MulticastTTL = 1

// UDPTransport binds one UDP socket and serves both send and receive sides
// of the engine. Broadcast is enabled unconditionally on the underlying
// socket (SO_BROADCAST is a static, idempotent socket option); the
// destination always comes from the caller, and the send mode only matters
// for multicast, where it sets the packet's TTL.
type UDPTransport struct {
	conn   *net.UDPConn
	pconn  *ipv4.PacketConn
	logger application.Logger

	statsEnabled  bool
	statsInterval time.Duration
	bytesSent     atomic.Uint64
	bytesRecv     atomic.Uint64

	mu    sync.Mutex
	stats application.Stats
}

// NewUDPTransport binds to bindAddr (IP may be unspecified to listen on all
// interfaces) with address reuse enabled.
func NewUDPTransport(bindAddr netip.AddrPort, logger application.Logger, statsEnabled bool, statsInterval time.Duration) (*UDPTransport, error) {
	lc := net.ListenConfig{Control: controlReuseAddrBroadcast}

	conn, err := lc.ListenPacket(context.Background(), "udp", bindAddr.String())
	if err != nil {
		return nil, fmt.Errorf("neteria: bind udp %s: %w", bindAddr, err)
	}

	udpConn, ok := conn.(*net.UDPConn)
	if !ok {
		_ = conn.Close()
		return nil, fmt.Errorf("neteria: unexpected listener type %T", conn)
	}

	t := &UDPTransport{
		conn:          udpConn,
		pconn:         ipv4.NewPacketConn(udpConn),
		logger:        logger,
		statsEnabled:  statsEnabled,
		statsInterval: statsInterval,
	}

	if statsEnabled {
		go t.runStats()
	}

	return t, nil
}

func (t *UDPTransport) LocalPort() int {
	addr, ok := t.conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return 0
	}
	return addr.Port
}

func (t *UDPTransport) Send(_ context.Context, payload []byte, addr netip.AddrPort, mode application.SendMode) error {
	if len(payload) > MaxDatagramBytes {
		return fmt.Errorf("neteria: outgoing datagram of %d bytes exceeds %d byte limit", len(payload), MaxDatagramBytes)
	}

	if mode == application.SendMulticast {
		if err := t.pconn.SetMulticastTTL(MulticastTTL); err != nil {
			return fmt.Errorf("neteria: set multicast ttl: %w", err)
		}
	}

	n, err := t.conn.WriteToUDPAddrPort(payload, addr)
	if err != nil {
		return err
	}

	if t.statsEnabled {
		t.bytesSent.Add(uint64(n))
	}
	return nil
}

func (t *UDPTransport) Listen(ctx context.Context, handle func(payload []byte, from netip.AddrPort)) error {
	buf := make([]byte, MaxDatagramBytes)

	go func() {
		<-ctx.Done()
		_ = t.conn.Close()
	}()

	for {
		n, from, err := t.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if isConnReset(err) {
				t.logger.Printf("neteria: connection reset on receive, continuing: %v", err)
				continue
			}
			return fmt.Errorf("neteria: receive loop: %w", err)
		}

		if t.statsEnabled {
			t.bytesRecv.Add(uint64(n))
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		handle(payload, from)
	}
}

func (t *UDPTransport) Stats() application.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

// runStats recomputes throughput every statsInterval from the delta in the
// byte counters, matching the original ListenerUDP's calculate_stats. Field
// names use Kbps consistently; the original source initializes mbps_* but
// computes kbps_* values, an inconsistency resolved here by naming (see
// DESIGN.md).
func (t *UDPTransport) runStats() {
	ticker := time.NewTicker(t.statsInterval)
	defer ticker.Stop()

	var lastSent, lastRecv uint64
	for range ticker.C {
		sent := t.bytesSent.Load()
		recv := t.bytesRecv.Load()

		seconds := t.statsInterval.Seconds()
		kbpsSent := float64(sent-lastSent) * 8 / 1000 / seconds
		kbpsRecv := float64(recv-lastRecv) * 8 / 1000 / seconds
		lastSent, lastRecv = sent, recv

		t.mu.Lock()
		t.stats = application.Stats{
			BytesSent:     sent,
			BytesReceived: recv,
			KbpsSent:      kbpsSent,
			KbpsReceived:  kbpsRecv,
		}
		t.mu.Unlock()
	}
}
