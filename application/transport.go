package application

import (
	"context"
	"net/netip"
)

// SendMode selects the socket behavior used for one outgoing datagram.
type SendMode int

const (
	// SendUnicast is the default: a plain point-to-point datagram.
	SendUnicast SendMode = iota
	// SendBroadcast marks a datagram to a broadcast address, used for OHAI
	// discovery. UDPTransport enables the broadcast socket option once at
	// bind time rather than per send.
	SendBroadcast
	// SendMulticast sets a multicast TTL before sending.
	SendMulticast
)

// Transport is the abstract UDP endpoint the engines send and receive
// through. It binds once, then serves a blocking receive loop and
// best-effort sends in any of the three modes.
type Transport interface {
	// LocalPort reports the bound UDP port.
	LocalPort() int

	// Send writes payload to addr using the given mode. Send never blocks
	// on retransmission; callers own that via the scheduler.
	Send(ctx context.Context, payload []byte, addr netip.AddrPort, mode SendMode) error

	// Listen runs the blocking receive loop until ctx is cancelled,
	// invoking handle for every datagram received.
	Listen(ctx context.Context, handle func(payload []byte, from netip.AddrPort)) error

	// Stats returns a snapshot of the optional byte counters. Returns the
	// zero value if stats collection was not enabled.
	Stats() Stats

	Close() error
}

// Stats is a throughput snapshot computed from the delta in byte counters
// over one check interval.
type Stats struct {
	BytesSent     uint64
	BytesReceived uint64
	KbpsSent      float64
	KbpsReceived  float64
}
