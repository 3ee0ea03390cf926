// Package policy holds ready-to-use application.Policy implementations.
package policy

import "neteria/protocol"

// DefaultPolicy accepts every event as legal and performs no side effects:
// a server wired with DefaultPolicy behaves as a pure reliable-delivery
// relay.
type DefaultPolicy struct{}

// EventLegal always returns true.
func (DefaultPolicy) EventLegal(protocol.ClientID, protocol.EventID, any) bool {
	return true
}

// EventExecute is a no-op.
func (DefaultPolicy) EventExecute(protocol.ClientID, protocol.EventID, any) {}
