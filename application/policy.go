package application

import "neteria/protocol"

// Policy is the caller-supplied decision-and-execution hook every EVENT
// passes through. The server engine never inlines application logic; it
// always goes through this interface.
type Policy interface {
	// EventLegal is a pure decision: no side effects expected. The server
	// blocks on its return value, so implementations must be fast.
	EventLegal(cuuid protocol.ClientID, euuid protocol.EventID, eventData any) bool

	// EventExecute performs the application's side effects for an event
	// already judged legal. It runs on a background worker; the server
	// does not wait for it and does not inspect its outcome.
	EventExecute(cuuid protocol.ClientID, euuid protocol.EventID, eventData any)
}
