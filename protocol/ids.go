// Package protocol defines the Neteria wire format: message methods, field
// names, and the identifier types that key the client and server reliability
// tables.
package protocol

import "github.com/google/uuid"

// ClientID is the client-minted identifier a server uses as its registry
// key. It is stable for the lifetime of a client process.
type ClientID uuid.UUID

// EventID identifies one EVENT or NOTIFY exchange. It is minted by whichever
// side originates the exchange and echoed back by the other side so the
// originator can match acknowledgements and the receiver can suppress
// duplicates.
type EventID uuid.UUID

// NewClientID mints a time-ordered ClientID, mirroring the original
// implementation's uuid.uuid1().
func NewClientID() (ClientID, error) {
	id, err := uuid.NewUUID()
	if err != nil {
		return ClientID{}, err
	}
	return ClientID(id), nil
}

// NewEventID mints a time-ordered EventID.
func NewEventID() (EventID, error) {
	id, err := uuid.NewUUID()
	if err != nil {
		return EventID{}, err
	}
	return EventID(id), nil
}

func (c ClientID) String() string { return uuid.UUID(c).String() }
func (e EventID) String() string  { return uuid.UUID(e).String() }

// MarshalText implements encoding.TextMarshaler so ClientID can be embedded
// directly into the codec's JSON payloads as a plain string field.
func (c ClientID) MarshalText() ([]byte, error) { return uuid.UUID(c).MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ClientID) UnmarshalText(b []byte) error { return (*uuid.UUID)(c).UnmarshalText(b) }

// MarshalText implements encoding.TextMarshaler.
func (e EventID) MarshalText() ([]byte, error) { return uuid.UUID(e).MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EventID) UnmarshalText(b []byte) error { return (*uuid.UUID)(e).UnmarshalText(b) }
