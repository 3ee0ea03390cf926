package protocol

// Method names exchanged on the wire. These are the literal values of the
// "method" field and double as the dispatch key in both engines'
// handle_incoming.
const (
	MethodOHAI         = "OHAI"
	MethodOHAIClient   = "OHAI Client"
	MethodRegister     = "REGISTER"
	MethodOKRegister   = "OK REGISTER"
	MethodByeRegister  = "BYE REGISTER"
	MethodEvent        = "EVENT"
	MethodLegal        = "LEGAL"
	MethodIllegal      = "ILLEGAL"
	MethodOKEvent      = "OK EVENT"
	MethodNotify       = "NOTIFY"
	MethodOKNotify     = "OK NOTIFY"
	MethodByeEvent     = "BYE EVENT"
)

// Priority is the caller-opaque scheduling hint attached to an EVENT. The
// engine only transports and echoes it back; it carries no local meaning.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// PublicKeyParams is the wire representation of an RSA-style public key: the
// modulus and exponent, each rendered as a decimal string so they survive
// JSON round-tripping regardless of size.
type PublicKeyParams struct {
	N string `json:"n"`
	E string `json:"e"`
}

// Message is the single on-wire envelope for every Neteria datagram. Not
// every field applies to every method; unused fields are omitted from the
// encoded form.
type Message struct {
	Method string `json:"method"`

	CUUID *ClientID `json:"cuuid,omitempty"`
	EUUID *EventID  `json:"euuid,omitempty"`

	Version    string `json:"version,omitempty"`
	ServerName string `json:"server_name,omitempty"`

	EventData any      `json:"event_data,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Priority  Priority `json:"priority,omitempty"`
	Retry     int      `json:"retry,omitempty"`

	Data string `json:"data,omitempty"`

	Encryption *PublicKeyParams `json:"encryption,omitempty"`
}
