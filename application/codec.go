package application

import "neteria/protocol"

// Codec turns a protocol.Message into wire bytes and back, applying the
// configured compression and encryption layers in order.
type Codec interface {
	// Encode serializes msg. A nil peerKey means "send in the clear"
	// even if the codec was built with encryption enabled — this is how
	// always-cleartext replies (OK REGISTER, BYE REGISTER, discovery)
	// are produced.
	Encode(msg protocol.Message, peerKey *PublicKey) ([]byte, error)

	// Decode deserializes payload. decrypt selects the decode path: the
	// caller sets it when the source address is a known encrypted host.
	// Decryption always uses this side's own private key, never peerKey,
	// so Decode takes no key argument.
	Decode(payload []byte, decrypt bool) (protocol.Message, error)
}
