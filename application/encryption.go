package application

import "math/big"

// PublicKey is an RSA-style public key: modulus and public exponent.
type PublicKey struct {
	N *big.Int
	E *big.Int
}

// Encryption is the RSA-like facade the codec and both engines depend on.
// The engine never touches private key material directly; it only ever
// holds a PublicKey for a peer and hands it back to this facade.
type Encryption interface {
	// PublicKey returns this side's own public key, to be sent to peers.
	PublicKey() PublicKey

	// MaxChunkSize is the largest plaintext chunk Encrypt accepts, in
	// bytes: byte_size(n) - 11.
	MaxChunkSize() int

	// Encrypt encrypts one chunk (len(chunk) <= MaxChunkSize()) for the
	// given peer public key.
	Encrypt(chunk []byte, peer PublicKey) ([]byte, error)

	// Decrypt decrypts one chunk using this side's own private key.
	Decrypt(chunk []byte) ([]byte, error)
}
