// Package encryption implements the RSA-style facade: keypair generation,
// peer-key encryption, and own-key decryption.
//
// This is confidentiality-only, no-authentication chunked RSA encryption,
// the kind the python-rsa package provides. Go's standard library
// crypto/rsa and crypto/rand are used directly rather than a third-party
// package: crypto/rsa is the canonical way idiomatic Go code performs
// PKCS#1 v1.5 public-key encryption, and no RSA-shaped alternative fits
// this primitive family better (see DESIGN.md).
package encryption

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"math/big"

	"golang.org/x/crypto/blake2s"

	"neteria/application"
)

// DefaultKeyBits is the RSA modulus size. This is deliberately small,
// keeping per-chunk overhead low for a real-time event channel rather
// than a security-critical one: confidentiality here is one-way, with
// no authentication.
const DefaultKeyBits = 512

// pkcs1v15Overhead is PKCS#1 v1.5 encryption's fixed padding overhead.
const pkcs1v15Overhead = 11

// RSAEncryption is the default application.Encryption implementation.
type RSAEncryption struct {
	priv *rsa.PrivateKey
}

// NewRSAEncryption generates a fresh keypair of the given bit length.
func NewRSAEncryption(keyBits int) (*RSAEncryption, error) {
	if keyBits <= 0 {
		keyBits = DefaultKeyBits
	}
	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("neteria: generate rsa keypair: %w", err)
	}
	return &RSAEncryption{priv: priv}, nil
}

var _ application.Encryption = (*RSAEncryption)(nil)

func (r *RSAEncryption) PublicKey() application.PublicKey {
	return application.PublicKey{
		N: r.priv.PublicKey.N,
		E: big.NewInt(int64(r.priv.PublicKey.E)),
	}
}

func (r *RSAEncryption) MaxChunkSize() int {
	return (r.priv.PublicKey.N.BitLen()+7)/8 - pkcs1v15Overhead
}

func (r *RSAEncryption) Encrypt(chunk []byte, peer application.PublicKey) ([]byte, error) {
	pub := &rsa.PublicKey{N: peer.N, E: int(peer.E.Int64())}
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, chunk)
	if err != nil {
		return nil, fmt.Errorf("neteria: rsa encrypt: %w", err)
	}
	return ciphertext, nil
}

func (r *RSAEncryption) Decrypt(chunk []byte) ([]byte, error) {
	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, r.priv, chunk)
	if err != nil {
		return nil, fmt.Errorf("neteria: rsa decrypt: %w", err)
	}
	return plaintext, nil
}

// Fingerprint renders a short, non-reversible identifier for a public key
// suitable for log lines, so registry debug logging never prints raw RSA
// modulus bytes. Uses blake2s rather than a full cryptographic signature
// scheme since it is purely a log-correlation aid, not a security boundary.
func Fingerprint(pub application.PublicKey) string {
	sum := blake2s.Sum256(pub.N.Bytes())
	return fmt.Sprintf("%x", sum[:8])
}
