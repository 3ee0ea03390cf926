// Package codec implements the Neteria wire pipeline: JSON
// text-serialization, optional DEFLATE compression with base64 framing, and
// optional RSA-style chunked encryption.
package codec

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"neteria/application"
	"neteria/protocol"
)

// ErrDecodeFailed is returned for any decode-stage failure (bad text, failed
// decompression, failed decryption). Callers must treat this as "drop the
// datagram silently", never as a reason to reply.
var ErrDecodeFailed = errors.New("neteria: failed to decode datagram")

// Codec is the default application.Codec. Compression uses the standard
// library's compress/flate, which is raw DEFLATE without zlib's header and
// checksum — the same compression algorithm zlib wraps, without pulling in
// a third-party zlib-compatible package (see DESIGN.md).
type Codec struct {
	compression bool
	encryption  application.Encryption
}

// New builds a Codec. encryption may be nil, which disables the encryption
// layer regardless of any peerKey passed to Encode or decrypt flag passed to
// Decode.
func New(compression bool, encryption application.Encryption) *Codec {
	return &Codec{compression: compression, encryption: encryption}
}

var _ application.Codec = (*Codec)(nil)

func (c *Codec) Encode(msg protocol.Message, peerKey *application.PublicKey) ([]byte, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("neteria: encode: marshal message: %w", err)
	}

	if c.compression {
		raw, err = deflateAndEncode(raw)
		if err != nil {
			return nil, fmt.Errorf("neteria: encode: compress: %w", err)
		}
	}

	if c.encryption != nil && peerKey != nil {
		raw, err = c.encryptChunks(raw, *peerKey)
		if err != nil {
			return nil, fmt.Errorf("neteria: encode: encrypt: %w", err)
		}
	}

	return raw, nil
}

func (c *Codec) Decode(payload []byte, decrypt bool) (protocol.Message, error) {
	raw := payload
	var err error

	if decrypt && c.encryption != nil {
		raw, err = c.decryptChunks(raw)
		if err != nil {
			return protocol.Message{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
		}
	}

	if c.compression {
		raw, err = decodeAndInflate(raw)
		if err != nil {
			return protocol.Message{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
		}
	}

	var msg protocol.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return protocol.Message{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return msg, nil
}

func (c *Codec) encryptChunks(plaintext []byte, peerKey application.PublicKey) ([]byte, error) {
	maxChunk := c.encryption.MaxChunkSize()
	if maxChunk <= 0 {
		return nil, fmt.Errorf("encryption key too small: max chunk size %d", maxChunk)
	}

	chunks := splitChunks(plaintext, maxChunk)
	encoded := make([]string, len(chunks))
	for i, chunk := range chunks {
		ciphertext, err := c.encryption.Encrypt(chunk, peerKey)
		if err != nil {
			return nil, err
		}
		encoded[i] = base64.StdEncoding.EncodeToString(ciphertext)
	}

	return json.Marshal(encoded)
}

func (c *Codec) decryptChunks(payload []byte) ([]byte, error) {
	var encoded []string
	if err := json.Unmarshal(payload, &encoded); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, chunk := range encoded {
		ciphertext, err := base64.StdEncoding.DecodeString(chunk)
		if err != nil {
			return nil, err
		}
		plaintext, err := c.encryption.Decrypt(ciphertext)
		if err != nil {
			return nil, err
		}
		buf.Write(plaintext)
	}
	return buf.Bytes(), nil
}

// splitChunks divides plaintext into chunks of at most maxLen bytes each.
func splitChunks(plaintext []byte, maxLen int) [][]byte {
	if len(plaintext) <= maxLen {
		return [][]byte{plaintext}
	}

	var chunks [][]byte
	for len(plaintext) > 0 {
		n := maxLen
		if n > len(plaintext) {
			n = len(plaintext)
		}
		chunks = append(chunks, plaintext[:n])
		plaintext = plaintext[n:]
	}
	return chunks
}

func deflateAndEncode(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(buf.Len()))
	base64.StdEncoding.Encode(encoded, buf.Bytes())
	return encoded, nil
}

func decodeAndInflate(encoded []byte) ([]byte, error) {
	compressed := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(compressed, encoded)
	if err != nil {
		return nil, err
	}

	r := flate.NewReader(bytes.NewReader(compressed[:n]))
	defer r.Close()

	inflated, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return inflated, nil
}
