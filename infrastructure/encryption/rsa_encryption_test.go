package encryption

import (
	"bytes"
	"testing"
)

func TestRSAEncryption_EncryptDecryptRoundTrip(t *testing.T) {
	server, err := NewRSAEncryption(DefaultKeyBits)
	if err != nil {
		t.Fatalf("NewRSAEncryption: %v", err)
	}

	plaintext := []byte("hello neteria")
	ciphertext, err := server.Encrypt(plaintext, server.PublicKey())
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	decrypted, err := server.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}

	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("decrypted = %q, want %q", decrypted, plaintext)
	}
}

func TestRSAEncryption_MaxChunkSize_MatchesKeyByteSizeMinusEleven(t *testing.T) {
	enc, err := NewRSAEncryption(512)
	if err != nil {
		t.Fatalf("NewRSAEncryption: %v", err)
	}

	want := 512/8 - 11
	if got := enc.MaxChunkSize(); got != want {
		t.Fatalf("MaxChunkSize() = %d, want %d", got, want)
	}
}

func TestRSAEncryption_RejectsChunkLargerThanMax(t *testing.T) {
	enc, err := NewRSAEncryption(512)
	if err != nil {
		t.Fatalf("NewRSAEncryption: %v", err)
	}

	oversized := bytes.Repeat([]byte("a"), enc.MaxChunkSize()+1)
	if _, err := enc.Encrypt(oversized, enc.PublicKey()); err == nil {
		t.Fatal("expected error encrypting an over-long chunk")
	}
}

func TestFingerprint_IsStableAndShort(t *testing.T) {
	enc, err := NewRSAEncryption(512)
	if err != nil {
		t.Fatalf("NewRSAEncryption: %v", err)
	}

	pub := enc.PublicKey()
	a := Fingerprint(pub)
	b := Fingerprint(pub)
	if a != b {
		t.Fatalf("Fingerprint not stable: %q != %q", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("Fingerprint length = %d, want 16 hex chars", len(a))
	}
}
