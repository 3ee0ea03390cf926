package settings

import (
	"encoding/json"
	"errors"
)

// Encryption toggles the RSA-style confidentiality layer. Neteria has only
// one algorithm choice: RSA is either on or off, so this is a bool-backed
// enum rather than an algorithm selector.
type Encryption int

const (
	EncryptionOff Encryption = iota
	EncryptionRSA
)

func (e Encryption) Enabled() bool {
	return e == EncryptionRSA
}

func (e Encryption) MarshalJSON() ([]byte, error) {
	switch e {
	case EncryptionOff:
		return json.Marshal("off")
	case EncryptionRSA:
		return json.Marshal("rsa")
	default:
		return nil, errors.New("neteria: invalid encryption mode")
	}
}

func (e *Encryption) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "off", "":
		*e = EncryptionOff
	case "rsa":
		*e = EncryptionRSA
	default:
		return errors.New("neteria: invalid encryption mode " + s)
	}
	return nil
}

// KeyBits is the RSA modulus size.
type KeyBits int

// DefaultKeyBits is the default RSA key length.
const DefaultKeyBits KeyBits = 512

func (k KeyBits) Int() int {
	return int(k)
}
