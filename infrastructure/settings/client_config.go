package settings

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
)

// ClientConfig is the client engine's full configuration surface: protocol
// version, listen address/port, server port, compression, encryption,
// retry policy, and stats reporting. It is built from small independently
// validated value types rather than one flat struct with tags.
type ClientConfig struct {
	Version       string      `json:"version"`
	ListenAddress Host        `json:"listen_address"`
	ListenPort    int         `json:"listen_port"`
	ServerPort    int         `json:"server_port"`
	Compression   bool        `json:"compression"`
	Encryption    Encryption  `json:"encryption"`
	KeyBits       KeyBits     `json:"key_bits"`
	Retry         RetryPolicy `json:"retry"`
	Stats         bool        `json:"stats"`
}

// DefaultClientPortLow and DefaultClientPortHigh bound the random client
// port range used when no explicit listen port is configured.
const (
	DefaultClientPortLow  = 50000
	DefaultClientPortHigh = 60000
	// DefaultServerPort is the well-known discovery/registration port.
	DefaultServerPort = 40080
)

// DefaultClientConfig returns the package defaults. ListenPort is left at
// zero, meaning "pick a random port in the client range"; callers that want
// a specific port should set it explicitly.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Version:     "1.0.2",
		ServerPort:  DefaultServerPort,
		Compression: false,
		Encryption:  EncryptionOff,
		KeyBits:     DefaultKeyBits,
		Retry:       DefaultRetryPolicy(),
	}
}

// LoadClientConfig reads and JSON-decodes a ClientConfig from path, applying
// defaults to any zero-valued field left unset in the file.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("neteria: read client config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("neteria: parse client config %s: %w", path, err)
	}
	if cfg.ServerPort == 0 {
		cfg.ServerPort = DefaultServerPort
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = DefaultRetryPolicy().MaxRetries
	}
	if cfg.Retry.Timeout == 0 {
		cfg.Retry.Timeout = DefaultTimeoutMs
	}
	return cfg, nil
}

// BindAddrPort resolves the configured listen address/port to a concrete
// netip.AddrPort suitable for UDPTransport. A zero ListenPort picks a
// random ephemeral port in the client range.
func (c ClientConfig) BindAddrPort(randomPort func() int) (netip.AddrPort, error) {
	port := c.ListenPort
	if port == 0 {
		port = randomPort()
	}
	return c.ListenAddress.ListenAddrPort(port, "0.0.0.0")
}
