package settings

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
)

// ServerConfig is the server engine's full configuration surface.
type ServerConfig struct {
	Version           string            `json:"version"`
	ServerName        string            `json:"server_name"`
	AllowedVersions   []string          `json:"allowed_versions"`
	ListenAddress     Host              `json:"listen_address"`
	ListenPort        int               `json:"listen_port"`
	Compression       bool              `json:"compression"`
	Encryption        Encryption        `json:"encryption"`
	KeyBits           KeyBits           `json:"key_bits"`
	Retry             RetryPolicy       `json:"retry"`
	RegistrationLimit RegistrationLimit `json:"registration_limit"`
	TTL               RegistryTTL       `json:"registry_ttl"`
	Stats             bool              `json:"stats"`
}

// DefaultServerConfig returns the package defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Version:           "1.0.2",
		ServerName:        "neteria",
		AllowedVersions:   []string{"1.0.2"},
		ListenPort:        DefaultServerPort,
		Encryption:        EncryptionOff,
		KeyBits:           DefaultKeyBits,
		Retry:             DefaultRetryPolicy(),
		RegistrationLimit: DefaultRegistrationLimit,
	}
}

// LoadServerConfig reads and JSON-decodes a ServerConfig from path, applying
// defaults to any zero-valued field left unset in the file.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("neteria: read server config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("neteria: parse server config %s: %w", path, err)
	}
	if cfg.ListenPort == 0 {
		cfg.ListenPort = DefaultServerPort
	}
	if cfg.RegistrationLimit == 0 {
		cfg.RegistrationLimit = DefaultRegistrationLimit
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
// netip.AddrPort suitable for UDPTransport.
func (c ServerConfig) BindAddrPort() (netip.AddrPort, error) {
	return c.ListenAddress.ListenAddrPort(c.ListenPort, "0.0.0.0")
}
