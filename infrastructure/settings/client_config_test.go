package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()
	if cfg.ServerPort != DefaultServerPort {
		t.Fatalf("expected default server port %d, got %d", DefaultServerPort, cfg.ServerPort)
	}
	if cfg.Retry.MaxRetries != 4 {
		t.Fatalf("expected default max retries 4, got %d", cfg.Retry.MaxRetries)
	}
}

func TestLoadClientConfig_AppliesDefaultsForZeroFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.json")

	partial := map[string]any{"version": "1.0.2"}
	data, err := json.Marshal(partial)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("LoadClientConfig: %v", err)
	}
	if cfg.ServerPort != DefaultServerPort {
		t.Fatalf("expected server port to default to %d, got %d", DefaultServerPort, cfg.ServerPort)
	}
	if cfg.Retry.MaxRetries != 4 {
		t.Fatalf("expected max retries to default to 4, got %d", cfg.Retry.MaxRetries)
	}
}

func TestClientConfig_BindAddrPort_RandomPort(t *testing.T) {
	cfg := DefaultClientConfig()
	called := false
	addr, err := cfg.BindAddrPort(func() int {
		called = true
		return 51234
	})
	if err != nil {
		t.Fatalf("BindAddrPort: %v", err)
	}
	if !called {
		t.Fatal("expected random port callback to be invoked for zero ListenPort")
	}
	if addr.Port() != 51234 {
		t.Fatalf("expected port 51234, got %d", addr.Port())
	}
}
