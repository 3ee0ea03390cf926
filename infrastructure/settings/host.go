package settings

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"strings"
)

// Host is a listen/server address's IP component. Neteria's config surface
// (§6/§8 of the spec) only ever needs a plain IP:port, so unlike a
// general-purpose host type it carries no domain name and performs no DNS
// resolution. A zero Host has no IP set, meaning "use the caller's default".
type Host struct {
	ip netip.Addr
}

// IPHost creates a Host from a string that must be a valid IP address.
func IPHost(raw string) (Host, error) {
	ip, ok := parseHostIP(strings.TrimSpace(raw))
	if !ok {
		return Host{}, fmt.Errorf("expected IP address, got %q", raw)
	}
	return Host{ip: ip}, nil
}

// NewHost parses raw as an IP address. An empty string returns a zero Host.
func NewHost(raw string) (Host, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Host{}, nil
	}
	return IPHost(trimmed)
}

func (h Host) String() string {
	if h.ip.IsValid() {
		return h.ip.String()
	}
	return ""
}

func (h Host) IsZero() bool {
	return !h.ip.IsValid()
}

// IP returns the host's address, if set.
func (h Host) IP() (netip.Addr, bool) {
	return h.ip, h.ip.IsValid()
}

// AddrPort combines the host's IP with port.
func (h Host) AddrPort(port int) (netip.AddrPort, error) {
	if !h.ip.IsValid() {
		return netip.AddrPort{}, fmt.Errorf("host is empty")
	}
	if err := validatePort(port); err != nil {
		return netip.AddrPort{}, err
	}
	return netip.AddrPortFrom(h.ip, uint16(port)), nil
}

// ListenAddrPort resolves a bind address for port, falling back to
// defaultIP when the host is unset.
func (h Host) ListenAddrPort(port int, defaultIP string) (netip.AddrPort, error) {
	if err := validatePort(port); err != nil {
		return netip.AddrPort{}, err
	}
	if h.IsZero() {
		fallback, fallbackErr := IPHost(defaultIP)
		if fallbackErr != nil {
			return netip.AddrPort{}, fallbackErr
		}
		return fallback.AddrPort(port)
	}
	return h.AddrPort(port)
}

func (h Host) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Host) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid Host JSON: %w", err)
	}
	host, err := NewHost(raw)
	if err != nil {
		return fmt.Errorf("invalid Host %q: %w", raw, err)
	}
	*h = host
	return nil
}

func parseHostIP(raw string) (netip.Addr, bool) {
	ip, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
