package settings

import "time"

// RegistryTTL configures the optional idle-session reaper
// (infrastructure/registry.TTLRegistry): a client not heard from for Idle
// is evicted, checked every Sweep. A zero Idle disables eviction entirely,
// which is the default — entries are then removed only on retry
// exhaustion, never on a timer.
type RegistryTTL struct {
	Idle  time.Duration `json:"idle"`
	Sweep time.Duration `json:"sweep"`
}
