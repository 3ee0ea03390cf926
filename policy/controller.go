package policy

import (
	"strings"
	"sync"

	"neteria/protocol"
)

// ControllerPolicy turns a stream of "KEYDOWN:<dir>"/"KEYUP:<dir>" events
// into boolean directional state: every event is legal, and executing one
// just flips the held state for that direction.
type ControllerPolicy struct {
	mu            sync.Mutex
	networkEvents map[string]bool
}

// NewControllerPolicy returns a ControllerPolicy with all directions clear.
func NewControllerPolicy() *ControllerPolicy {
	return &ControllerPolicy{networkEvents: make(map[string]bool)}
}

func (c *ControllerPolicy) EventLegal(protocol.ClientID, protocol.EventID, any) bool {
	return true
}

func (c *ControllerPolicy) EventExecute(_ protocol.ClientID, _ protocol.EventID, eventData any) {
	data, ok := eventData.(string)
	if !ok {
		return
	}

	down, dir, ok := strings.Cut(data, ":")
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch down {
	case "KEYDOWN":
		c.networkEvents[dir] = true
	case "KEYUP":
		c.networkEvents[dir] = false
	}
}

// State returns a snapshot of the current directional state, keyed by
// "up"/"down"/"left"/"right".
func (c *ControllerPolicy) State() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make(map[string]bool, len(c.networkEvents))
	for k, v := range c.networkEvents {
		snapshot[k] = v
	}
	return snapshot
}
