package settings

import "time"

// TimeoutMs is the retransmit timeout, stored as milliseconds so it
// marshals to plain JSON integers.
type TimeoutMs int

// DefaultTimeoutMs is the default retransmit interval.
const DefaultTimeoutMs TimeoutMs = 2000

func (t TimeoutMs) Int() int {
	return int(t)
}

func (t TimeoutMs) Duration() time.Duration {
	return time.Duration(t) * time.Millisecond
}
