package settings

import "testing"

func TestDefaultRetryPolicy(t *testing.T) {
	rp := DefaultRetryPolicy()
	if rp.Timeout.Duration().Seconds() != 2 {
		t.Fatalf("expected 2s default timeout, got %v", rp.Timeout.Duration())
	}
	if rp.MaxRetries != 4 {
		t.Fatalf("expected 4 default max retries, got %d", rp.MaxRetries)
	}
}
