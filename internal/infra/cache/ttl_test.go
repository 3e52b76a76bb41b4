package cache

import (
	"testing"
	"time"
)

func TestTTLStaysWithinTenPercent(t *testing.T) {
	ttl := NewTTL(time.Minute)
	for i := 0; i < 200; i++ {
		got := ttl.Next()
		if got < time.Minute || got > time.Minute+6*time.Second {
			t.Fatalf("ttl %v outside [1m, 1m6s]", got)
		}
	}
}

func TestTTLDisabled(t *testing.T) {
	if got := NewTTL(0).Next(); got != 0 {
		t.Fatalf("expected 0 for a disabled cache, got %v", got)
	}
}
