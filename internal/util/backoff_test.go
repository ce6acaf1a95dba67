package util

import (
	"testing"
	"time"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := NewBackoff(time.Second, 8*time.Second)

	within := func(d, base time.Duration) bool {
		lo := time.Duration(float64(base) * 0.75)
		hi := time.Duration(float64(base) * 1.25)
		return d >= lo && d <= hi
	}

	for _, base := range []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second,
	} {
		if d := b.Next(); !within(d, base) {
			t.Fatalf("expected delay near %s, got %s", base, d)
		}
	}
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff(time.Second, time.Minute)
	b.Next()
	b.Next()
	b.Reset()

	d := b.Next()
	if d < 750*time.Millisecond || d > 1250*time.Millisecond {
		t.Errorf("expected delay near the minimum after reset, got %s", d)
	}
}

func TestBackoffMaxBelowMin(t *testing.T) {
	b := NewBackoff(10*time.Second, time.Second)
	if d := b.Next(); d < 7500*time.Millisecond {
		t.Errorf("max below min should clamp to min, got %s", d)
	}
}
