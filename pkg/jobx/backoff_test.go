package jobx_test

import (
	"testing"
	"time"

	"github.com/raffleport/relay/pkg/jobx"
)

func TestExponentialBackoff_DoublesPerAttempt(t *testing.T) {
	b := jobx.ExponentialBackoff{Base: 5 * time.Second, Factor: 2}

	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second}
	for attempts, expected := range want {
		if got := b.Delay(attempts); got != expected {
			t.Fatalf("Delay(%d) = %v, want %v", attempts, got, expected)
		}
	}
}

func TestExponentialBackoff_CapsAtMax(t *testing.T) {
	b := jobx.ExponentialBackoff{Base: 5 * time.Second, Factor: 2, Max: 15 * time.Second}

	if got := b.Delay(1); got != 10*time.Second {
		t.Fatalf("Delay(1) = %v, want 10s", got)
	}
	if got := b.Delay(2); got != 15*time.Second {
		t.Fatalf("Delay(2) = %v, want cap of 15s", got)
	}
	if got := b.Delay(10); got != 15*time.Second {
		t.Fatalf("Delay(10) = %v, want cap of 15s", got)
	}
}

func TestExponentialBackoff_DefaultsFactorToTwo(t *testing.T) {
	b := jobx.ExponentialBackoff{Base: time.Second}

	if got := b.Delay(3); got != 8*time.Second {
		t.Fatalf("Delay(3) = %v, want 8s", got)
	}
}

func TestConstantBackoff(t *testing.T) {
	b := jobx.ConstantBackoff{Interval: 3 * time.Second}

	for _, attempts := range []int{0, 1, 5} {
		if got := b.Delay(attempts); got != 3*time.Second {
			t.Fatalf("Delay(%d) = %v, want 3s", attempts, got)
		}
	}
}
