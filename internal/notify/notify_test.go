package notify_test

import (
	"sync"
	"testing"
	"time"

	"github.com/DavidIlie/claude-code-prometheus/internal/notify"
)

type countingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *countingNotifier) Notify(title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// TestLimiterDeliversFirstAndSuppressesWithinCooldown verifies at most
// one notification goes out per cooldown window.
func TestLimiterDeliversFirstAndSuppressesWithinCooldown(t *testing.T) {
	inner := &countingNotifier{}
	limiter := notify.NewLimiter(inner, 5*time.Minute)

	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	limiter.Now = func() time.Time { return now }

	if err := limiter.Notify("t", "first"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if inner.count() != 1 {
		t.Fatalf("inner notified %d times, want 1", inner.count())
	}

	// Two more within the window: both swallowed.
	now = now.Add(time.Minute)
	limiter.Notify("t", "second")
	now = now.Add(3 * time.Minute)
	limiter.Notify("t", "third")

	if inner.count() != 1 {
		t.Errorf("inner notified %d times, want still 1", inner.count())
	}
	if limiter.Suppressed() != 2 {
		t.Errorf("Suppressed() = %d, want 2", limiter.Suppressed())
	}
}

// TestLimiterResetsAfterCooldown verifies the window is measured from
// the last delivered notification, not the last attempt.
func TestLimiterResetsAfterCooldown(t *testing.T) {
	inner := &countingNotifier{}
	limiter := notify.NewLimiter(inner, 5*time.Minute)

	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	limiter.Now = func() time.Time { return now }

	limiter.Notify("t", "first")

	// A suppressed attempt at +4m must not extend the window.
	now = now.Add(4 * time.Minute)
	limiter.Notify("t", "suppressed")

	// +5m1s from the delivered one: allowed again.
	now = now.Add(time.Minute + time.Second)
	limiter.Notify("t", "second")

	if inner.count() != 2 {
		t.Errorf("inner notified %d times, want 2", inner.count())
	}
}
