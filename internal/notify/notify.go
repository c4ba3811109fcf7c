// Package notify delivers OS-level notifications for delivery
// escalations, rate-limited so a long outage produces one alert per
// cooldown window rather than one per failed flush.
package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Notifier delivers a user-facing notification.
type Notifier interface {
	Notify(title, body string) error
}

// Desktop shells out to the platform notifier: osascript on macOS,
// notify-send on Linux. Other platforms are a silent no-op; the error
// log remains the durable record either way.
type Desktop struct{}

func (Desktop) Notify(title, body string) error {
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		return run("osascript", "-e", script)
	case "linux":
		return run("notify-send", title, body)
	default:
		return nil
	}
}

func run(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s failed: %w (%s)", name, err, msg)
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}

// Limiter wraps a Notifier with a cooldown window: at most one
// notification is delivered per window, the rest are counted.
type Limiter struct {
	// Now is the clock; overridable in tests.
	Now func() time.Time

	mu         sync.Mutex
	inner      Notifier
	cooldown   time.Duration
	last       time.Time
	suppressed int
}

// NewLimiter wraps inner with the given cooldown.
func NewLimiter(inner Notifier, cooldown time.Duration) *Limiter {
	return &Limiter{Now: time.Now, inner: inner, cooldown: cooldown}
}

// Notify forwards to the wrapped notifier unless one was delivered
// within the cooldown window.
func (l *Limiter) Notify(title, body string) error {
	l.mu.Lock()
	now := l.Now()
	if !l.last.IsZero() && now.Sub(l.last) < l.cooldown {
		l.suppressed++
		l.mu.Unlock()
		return nil
	}
	l.last = now
	l.mu.Unlock()
	return l.inner.Notify(title, body)
}

// Suppressed returns how many notifications the cooldown swallowed.
func (l *Limiter) Suppressed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.suppressed
}
