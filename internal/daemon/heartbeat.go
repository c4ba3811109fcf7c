package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/DavidIlie/claude-code-prometheus/internal/delivery"
)

// Heartbeat is the runtime snapshot the daemon writes next to its PID
// file. `status` reads it instead of poking the process.
type Heartbeat struct {
	PID          int            `json:"pid"`
	RunID        string         `json:"runId"`
	StartedAt    time.Time      `json:"startedAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	LastFlush    time.Time      `json:"lastFlush"`
	QueueDepth   int            `json:"queueDepth"`
	TrackedFiles int            `json:"trackedFiles"`
	TrackedBytes int64          `json:"trackedBytes"`
	Delivery     delivery.Stats `json:"delivery"`
}

// Stale reports whether the heartbeat is too old to trust. The daemon
// refreshes it on every flush and stats tick, so well under this.
func (h Heartbeat) Stale(now time.Time) bool {
	return now.Sub(h.UpdatedAt) > 15*time.Minute
}

// WriteHeartbeatFile writes hb as indented JSON. Advisory data, so a
// plain write is enough; a torn read surfaces as a decode error and is
// treated as no heartbeat.
func WriteHeartbeatFile(path string, hb Heartbeat) error {
	data, err := json.MarshalIndent(hb, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding heartbeat: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ReadHeartbeat loads the heartbeat written by a running (or recently
// stopped) daemon.
func ReadHeartbeat(path string) (Heartbeat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Heartbeat{}, err
	}
	var hb Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return Heartbeat{}, fmt.Errorf("parsing heartbeat: %w", err)
	}
	return hb, nil
}
