// Package daemon runs the agent: an initial catch-up scan, a live file
// watcher, periodic flushes to the collector, and graceful shutdown
// with a final drain. It also supervises the background worker process
// and the optional user-level service unit.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/DavidIlie/claude-code-prometheus/internal/config"
	"github.com/DavidIlie/claude-code-prometheus/internal/delivery"
	"github.com/DavidIlie/claude-code-prometheus/internal/notify"
	"github.com/DavidIlie/claude-code-prometheus/internal/state"
	"github.com/DavidIlie/claude-code-prometheus/internal/tailer"
)

const (
	statsInterval  = 5 * time.Minute
	notifyCooldown = 5 * time.Minute

	// How long the final drain may take before the daemon gives up on
	// undelivered events. Stop's SIGKILL escalation waits longer, so a
	// graceful exit normally wins.
	shutdownGrace = 5 * time.Second
)

// Daemon wires the tailer, queue, and delivery client into the run
// loop. All state lives in the struct; nothing package-level mutates.
type Daemon struct {
	cfg     config.Config
	paths   config.Paths
	log     *slog.Logger
	tracker *state.Tracker
	queue   *delivery.Queue
	client  *delivery.Client
	tailer  *tailer.Tailer

	runID     string
	started   time.Time
	lastFlush time.Time
}

// New assembles a Daemon. The config must validate and the watch root
// must exist: an agent watching nothing is a misconfiguration, not a
// condition to idle through.
func New(cfg config.Config, paths config.Paths, log *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	info, err := os.Stat(cfg.WatchRoot)
	if err != nil {
		return nil, fmt.Errorf("watch root %s: %w", cfg.WatchRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", cfg.WatchRoot)
	}

	tracker := state.NewTracker(paths.State())
	queue := delivery.NewQueue()
	client := delivery.NewClient(queue, delivery.Options{
		ServerURL: cfg.ServerURL,
		DeviceKey: cfg.DeviceAPIKey,
		Logger:    log,
		Notifier:  notify.NewLimiter(notify.Desktop{}, notifyCooldown),
	})
	tl := tailer.New(tailer.Options{
		Root:    cfg.WatchRoot,
		Tracker: tracker,
		Sink:    queue,
		Logger:  log,
	})

	return &Daemon{
		cfg:     cfg,
		paths:   paths,
		log:     log,
		tracker: tracker,
		queue:   queue,
		client:  client,
		tailer:  tl,
		runID:   uuid.NewString(),
		started: time.Now(),
	}, nil
}

// Run executes the agent loop until ctx is cancelled, then drains the
// queue with one final flush. The PID file exists for exactly as long
// as Run does.
func (d *Daemon) Run(ctx context.Context) error {
	pid := os.Getpid()
	if err := WritePIDFile(d.paths.PID(), pid); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	defer RemovePIDFile(d.paths.PID())

	d.log.Info("agent started",
		"run_id", d.runID,
		"pid", pid,
		"watch_root", d.cfg.WatchRoot,
		"server", d.cfg.ServerURL,
		"push_interval", d.cfg.PushInterval(),
	)

	files, events := d.tailer.ScanAll()
	d.log.Info("initial scan complete", "files", files, "events", events)
	d.writeHeartbeat()

	watchErr := make(chan error, 1)
	go func() { watchErr <- d.tailer.Run(ctx) }()

	flushTicker := time.NewTicker(d.cfg.PushInterval())
	defer flushTicker.Stop()
	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("shutting down")
			d.drain()
			return nil

		case err := <-watchErr:
			if ctx.Err() != nil {
				continue
			}
			if err == nil {
				err = errors.New("watcher closed unexpectedly")
			}
			d.log.Error("file watcher stopped", "error", err)
			d.drain()
			return fmt.Errorf("file watcher stopped: %w", err)

		case <-flushTicker.C:
			d.flush(ctx)

		case <-statsTicker.C:
			d.logStats()
			d.writeHeartbeat()
		}
	}
}

// flush delivers the queue if it has anything, records the sync time
// on success, and refreshes the heartbeat either way.
func (d *Daemon) flush(ctx context.Context) {
	if d.queue.Len() == 0 {
		return
	}
	res := d.client.Flush(ctx)
	d.lastFlush = time.Now()
	if res.Err == nil && res.Attempted > 0 {
		if err := d.tracker.MarkSynced(d.lastFlush); err != nil {
			d.log.Warn("persisting last sync time", "error", err)
		}
	}
	d.writeHeartbeat()
}

// drain runs the final bounded flush before exit.
func (d *Daemon) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if n := d.queue.Len(); n > 0 {
		d.log.Info("final flush", "events", n)
		d.flush(ctx)
	}
	if left := d.queue.Len(); left > 0 {
		d.log.Warn("exiting with undelivered events", "events", left)
	}
	d.logStats()
	d.writeHeartbeat()
	d.log.Info("agent stopped")
}

func (d *Daemon) logStats() {
	st := d.client.Snapshot()
	snap := d.tracker.Snapshot()
	d.log.Info("agent stats",
		"queued", d.queue.Len(),
		"tracked_files", len(snap.FilePositions),
		"tracked_bytes", lo.Sum(lo.Values(snap.FilePositions)),
		"delivered", st.Delivered,
		"flushes_ok", st.Succeeded,
		"flushes_failed", st.Failed,
		"consecutive_failures", st.ConsecutiveFailures,
		"last_error", st.LastError,
	)
}

func (d *Daemon) writeHeartbeat() {
	snap := d.tracker.Snapshot()
	hb := Heartbeat{
		PID:          os.Getpid(),
		RunID:        d.runID,
		StartedAt:    d.started,
		UpdatedAt:    time.Now(),
		LastFlush:    d.lastFlush,
		QueueDepth:   d.queue.Len(),
		TrackedFiles: len(snap.FilePositions),
		TrackedBytes: lo.Sum(lo.Values(snap.FilePositions)),
		Delivery:     d.client.Snapshot(),
	}
	if err := WriteHeartbeatFile(d.paths.Heartbeat(), hb); err != nil {
		d.log.Warn("writing heartbeat", "error", err)
	}
}
