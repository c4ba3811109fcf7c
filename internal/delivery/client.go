// Package delivery batches usage events and pushes them to the
// collector. Delivery is at-least-once: a failed batch goes back to
// the front of the queue and is retried on the next flush cycle.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/DavidIlie/claude-code-prometheus/internal/notify"
	"github.com/DavidIlie/claude-code-prometheus/internal/usage"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = 5 * time.Second

	// Consecutive failed flushes before the notifier is asked to alert.
	failureThreshold = 3
)

// Options configure a Client.
type Options struct {
	ServerURL  string
	DeviceKey  string
	Timeout    time.Duration       // 0: 30s
	MaxRetries int                 // 0: 3
	RetryDelay time.Duration       // 0: 5s
	Logger     *slog.Logger        // nil: discard
	Notifier   notify.Notifier     // nil: no escalation
	Sleep      func(time.Duration) // nil: context-aware time.Sleep
}

// Stats are cumulative delivery counters.
type Stats struct {
	Succeeded           int64     `json:"succeeded"`
	Failed              int64     `json:"failed"`
	Delivered           int64     `json:"delivered"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastSuccess         time.Time `json:"lastSuccess"`
	LastError           string    `json:"lastError,omitempty"`
}

// FlushResult reports the outcome of one flush cycle. A zero result
// means there was nothing to do.
type FlushResult struct {
	Attempted int // events in the snapshot
	Processed int // count acknowledged by the collector
	Err       error
}

// Client pushes queued events to the collector.
type Client struct {
	queue      *Queue
	pushURL    string
	healthURL  string
	host       string
	deviceKey  string
	http       *http.Client
	log        *slog.Logger
	notifier   notify.Notifier
	maxRetries int
	retryDelay time.Duration
	sleep      func(time.Duration)

	mu       sync.Mutex
	inFlight bool
	stats    Stats
}

// NewClient builds a Client draining queue against opts.ServerURL.
func NewClient(queue *Queue, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	base := strings.TrimRight(opts.ServerURL, "/")
	host := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		host = u.Host
	}

	return &Client{
		queue:      queue,
		pushURL:    base + "/api/usage",
		healthURL:  base + "/api/health",
		host:       host,
		deviceKey:  opts.DeviceKey,
		http:       &http.Client{Timeout: opts.Timeout},
		log:        opts.Logger,
		notifier:   opts.Notifier,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		sleep:      opts.Sleep,
	}
}

// Flush snapshots the queue and delivers it. On failure the snapshot is
// restored to the queue front ahead of anything appended meanwhile.
// Retries up to MaxRetries times with a fixed delay, doubled after a
// rate-limit response. An authentication rejection aborts the cycle
// after a single attempt: a bad key will not heal on retry. If another
// flush is still in flight the call is a no-op.
func (c *Client) Flush(ctx context.Context) FlushResult {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return FlushResult{}
	}
	c.inFlight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	snapshot := c.queue.TakeAll()
	if len(snapshot) == 0 {
		return FlushResult{}
	}

	log := c.log.With("flush_id", uuid.NewString()[:8], "events", len(snapshot))

	var last *Error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		processed, perr := c.push(ctx, snapshot)
		if perr == nil {
			c.recordSuccess(len(snapshot))
			log.Info("delivered usage batch",
				"attempt", attempt,
				"processed", processed,
				"input_tokens", lo.SumBy(snapshot, func(e usage.Event) int64 { return e.InputTokens }),
				"output_tokens", lo.SumBy(snapshot, func(e usage.Event) int64 { return e.OutputTokens }),
			)
			return FlushResult{Attempted: len(snapshot), Processed: processed}
		}
		last = perr
		log.Warn("delivery attempt failed",
			"attempt", attempt, "kind", perr.Kind.String(), "error", perr)

		if perr.Auth() {
			break
		}
		if attempt < c.maxRetries {
			delay := c.retryDelay
			if perr.RateLimited() {
				delay *= 2
			}
			c.pause(ctx, delay)
			if ctx.Err() != nil {
				break
			}
		}
	}

	c.queue.Restore(snapshot)
	fails := c.recordFailure(last)
	log.Error("delivery failed, batch requeued",
		"kind", last.Kind.String(), "consecutive_failures", fails, "error", last)
	c.escalate(fails, last)
	return FlushResult{Attempted: len(snapshot), Err: last}
}

// Snapshot returns the current delivery counters.
func (c *Client) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// CheckHealth probes the collector's health endpoint.
func (c *Client) CheckHealth(ctx context.Context) (Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return Health{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Health{}, Classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Health{}, &Error{Kind: KindHTTPStatus, StatusCode: resp.StatusCode}
	}
	h := Health{Status: "ok"}
	body, _ := io.ReadAll(resp.Body)
	if len(body) > 0 {
		if err := json.Unmarshal(body, &h); err != nil {
			return Health{}, &Error{Kind: KindParseError, Err: err}
		}
		if h.Status == "" {
			h.Status = "ok"
		}
	}
	return h, nil
}

// VerifyKey posts an empty batch to confirm the device key is accepted.
func (c *Client) VerifyKey(ctx context.Context) error {
	if _, perr := c.push(ctx, []usage.Event{}); perr != nil {
		return perr
	}
	return nil
}

// Health is the collector's health endpoint response.
type Health struct {
	Status string `json:"status"`
}

type pushRequest struct {
	Entries []usage.Event `json:"entries"`
}

type pushResponse struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
}

// push performs one POST attempt and classifies any failure.
func (c *Client) push(ctx context.Context, events []usage.Event) (int, *Error) {
	payload, err := json.Marshal(pushRequest{Entries: events})
	if err != nil {
		return 0, &Error{Kind: KindParseError, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pushURL, bytes.NewReader(payload))
	if err != nil {
		return 0, Classify(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-Key", c.deviceKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, Classify(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &Error{Kind: KindHTTPStatus, StatusCode: resp.StatusCode}
	}

	var out pushResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, &Error{Kind: KindParseError, Err: err}
	}
	return out.Processed, nil
}

func (c *Client) recordSuccess(delivered int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Succeeded++
	c.stats.Delivered += int64(delivered)
	c.stats.ConsecutiveFailures = 0
	c.stats.LastSuccess = time.Now()
	c.stats.LastError = ""
}

func (c *Client) recordFailure(derr *Error) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Failed++
	c.stats.ConsecutiveFailures++
	c.stats.LastError = derr.Error()
	return c.stats.ConsecutiveFailures
}

// escalate asks the notifier to alert after repeated failures. Auth
// rejections escalate immediately since waiting cannot fix them; the
// notifier's own cooldown keeps the alert volume down either way.
func (c *Client) escalate(fails int, derr *Error) {
	if c.notifier == nil {
		return
	}
	if fails < failureThreshold && !derr.Auth() {
		return
	}

	var body string
	if derr.Auth() {
		body = fmt.Sprintf("The collector at %s rejected the device key. Run 'ccp-agent setup' to update it.", c.host)
	} else {
		body = fmt.Sprintf("%d consecutive flushes to %s have failed (last: %v).", fails, c.host, derr)
	}
	if err := c.notifier.Notify("ccp-agent: usage delivery failing", body); err != nil {
		c.log.Warn("sending notification", "error", err)
	}
}

// pause sleeps for d, returning early if ctx is cancelled.
func (c *Client) pause(ctx context.Context, d time.Duration) {
	if c.sleep != nil {
		c.sleep(d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
