package tailer

import (
	"sync"
	"time"
)

// debouncer delays per-path emissions until the path has been quiet
// for the configured window, so a burst of partial writes settles
// before the file is read. Each touch resets the path's timer.
type debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	timers  map[string]*time.Timer
	ready   []string
	notify  chan struct{}
	stopped bool
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window: window,
		timers: make(map[string]*time.Timer),
		notify: make(chan struct{}, 1),
	}
}

// Touch registers activity on path, starting or resetting its timer.
func (d *debouncer) Touch(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.timers[path]; ok {
		t.Reset(d.window)
		return
	}
	d.timers[path] = time.AfterFunc(d.window, func() { d.fire(path) })
}

func (d *debouncer) fire(path string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.timers, path)
	d.ready = append(d.ready, path)
	d.mu.Unlock()

	// Non-blocking: one pending signal is enough, Drain picks up the rest.
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// Ready signals that settled paths are waiting in Drain.
func (d *debouncer) Ready() <-chan struct{} {
	return d.notify
}

// Drain returns the settled paths, oldest first.
func (d *debouncer) Drain() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	paths := d.ready
	d.ready = nil
	return paths
}

// Stop cancels all pending timers. Touch becomes a no-op afterwards.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
	}
}
