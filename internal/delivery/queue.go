package delivery

import (
	"sync"

	"github.com/DavidIlie/claude-code-prometheus/internal/usage"
)

// Queue is the in-memory buffer of events awaiting delivery, oldest
// first. The tailer appends while the run loop flushes, so all methods
// are safe for concurrent use. A graceful shutdown drains the queue
// with a final flush; a hard kill loses whatever was still queued.
type Queue struct {
	mu     sync.Mutex
	events []usage.Event
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Append adds events to the back of the queue.
func (q *Queue) Append(events ...usage.Event) {
	if len(events) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, events...)
}

// TakeAll atomically removes and returns everything queued.
func (q *Queue) TakeAll() []usage.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	taken := q.events
	q.events = nil
	return taken
}

// Restore puts a failed snapshot back at the front, ahead of anything
// appended while the delivery attempt was in flight, preserving overall
// order.
func (q *Queue) Restore(snapshot []usage.Event) {
	if len(snapshot) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(snapshot, q.events...)
}

// Len reports the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
