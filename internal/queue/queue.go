// Package queue implements the bounded FIFO mailbox between the ingestion
// loop and the dispatcher. It is the only data structure shared across
// goroutines in the pipeline.
package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/malindarathnayake/AuditFlux/internal/event"
)

// Queue is a capacity-bounded FIFO of events. Enqueue applies a bounded
// wait then drops the newest event (tail-drop); Dequeue blocks until data
// arrives or the caller's stop channel closes. The queue is created once
// at process start and survives configuration reloads, so events enqueued
// before a reload are dispatched by the replacement dispatcher.
type Queue struct {
	ch chan *event.Event

	mu        sync.Mutex
	highWater int
}

func New(capacity int) (*Queue, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("invalid queue capacity: %d", capacity)
	}
	return &Queue{
		ch: make(chan *event.Event, capacity),
	}, nil
}

// Enqueue appends ev to the tail, waiting up to timeout for space when the
// queue is full. It returns false when the queue stayed full for the whole
// timeout and the event was dropped. Dropping the newest event under
// sustained backpressure is a deliberate policy favoring liveness of the
// ingestion path over completeness.
func (q *Queue) Enqueue(ev *event.Event, timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case q.ch <- ev:
			q.noteDepth()
			return true
		default:
			return false
		}
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case q.ch <- ev:
		q.noteDepth()
		return true
	case <-t.C:
		return false
	}
}

// Dequeue pops the head, blocking until an event is available or stop is
// closed. The second return is false only on stop.
func (q *Queue) Dequeue(stop <-chan struct{}) (*event.Event, bool) {
	select {
	case ev := <-q.ch:
		return ev, true
	case <-stop:
		// Prefer draining an already-queued event over stopping, so a
		// racing stop never discards accepted work.
		select {
		case ev := <-q.ch:
			return ev, true
		default:
			return nil, false
		}
	}
}

// TryDequeue pops the head without blocking. Used to finish draining
// observable work during shutdown.
func (q *Queue) TryDequeue() (*event.Event, bool) {
	select {
	case ev := <-q.ch:
		return ev, true
	default:
		return nil, false
	}
}

// Stats returns the current length and the high-water mark, a consistent
// snapshot for reporting.
func (q *Queue) Stats() (current, highWater int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ch), q.highWater
}

// Cap returns the configured capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

func (q *Queue) noteDepth() {
	q.mu.Lock()
	if n := len(q.ch); n > q.highWater {
		q.highWater = n
	}
	q.mu.Unlock()
}
