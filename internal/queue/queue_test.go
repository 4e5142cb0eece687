package queue

import (
	"testing"
	"time"

	"github.com/malindarathnayake/AuditFlux/internal/event"
)

func testEvent(id string) *event.Event {
	return &event.Event{
		Logger:   event.LoggerName,
		Category: event.CategoryAudit,
		Fields:   []event.Field{{Key: "msg", Value: id}},
		Raw:      "msg=" + id,
	}
}

func TestNew_RejectsInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		if _, err := New(capacity); err == nil {
			t.Fatalf("expected error for capacity %d", capacity)
		}
	}
}

func TestQueue_FIFOOrder(t *testing.T) {
	q, err := New(10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		if !q.Enqueue(testEvent(id), time.Second) {
			t.Fatalf("enqueue %q failed", id)
		}
	}

	stop := make(chan struct{})
	for _, want := range ids {
		ev, ok := q.Dequeue(stop)
		if !ok {
			t.Fatalf("dequeue returned not ok")
		}
		if got := ev.Fields[0].Value; got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestQueue_FullAppliesTimeoutThenDrops(t *testing.T) {
	q, err := New(1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !q.Enqueue(testEvent("first"), time.Second) {
		t.Fatalf("first enqueue failed")
	}

	timeout := 50 * time.Millisecond
	start := time.Now()
	if q.Enqueue(testEvent("second"), timeout) {
		t.Fatalf("expected enqueue to drop on a full queue")
	}
	if elapsed := time.Since(start); elapsed < timeout {
		t.Fatalf("enqueue returned after %s, expected to block at least %s", elapsed, timeout)
	}

	if current, _ := q.Stats(); current != 1 {
		t.Fatalf("expected queue length 1 after drop, got %d", current)
	}
}

func TestQueue_EnqueueUnblocksWhenSpaceFrees(t *testing.T) {
	q, err := New(1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !q.Enqueue(testEvent("first"), time.Second) {
		t.Fatalf("first enqueue failed")
	}

	resultCh := make(chan bool, 1)
	go func() {
		resultCh <- q.Enqueue(testEvent("second"), time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	stop := make(chan struct{})
	if _, ok := q.Dequeue(stop); !ok {
		t.Fatalf("dequeue failed")
	}

	select {
	case accepted := <-resultCh:
		if !accepted {
			t.Fatalf("expected blocked enqueue to succeed once space freed")
		}
	case <-time.After(time.Second):
		t.Fatalf("blocked enqueue did not complete")
	}
}

func TestQueue_ZeroTimeoutIsNonBlocking(t *testing.T) {
	q, err := New(1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !q.Enqueue(testEvent("first"), 0) {
		t.Fatalf("non-blocking enqueue into empty queue failed")
	}

	start := time.Now()
	if q.Enqueue(testEvent("second"), 0) {
		t.Fatalf("expected immediate drop on full queue")
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Fatalf("non-blocking enqueue took %s", elapsed)
	}
}

func TestQueue_DequeueReturnsOnStop(t *testing.T) {
	q, err := New(1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	stop := make(chan struct{})
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(stop)
		done <- ok
	}()

	close(stop)
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected not ok from stopped dequeue on empty queue")
		}
	case <-time.After(time.Second):
		t.Fatalf("dequeue did not return after stop")
	}
}

func TestQueue_StoppedDequeueDrainsQueuedEventFirst(t *testing.T) {
	q, err := New(1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !q.Enqueue(testEvent("queued"), time.Second) {
		t.Fatalf("enqueue failed")
	}

	stop := make(chan struct{})
	close(stop)

	ev, ok := q.Dequeue(stop)
	if !ok {
		t.Fatalf("expected queued event despite closed stop channel")
	}
	if ev.Fields[0].Value != "queued" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	if _, ok := q.Dequeue(stop); ok {
		t.Fatalf("expected not ok once the queue is drained")
	}
}

func TestQueue_TryDequeue(t *testing.T) {
	q, err := New(2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, ok := q.TryDequeue(); ok {
		t.Fatalf("expected not ok on empty queue")
	}

	q.Enqueue(testEvent("a"), 0)
	ev, ok := q.TryDequeue()
	if !ok || ev.Fields[0].Value != "a" {
		t.Fatalf("unexpected TryDequeue result: %+v %v", ev, ok)
	}
}

func TestQueue_HighWaterMark(t *testing.T) {
	q, err := New(5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 3; i++ {
		q.Enqueue(testEvent("x"), 0)
	}
	stop := make(chan struct{})
	q.Dequeue(stop)
	q.Dequeue(stop)

	current, highWater := q.Stats()
	if current != 1 {
		t.Fatalf("expected current length 1, got %d", current)
	}
	if highWater != 3 {
		t.Fatalf("expected high-water mark 3, got %d", highWater)
	}

	// The mark never decreases.
	q.Dequeue(stop)
	if _, hw := q.Stats(); hw != 3 {
		t.Fatalf("expected high-water mark to stay 3, got %d", hw)
	}
}
