package daemon

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/malindarathnayake/AuditFlux/internal/event"
	"github.com/malindarathnayake/AuditFlux/internal/observability"
	"github.com/malindarathnayake/AuditFlux/internal/queue"
	"github.com/malindarathnayake/AuditFlux/internal/sink"
)

// The archival record format rejects empty payloads; the forwarded data
// lives entirely in the structured fields and raw text.
const placeholderPayload = "see app-meta"

// Dispatcher drains the queue and submits events to one sink session, in
// arrival order, one at a time. A dispatcher lives for exactly one reload
// epoch: a submit failure marks the session unusable, fires the failure
// callback and terminates the goroutine. Cancellation is cooperative,
// checked between dequeue and submit, so no event is lost at a reload
// boundary.
type Dispatcher struct {
	queue   *queue.Queue
	sink    sink.Sink
	logger  *observability.Logger
	auditor *observability.Auditor
	metrics *observability.MetricsRegistry

	// onFailure is invoked at most once, from the dispatcher goroutine,
	// right before it terminates on a submit error.
	onFailure func()

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewDispatcher(q *queue.Queue, s sink.Sink, logger *observability.Logger, auditor *observability.Auditor, metrics *observability.MetricsRegistry, onFailure func()) *Dispatcher {
	return &Dispatcher{
		queue:     q,
		sink:      s,
		logger:    logger,
		auditor:   auditor,
		metrics:   metrics,
		onFailure: onFailure,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

func (d *Dispatcher) Start() {
	d.auditor.Emit(observability.AuditDispatcherStarted, nil)
	go d.run()
}

// Stop cancels the dispatcher and waits for its goroutine to exit. Safe
// to call after the goroutine already terminated on a submit failure.
func (d *Dispatcher) Stop() {
	select {
	case <-d.stopCh:
	default:
		close(d.stopCh)
	}
	<-d.doneCh
}

// StopAndDrain cancels the dispatcher, then submits every event still
// observable in the queue. Used on the shutdown path only; a reload
// leaves queued events for the replacement dispatcher.
func (d *Dispatcher) StopAndDrain() {
	d.Stop()
	for {
		ev, ok := d.queue.TryDequeue()
		if !ok {
			return
		}
		if !d.submit(ev) {
			return
		}
	}
}

func (d *Dispatcher) run() {
	defer close(d.doneCh)
	defer d.auditor.Emit(observability.AuditDispatcherStopped, nil)

	for {
		ev, ok := d.queue.Dequeue(d.stopCh)
		if !ok {
			return
		}
		if !d.submit(ev) {
			if d.onFailure != nil {
				d.onFailure()
			}
			return
		}
	}
}

// submit hands one event to the sink. Returns false when the session is
// no longer usable.
func (d *Dispatcher) submit(ev *event.Event) bool {
	err := d.sink.Submit(ev, []byte(placeholderPayload))
	if err != nil {
		d.metrics.Counter("auditflux_events_submitted_total", prometheus.Labels{"result": "failure"}).Inc()
		d.logger.Error("Failed to submit event to sink", map[string]interface{}{
			"error": err.Error(),
			"raw":   ev.Raw,
		})
		d.auditor.Emit(observability.AuditSubmitFailed, map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	d.metrics.Counter("auditflux_events_submitted_total", prometheus.Labels{"result": "success"}).Inc()
	return true
}
