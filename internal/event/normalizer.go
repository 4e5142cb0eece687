package event

import (
	"time"

	"github.com/malindarathnayake/AuditFlux/internal/observability"
)

// End-of-event boundary marker emitted by the audit subsystem.
const (
	typeKey  = "type"
	eoeValue = "EOE"
)

// Enqueuer is the queue-facing side of the normalizer. Enqueue returns
// false when the event was dropped because the queue stayed full past the
// timeout.
type Enqueuer interface {
	Enqueue(ev *Event, timeout time.Duration) bool
}

// Normalizer turns framed records into events and hands them to the queue.
// It is invoked synchronously from the ingestion loop, one record at a
// time, so it needs no locking of its own.
type Normalizer struct {
	queue   Enqueuer
	timeout time.Duration
	logger  *observability.Logger
	metrics *observability.MetricsRegistry
}

func NewNormalizer(queue Enqueuer, timeout time.Duration, logger *observability.Logger, metrics *observability.MetricsRegistry) *Normalizer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Normalizer{
		queue:   queue,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// HandleRecord normalizes one record. Records whose only content is the
// end-of-event boundary are discarded without touching the queue; every
// other record results in exactly one enqueue attempt. Failures never
// escape one record's processing.
func (n *Normalizer) HandleRecord(rec Record) {
	ev := &Event{
		Logger:   LoggerName,
		Category: CategoryAudit,
		Raw:      rec.Raw,
	}

	for _, f := range rec.Fields {
		if f.Key == typeKey && f.Value == eoeValue {
			// Boundary marker terminates the event; the marker itself
			// is never appended.
			break
		}
		ev.Fields = append(ev.Fields, f)
	}

	if len(ev.Fields) == 0 {
		// Pure end-of-event boundary, nothing to forward.
		return
	}

	if !n.queue.Enqueue(ev, n.timeout) {
		n.metrics.Counter("auditflux_events_dropped_total", nil).Inc()
		n.logger.Warn("Queue full past timeout; event dropped", map[string]interface{}{
			"type":    rec.Type,
			"timeout": n.timeout.String(),
		})
		return
	}

	n.metrics.Counter("auditflux_events_enqueued_total", nil).Inc()
}
