package daemon

import (
	"time"

	"github.com/malindarathnayake/AuditFlux/internal/observability"
	"github.com/malindarathnayake/AuditFlux/internal/queue"
)

// StatsReporter periodically logs the queue depth and high-water mark and
// refreshes the queue gauges. Purely observational; it never mutates
// shared state.
type StatsReporter struct {
	queue    *queue.Queue
	logger   *observability.Logger
	metrics  *observability.MetricsRegistry
	interval time.Duration

	ticker Ticker
	stopCh chan struct{}
	doneCh chan struct{}
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct {
	t *time.Ticker
}

func (rt realTicker) C() <-chan time.Time { return rt.t.C }
func (rt realTicker) Stop()               { rt.t.Stop() }

func NewStatsReporter(q *queue.Queue, interval time.Duration, logger *observability.Logger, metrics *observability.MetricsRegistry) *StatsReporter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &StatsReporter{
		queue:    q,
		logger:   logger,
		metrics:  metrics,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (r *StatsReporter) Start() {
	if r.ticker == nil {
		r.ticker = realTicker{t: time.NewTicker(r.interval)}
	}
	go r.run()
}

func (r *StatsReporter) Stop() {
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
	r.ticker.Stop()
	<-r.doneCh
}

func (r *StatsReporter) run() {
	defer close(r.doneCh)
	for {
		select {
		case <-r.stopCh:
			return
		case <-r.ticker.C():
			r.report()
		}
	}
}

func (r *StatsReporter) report() {
	current, highWater := r.queue.Stats()
	r.metrics.Gauge("auditflux_queue_length", nil).Set(float64(current))
	r.metrics.Gauge("auditflux_queue_high_water_mark", nil).Set(float64(highWater))
	r.logger.Info("Queue stats", map[string]interface{}{
		"current_length":  current,
		"high_water_mark": highWater,
	})
}
