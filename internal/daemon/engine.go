package daemon

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/malindarathnayake/AuditFlux/internal/config"
	"github.com/malindarathnayake/AuditFlux/internal/event"
	"github.com/malindarathnayake/AuditFlux/internal/health"
	"github.com/malindarathnayake/AuditFlux/internal/observability"
	"github.com/malindarathnayake/AuditFlux/internal/queue"
	"github.com/malindarathnayake/AuditFlux/internal/sink"
	"github.com/malindarathnayake/AuditFlux/internal/source"
)

// Partial records older than this are aged out of the framer even when no
// new bytes arrive.
const ageTimeout = time.Second

// readChunkSize matches the largest audit message the kernel emits.
const readChunkSize = 8192

type SinkFactory func(cfg config.SinkConfig, logger *observability.Logger) (sink.Sink, error)

type EngineOptions struct {
	ConfigPath string

	// Input is the audit record stream; defaults to stdin.
	Input io.Reader

	Logger  *observability.Logger
	Auditor *observability.Auditor
	Metrics *observability.MetricsRegistry

	// ReloadCh delivers external reload requests (SIGHUP).
	ReloadCh <-chan struct{}

	LoadConfig     func(path string) (*config.Config, error)
	ValidateConfig func(cfg *config.Config) error
	NewSink        SinkFactory
	Checker        health.Checker
}

// Engine is the control plane: it owns the ingestion loop on the calling
// goroutine, the run status, and the per-epoch workers (dispatcher, stats
// reporter, sink prober). A reload tears down the sink session and
// workers and rebuilds them from a fresh config snapshot; the queue is
// never recreated, so queued events survive the reload.
type Engine struct {
	configPath string
	input      io.Reader

	logger  *observability.Logger
	auditor *observability.Auditor
	metrics *observability.MetricsRegistry

	reloadCh <-chan struct{}

	loadConfig     func(path string) (*config.Config, error)
	validateConfig func(cfg *config.Config) error
	newSink        SinkFactory
	checker        health.Checker

	mu     sync.Mutex
	status Status
	cfg    *config.Config

	queue      *queue.Queue
	framer     *source.Framer
	normalizer *event.Normalizer

	sink       sink.Sink
	dispatcher *Dispatcher
	stats      *StatsReporter
	prober     *health.Prober

	// dispatchFailCh is notified (coalesced) when a dispatcher dies on a
	// submit failure.
	dispatchFailCh chan struct{}
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.ConfigPath == "" {
		return nil, fmt.Errorf("missing config path")
	}

	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel)
	}

	auditor := opts.Auditor
	if auditor == nil {
		auditor = observability.NewAuditor(logger).WithComponent("daemon")
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewMetricsRegistry()
	}

	input := opts.Input
	if input == nil {
		input = os.Stdin
	}

	loadConfig := opts.LoadConfig
	if loadConfig == nil {
		loadConfig = config.LoadConfig
	}
	validateConfig := opts.ValidateConfig
	if validateConfig == nil {
		validateConfig = config.Validate
	}

	newSink := opts.NewSink
	if newSink == nil {
		newSink = sink.New
	}

	checker := opts.Checker
	if checker == nil {
		checker = &health.DialChecker{Dialer: health.NetDialer{}}
	}

	e := &Engine{
		configPath:     opts.ConfigPath,
		input:          input,
		logger:         logger,
		auditor:        auditor,
		metrics:        metrics,
		reloadCh:       opts.ReloadCh,
		loadConfig:     loadConfig,
		validateConfig: validateConfig,
		newSink:        newSink,
		checker:        checker,
		status:         StatusRunning,
		dispatchFailCh: make(chan struct{}, 1),
	}

	e.initMetrics()
	return e, nil
}

func (e *Engine) initMetrics() {
	e.metrics.NewCounter("auditflux_events_enqueued_total", "Events accepted into the queue", nil)
	e.metrics.NewCounter("auditflux_events_dropped_total", "Events dropped because the queue stayed full past the timeout", nil)
	e.metrics.NewCounter("auditflux_events_submitted_total", "Submit attempts against the sink", []string{"result"})
	e.metrics.NewCounter("auditflux_reloads_total", "Reload cycles", []string{"reason"})
	e.metrics.NewGauge("auditflux_queue_length", "Current queue length", nil)
	e.metrics.NewGauge("auditflux_queue_high_water_mark", "Maximum queue length observed since start", nil)
	e.metrics.NewGauge("auditflux_sink_up", "1 when the sink endpoint probe reports reachable", nil)
}

// Status returns the current run status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) setStatus(s Status) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

// Queue exposes the event queue for stats and tests.
func (e *Engine) Queue() *queue.Queue {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue
}

// Run executes the ingestion loop until end of input or cancellation.
// Startup behaves as a reload cycle with nothing to tear down; any config
// or sink construction failure, initial or on reload, is fatal and
// returned to the caller.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.reloadCycle("startup"); err != nil {
		return err
	}
	defer e.shutdown()

	chunks := make(chan []byte)
	go e.readInput(ctx, chunks)

	reloadCh := e.reloadCh

	for {
		// With buffered but unflushed record data, wait with a short
		// deadline so stale partial records are aged out; otherwise
		// wait for input indefinitely.
		var ageTimer *time.Timer
		var ageCh <-chan time.Time
		if e.framer.HasPending() {
			ageTimer = time.NewTimer(ageTimeout)
			ageCh = ageTimer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(ageTimer)
			e.setStatus(StatusStopping)
			e.framer.Age()
			return nil

		case _, ok := <-reloadCh:
			stopTimer(ageTimer)
			if !ok {
				// Signal goroutine gone; stop watching the channel.
				reloadCh = nil
				continue
			}
			e.auditor.Emit(observability.AuditReloadRequested, map[string]interface{}{
				"reason": "signal",
			})
			if err := e.reloadCycle("signal"); err != nil {
				return err
			}

		case <-e.dispatchFailCh:
			stopTimer(ageTimer)
			if err := e.reloadCycle("sink_failure"); err != nil {
				return err
			}

		case <-ageCh:
			e.framer.Age()

		case chunk, ok := <-chunks:
			stopTimer(ageTimer)
			if !ok {
				// End of input: flush what is buffered and shut down.
				e.setStatus(StatusStopping)
				e.framer.Age()
				return nil
			}
			e.framer.Feed(chunk)
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// readInput performs blocking reads off the engine's goroutine and hands
// chunks over; the channel closes at end of input.
func (e *Engine) readInput(ctx context.Context, chunks chan<- []byte) {
	defer close(chunks)
	buf := make([]byte, readChunkSize)
	for {
		n, err := e.input.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				e.logger.Warn("Input read failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return
		}
	}
}

// reloadCycle loads a fresh config snapshot, replaces the sink session
// and restarts the per-epoch workers. Queued events are left in place for
// the new dispatcher. Failure anywhere is fatal: a reload does not fall
// back to the previous working config.
func (e *Engine) reloadCycle(reason string) error {
	e.setStatus(StatusReloading)
	e.logger.Info("Loading config", map[string]interface{}{
		"path":   e.configPath,
		"reason": reason,
	})

	cfg, err := e.loadConfig(e.configPath)
	if err != nil {
		e.logger.Error("Failed to load config", map[string]interface{}{"error": err.Error()})
		return err
	}
	if err := e.validateConfig(cfg); err != nil {
		e.logger.Error("Invalid config", map[string]interface{}{"error": err.Error()})
		return err
	}

	e.stopWorkers()
	e.closeSink()

	if e.queue == nil {
		q, qerr := queue.New(cfg.Queue.MaxLength)
		if qerr != nil {
			return qerr
		}
		e.mu.Lock()
		e.queue = q
		e.mu.Unlock()
		timeout := time.Duration(cfg.Queue.FullTimeoutSeconds) * time.Second
		e.normalizer = event.NewNormalizer(q, timeout, e.logger, e.metrics)
		e.framer = source.NewFramer(e.normalizer.HandleRecord)
	} else if cfg.Queue.MaxLength != e.queue.Cap() {
		// The queue is never recreated across reloads; capacity changes
		// take effect on the next daemon restart.
		e.logger.Warn("queue.max_length changed; restart required to apply", map[string]interface{}{
			"active":     e.queue.Cap(),
			"configured": cfg.Queue.MaxLength,
		})
	}

	s, err := e.newSink(cfg.Sink, e.logger)
	if err != nil {
		e.logger.Error("Failed to build sink session", map[string]interface{}{"error": err.Error()})
		return err
	}
	e.sink = s
	e.auditor.Emit(observability.AuditSinkSessionOpened, map[string]interface{}{
		"type": cfg.Sink.Type,
	})

	e.dispatcher = NewDispatcher(e.queue, s, e.logger, e.auditor, e.metrics, e.onDispatchFailure)
	e.dispatcher.Start()

	if cfg.Stats.Enabled {
		interval := time.Duration(cfg.Stats.IntervalSeconds) * time.Second
		e.stats = NewStatsReporter(e.queue, interval, e.logger, e.metrics)
		e.stats.Start()
	}

	e.startProber(cfg)

	e.mu.Lock()
	e.cfg = cfg
	e.status = StatusRunning
	e.mu.Unlock()

	e.metrics.Counter("auditflux_reloads_total", prometheus.Labels{"reason": reason}).Inc()
	e.auditor.Emit(observability.AuditConfigLoaded, map[string]interface{}{
		"sink_type": cfg.Sink.Type,
		"queue_max": cfg.Queue.MaxLength,
		"startup":   reason == "startup",
	})
	if reason != "startup" {
		e.auditor.Emit(observability.AuditReloadCompleted, map[string]interface{}{
			"reason": reason,
		})
	}
	return nil
}

// onDispatchFailure runs on the dispatcher goroutine right before it
// terminates.
func (e *Engine) onDispatchFailure() {
	e.setStatus(StatusReloading)
	select {
	case e.dispatchFailCh <- struct{}{}:
	default:
	}
}

func (e *Engine) startProber(cfg *config.Config) {
	if !cfg.Probe.Enabled {
		return
	}
	network, address, ok := sink.Endpoint(cfg.Sink)
	if !ok {
		e.logger.Debug("Sink has no probeable endpoint; probe disabled", map[string]interface{}{
			"type": cfg.Sink.Type,
		})
		return
	}

	p := health.NewProber(e.checker, e, health.Target{
		Network:      network,
		Address:      address,
		Interval:     time.Duration(cfg.Probe.IntervalMS) * time.Millisecond,
		Timeout:      time.Duration(cfg.Probe.TimeoutMS) * time.Millisecond,
		FailAfter:    cfg.Probe.FailAfter,
		RecoverAfter: cfg.Probe.RecoverAfter,
	})
	if err := p.Start(); err != nil {
		e.logger.Warn("Failed to start sink probe", map[string]interface{}{"error": err.Error()})
		return
	}
	e.prober = p
}

// OnProbeStateChange implements health.Observer.
func (e *Engine) OnProbeStateChange(change health.StateChange) {
	val := 0.0
	if change.New == health.StateReachable {
		val = 1.0
	}
	e.metrics.Gauge("auditflux_sink_up", nil).Set(val)
	e.auditor.Emit(observability.AuditProbeStateChanged, map[string]interface{}{
		"old_state": string(change.Old),
		"new_state": string(change.New),
	})
}

func (e *Engine) stopWorkers() {
	if e.prober != nil {
		e.prober.Stop()
		e.prober = nil
	}
	if e.stats != nil {
		e.stats.Stop()
		e.stats = nil
	}
	if e.dispatcher != nil {
		e.dispatcher.Stop()
		e.dispatcher = nil
	}
}

func (e *Engine) closeSink() {
	if e.sink == nil {
		return
	}
	if err := e.sink.Close(); err != nil {
		e.logger.Warn("Failed to close sink session", map[string]interface{}{"error": err.Error()})
	}
	e.auditor.Emit(observability.AuditSinkSessionClosed, nil)
	e.sink = nil
}

// shutdown finishes draining observable queued work, then releases the
// sink session.
func (e *Engine) shutdown() {
	if e.prober != nil {
		e.prober.Stop()
		e.prober = nil
	}
	if e.stats != nil {
		e.stats.Stop()
		e.stats = nil
	}
	if e.dispatcher != nil {
		e.dispatcher.StopAndDrain()
		e.dispatcher = nil
	}
	e.closeSink()
	e.auditor.Emit(observability.AuditShutdown, nil)
}
