package observability

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	dto "github.com/prometheus/client_model/go"
)

// InfluxPusher periodically pushes the gathered Prometheus metrics to
// InfluxDB as line-protocol points.
type InfluxPusher struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	registry *MetricsRegistry
	org      string
	bucket   string
	interval time.Duration
	logger   *Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// InfluxPusherConfig holds InfluxDB connection parameters
type InfluxPusherConfig struct {
	URL      string
	Token    string
	Org      string
	Bucket   string
	Interval time.Duration
}

// NewInfluxPusher creates a new InfluxDB pusher
func NewInfluxPusher(cfg InfluxPusherConfig, registry *MetricsRegistry, logger *Logger) (*InfluxPusher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("influxdb url is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("influxdb token is required")
	}
	if cfg.Org == "" {
		return nil, fmt.Errorf("influxdb org is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("influxdb bucket is required")
	}
	if cfg.Interval < time.Second {
		return nil, fmt.Errorf("influxdb interval must be at least 1 second")
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	return &InfluxPusher{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		registry: registry,
		org:      cfg.Org,
		bucket:   cfg.Bucket,
		interval: cfg.Interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins the periodic push loop
func (p *InfluxPusher) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer close(p.doneCh)

	p.logger.Info("InfluxDB pusher started", map[string]interface{}{
		"interval": p.interval.String(),
		"org":      p.org,
		"bucket":   p.bucket,
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.push(ctx); err != nil {
				p.logger.Warn("Failed to push metrics to InfluxDB", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}

// Stop stops the pusher
func (p *InfluxPusher) Stop() {
	select {
	case <-p.stopCh:
		return
	default:
		close(p.stopCh)
	}

	// Only wait for doneCh if Start() is running.
	select {
	case <-p.doneCh:
	default:
	}

	p.client.Close()
}

func (p *InfluxPusher) push(ctx context.Context) error {
	metricFamilies, err := p.registry.Registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	points := convertToPoints(metricFamilies, time.Now())
	if len(points) == 0 {
		return nil
	}

	if err := p.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write points: %w", err)
	}
	return nil
}

// convertToPoints maps counters and gauges onto line-protocol points;
// histograms and summaries are skipped.
func convertToPoints(metricFamilies []*dto.MetricFamily, now time.Time) []*write.Point {
	var points []*write.Point

	for _, mf := range metricFamilies {
		for _, m := range mf.GetMetric() {
			tags := make(map[string]string)
			for _, lp := range m.GetLabel() {
				tags[lp.GetName()] = lp.GetValue()
			}

			var value float64
			var hasValue bool
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				if m.Counter != nil {
					value = m.Counter.GetValue()
					hasValue = true
				}
			case dto.MetricType_GAUGE:
				if m.Gauge != nil {
					value = m.Gauge.GetValue()
					hasValue = true
				}
			case dto.MetricType_UNTYPED:
				if m.Untyped != nil {
					value = m.Untyped.GetValue()
					hasValue = true
				}
			}

			if hasValue {
				points = append(points, write.NewPoint(
					mf.GetName(),
					tags,
					map[string]interface{}{"value": value},
					now,
				))
			}
		}
	}

	return points
}
