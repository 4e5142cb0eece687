package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks a loaded configuration snapshot for errors. A snapshot
// that fails validation is never installed; on initial load or reload that
// is a fatal condition.
func Validate(cfg *Config) error {
	if err := validateSink(&cfg.Sink); err != nil {
		return err
	}

	if cfg.Queue.MaxLength < 1 {
		return fmt.Errorf("invalid queue.max_length: %d", cfg.Queue.MaxLength)
	}
	if cfg.Queue.FullTimeoutSeconds < 1 {
		return fmt.Errorf("invalid queue.full_timeout_seconds: %d", cfg.Queue.FullTimeoutSeconds)
	}

	if cfg.Stats.Enabled && cfg.Stats.IntervalSeconds < 1 {
		return fmt.Errorf("invalid stats.interval_seconds: %d", cfg.Stats.IntervalSeconds)
	}

	if cfg.Probe.Enabled {
		if cfg.Probe.IntervalMS < 100 {
			return fmt.Errorf("probe interval too low: %d", cfg.Probe.IntervalMS)
		}
		if cfg.Probe.TimeoutMS < 100 {
			return fmt.Errorf("probe timeout too low: %d", cfg.Probe.TimeoutMS)
		}
		if cfg.Probe.FailAfter < 1 {
			return fmt.Errorf("invalid probe.fail_after: %d", cfg.Probe.FailAfter)
		}
		if cfg.Probe.RecoverAfter < 1 {
			return fmt.Errorf("invalid probe.recover_after: %d", cfg.Probe.RecoverAfter)
		}
	}

	return validateObservability(&cfg.Observability)
}

func validateSink(s *SinkConfig) error {
	switch strings.ToLower(s.Type) {
	case SinkSocket:
		if s.Socket.Address == "" {
			return fmt.Errorf("sink.socket.address is required")
		}
		if (s.Socket.KeyPath == "") != (s.Socket.CertPath == "") {
			return fmt.Errorf("sink.socket keypath and certpath must be set together")
		}
	case SinkS3:
		if s.S3.Region == "" {
			return fmt.Errorf("sink.s3.region is required")
		}
		if s.S3.Bucket == "" {
			return fmt.Errorf("sink.s3.bucket is required")
		}
		if s.S3.TimeoutSeconds < 1 {
			return fmt.Errorf("invalid sink.s3.timeout_seconds: %d", s.S3.TimeoutSeconds)
		}
	case SinkAMQP:
		if s.AMQP.URL == "" {
			return fmt.Errorf("sink.amqp.url is required")
		}
		if s.AMQP.Exchange == "" {
			return fmt.Errorf("sink.amqp.exchange is required")
		}
	default:
		return fmt.Errorf("invalid sink.type: %s", s.Type)
	}
	return nil
}

func validateObservability(obs *ObsConfig) error {
	if obs.Logging.Console.Level != "" {
		level := strings.ToLower(obs.Logging.Console.Level)
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid console log level: %s", obs.Logging.Console.Level)
		}
	}

	if obs.Logging.GELF.Enabled {
		if obs.Logging.GELF.Host == "" {
			return fmt.Errorf("gelf.host is required when gelf.enabled is true")
		}
		if obs.Logging.GELF.Port < 1 || obs.Logging.GELF.Port > 65535 {
			return fmt.Errorf("invalid gelf.port: %d", obs.Logging.GELF.Port)
		}
		proto := strings.ToLower(obs.Logging.GELF.Protocol)
		if proto != "udp" && proto != "tcp" {
			return fmt.Errorf("invalid gelf.protocol: %s", obs.Logging.GELF.Protocol)
		}
		if obs.Logging.GELF.Facility == "" {
			return fmt.Errorf("gelf.facility is required when gelf.enabled is true")
		}
	}

	if obs.Metrics.Prometheus.Enabled {
		if obs.Metrics.Prometheus.Port < 1 || obs.Metrics.Prometheus.Port > 65535 {
			return fmt.Errorf("invalid prometheus.port: %d", obs.Metrics.Prometheus.Port)
		}
		if !strings.HasPrefix(obs.Metrics.Prometheus.Path, "/") {
			return fmt.Errorf("invalid prometheus.path: %s", obs.Metrics.Prometheus.Path)
		}
		bind := obs.Metrics.Prometheus.Bind
		if bind != "" && bind != "0.0.0.0" && bind != "::" {
			if net.ParseIP(bind) == nil {
				return fmt.Errorf("invalid prometheus.bind: %s", bind)
			}
		}
	}

	if obs.Metrics.InfluxDB.Enabled {
		if obs.Metrics.InfluxDB.URL == "" ||
			obs.Metrics.InfluxDB.Token == "" ||
			obs.Metrics.InfluxDB.Org == "" ||
			obs.Metrics.InfluxDB.Bucket == "" {
			return fmt.Errorf("influxdb url/token/org/bucket are required when influxdb.enabled is true")
		}
		if obs.Metrics.InfluxDB.PushIntervalSeconds < 1 {
			return fmt.Errorf("invalid influxdb.push_interval_seconds: %d", obs.Metrics.InfluxDB.PushIntervalSeconds)
		}
	}

	return nil
}
