package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auditfluxd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func validConfig() *Config {
	cfg := &Config{
		Sink: SinkConfig{
			Type: SinkSocket,
			Socket: SocketSink{
				Address: "/var/run/archive.sock",
			},
		},
	}
	applyDefaults(cfg)
	return cfg
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves present variables", func(t *testing.T) {
		t.Setenv("AUDITFLUX_TEST_TOKEN", "s3cret")
		out, err := ResolveEnvVars([]byte("token: ${AUDITFLUX_TEST_TOKEN}"))
		if err != nil {
			t.Fatalf("ResolveEnvVars: %v", err)
		}
		if string(out) != "token: s3cret" {
			t.Fatalf("unexpected output: %s", out)
		}
	})

	t.Run("errors on missing variables", func(t *testing.T) {
		_, err := ResolveEnvVars([]byte("token: ${AUDITFLUX_TEST_MISSING_VAR}"))
		if err == nil {
			t.Fatalf("expected error for missing variable")
		}
		if !strings.Contains(err.Error(), "AUDITFLUX_TEST_MISSING_VAR") {
			t.Fatalf("error does not name the variable: %v", err)
		}
	})

	t.Run("passes through plain content", func(t *testing.T) {
		in := "queue:\n  max_length: 500\n"
		out, err := ResolveEnvVars([]byte(in))
		if err != nil {
			t.Fatalf("ResolveEnvVars: %v", err)
		}
		if string(out) != in {
			t.Fatalf("content changed: %s", out)
		}
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("loads a full config", func(t *testing.T) {
		path := writeConfigFile(t, `
sink:
  type: socket
  socket:
    address: /var/run/archive.sock
    schemas: /usr/share/auditflux/schemas
    compress: true
queue:
  max_length: 500
  full_timeout_seconds: 2
stats:
  enabled: true
  interval_seconds: 30
probe:
  enabled: true
  interval_ms: 2000
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.Sink.Type != SinkSocket || cfg.Sink.Socket.Address != "/var/run/archive.sock" {
			t.Fatalf("unexpected sink config: %+v", cfg.Sink)
		}
		if !cfg.Sink.Socket.Compress {
			t.Fatalf("expected compress to be set")
		}
		if cfg.Queue.MaxLength != 500 || cfg.Queue.FullTimeoutSeconds != 2 {
			t.Fatalf("unexpected queue config: %+v", cfg.Queue)
		}
		if !cfg.Stats.Enabled || cfg.Stats.IntervalSeconds != 30 {
			t.Fatalf("unexpected stats config: %+v", cfg.Stats)
		}
		if cfg.Probe.IntervalMS != 2000 {
			t.Fatalf("unexpected probe config: %+v", cfg.Probe)
		}
	})

	t.Run("applies defaults", func(t *testing.T) {
		path := writeConfigFile(t, `
sink:
  socket:
    address: /var/run/archive.sock
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.Sink.Type != SinkSocket {
			t.Fatalf("expected default sink type socket, got %q", cfg.Sink.Type)
		}
		if cfg.Queue.MaxLength != 10000 {
			t.Fatalf("expected default max_length 10000, got %d", cfg.Queue.MaxLength)
		}
		if cfg.Queue.FullTimeoutSeconds != 5 {
			t.Fatalf("expected default full_timeout_seconds 5, got %d", cfg.Queue.FullTimeoutSeconds)
		}
		if cfg.Stats.IntervalSeconds != 60 {
			t.Fatalf("expected default stats interval 60, got %d", cfg.Stats.IntervalSeconds)
		}
		if cfg.Observability.Logging.Console.Level != "info" {
			t.Fatalf("expected default console level info, got %q", cfg.Observability.Logging.Console.Level)
		}
		if cfg.Observability.Logging.GELF.Facility != "auditfluxd" {
			t.Fatalf("expected default gelf facility, got %q", cfg.Observability.Logging.GELF.Facility)
		}
	})

	t.Run("resolves env vars inside the file", func(t *testing.T) {
		t.Setenv("AUDITFLUX_TEST_BUCKET", "audit-archive")
		path := writeConfigFile(t, `
sink:
  type: s3
  s3:
    region: us-east-1
    bucket: ${AUDITFLUX_TEST_BUCKET}
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.Sink.S3.Bucket != "audit-archive" {
			t.Fatalf("env var not resolved: %q", cfg.Sink.S3.Bucket)
		}
	})

	t.Run("errors on missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Fatalf("expected error for missing file")
		}
	})

	t.Run("errors on malformed yaml", func(t *testing.T) {
		path := writeConfigFile(t, "sink: [not a mapping")
		if _, err := LoadConfig(path); err == nil {
			t.Fatalf("expected error for malformed yaml")
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("accepts a valid config", func(t *testing.T) {
		if err := Validate(validConfig()); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})

	t.Run("rejects unknown sink type", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sink.Type = "kafka"
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for unknown sink type")
		}
	})

	t.Run("socket sink requires address", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sink.Socket.Address = ""
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for empty socket address")
		}
	})

	t.Run("socket tls material must be paired", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sink.Socket.KeyPath = "/etc/auditfluxd/client.key"
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for keypath without certpath")
		}
		cfg.Sink.Socket.CertPath = "/etc/auditfluxd/client.crt"
		if err := Validate(cfg); err != nil {
			t.Fatalf("paired tls material rejected: %v", err)
		}
	})

	t.Run("s3 sink requires region and bucket", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sink.Type = SinkS3
		cfg.Sink.S3.Region = "us-east-1"
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for missing bucket")
		}
		cfg.Sink.S3.Bucket = "audit-archive"
		cfg.Sink.S3.TimeoutSeconds = 5
		if err := Validate(cfg); err != nil {
			t.Fatalf("valid s3 sink rejected: %v", err)
		}
	})

	t.Run("amqp sink requires url and exchange", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sink.Type = SinkAMQP
		cfg.Sink.AMQP.URL = "amqp://guest:guest@mq:5672/"
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for missing exchange")
		}
		cfg.Sink.AMQP.Exchange = "audit.events"
		if err := Validate(cfg); err != nil {
			t.Fatalf("valid amqp sink rejected: %v", err)
		}
	})

	t.Run("rejects nonpositive queue bounds", func(t *testing.T) {
		cfg := validConfig()
		cfg.Queue.MaxLength = 0
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for zero max_length")
		}

		cfg = validConfig()
		cfg.Queue.FullTimeoutSeconds = -1
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for negative full_timeout_seconds")
		}
	})

	t.Run("rejects too aggressive probe timings", func(t *testing.T) {
		cfg := validConfig()
		cfg.Probe.Enabled = true
		cfg.Probe.IntervalMS = 10
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for low probe interval")
		}
	})

	t.Run("gelf requires host when enabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.Logging.GELF.Enabled = true
		cfg.Observability.Logging.GELF.Port = 12201
		cfg.Observability.Logging.GELF.Protocol = "udp"
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for missing gelf host")
		}
		cfg.Observability.Logging.GELF.Host = "graylog.internal"
		if err := Validate(cfg); err != nil {
			t.Fatalf("valid gelf config rejected: %v", err)
		}
	})

	t.Run("influxdb requires connection fields when enabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.Metrics.InfluxDB.Enabled = true
		cfg.Observability.Metrics.InfluxDB.URL = "http://influx:8086"
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for missing influx credentials")
		}
	})

	t.Run("rejects bad console level", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.Logging.Console.Level = "verbose"
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for invalid console level")
		}
	})
}
