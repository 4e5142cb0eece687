package config

// DefaultPath is the well-known config location read at startup and on
// every reload.
const DefaultPath = "/etc/auditfluxd/auditfluxd.yaml"

// Config is the resolved configuration snapshot. A snapshot is immutable
// once loaded; a reload produces a fresh snapshot that supersedes it.
type Config struct {
	Sink          SinkConfig  `yaml:"sink"`
	Queue         QueueConfig `yaml:"queue"`
	Stats         StatsConfig `yaml:"stats"`
	Probe         ProbeConfig `yaml:"probe"`
	Observability ObsConfig   `yaml:"observability"`
}

// Sink type discriminators.
const (
	SinkSocket = "socket"
	SinkS3     = "s3"
	SinkAMQP   = "amqp"
)

type SinkConfig struct {
	Type   string     `yaml:"type"`
	Socket SocketSink `yaml:"socket"`
	S3     S3Sink     `yaml:"s3"`
	AMQP   AMQPSink   `yaml:"amqp"`
}

// SocketSink configures the local-store archival sink: a unix socket path
// or host:port endpoint, the record schema directory, and optional client
// key/certificate material.
type SocketSink struct {
	Address  string `yaml:"address"`
	Schemas  string `yaml:"schemas"`
	KeyPath  string `yaml:"keypath"`
	CertPath string `yaml:"certpath"`
	Compress bool   `yaml:"compress"`
}

type S3Sink struct {
	Region         string `yaml:"region"`
	Bucket         string `yaml:"bucket"`
	Prefix         string `yaml:"prefix"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type AMQPSink struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

type QueueConfig struct {
	MaxLength          int `yaml:"max_length"`
	FullTimeoutSeconds int `yaml:"full_timeout_seconds"`
}

type StatsConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
}

// ProbeConfig drives the optional sink reachability probe. Only dialable
// endpoints (tcp socket sink, amqp) are probed.
type ProbeConfig struct {
	Enabled      bool `yaml:"enabled"`
	IntervalMS   int  `yaml:"interval_ms"`
	TimeoutMS    int  `yaml:"timeout_ms"`
	FailAfter    int  `yaml:"fail_after"`
	RecoverAfter int  `yaml:"recover_after"`
}

type ObsConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type LoggingConfig struct {
	Console ConsoleLogConfig `yaml:"console"`
	GELF    GELFLogConfig    `yaml:"gelf"`
}

type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
}

type GELFLogConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Protocol string `yaml:"protocol"`
	Facility string `yaml:"facility"`
}

type MetricsConfig struct {
	Prometheus PromConfig   `yaml:"prometheus"`
	InfluxDB   InfluxConfig `yaml:"influxdb"`
}

type PromConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
	Bind    string `yaml:"bind"`
}

type InfluxConfig struct {
	Enabled             bool   `yaml:"enabled"`
	URL                 string `yaml:"url"`
	Token               string `yaml:"token"`
	Org                 string `yaml:"org"`
	Bucket              string `yaml:"bucket"`
	PushIntervalSeconds int    `yaml:"push_interval_seconds"`
}
