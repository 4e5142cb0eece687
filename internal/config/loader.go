package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// EnvVarRegex matches ${VAR_NAME}
var EnvVarRegex = regexp.MustCompile(`\$\{([A-Z0-9_]+)\}`)

// LoadConfig loads and resolves the configuration from the specified path.
// The returned snapshot has already had defaults applied but has not been
// validated; callers run Validate separately.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	resolvedData, err := ResolveEnvVars(data)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve env vars: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(resolvedData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Sink.Type == "" {
		cfg.Sink.Type = SinkSocket
	}
	if cfg.Queue.MaxLength == 0 {
		cfg.Queue.MaxLength = 10000
	}
	if cfg.Queue.FullTimeoutSeconds == 0 {
		cfg.Queue.FullTimeoutSeconds = 5
	}
	if cfg.Stats.IntervalSeconds == 0 {
		cfg.Stats.IntervalSeconds = 60
	}
	if cfg.Probe.IntervalMS == 0 {
		cfg.Probe.IntervalMS = 5000
	}
	if cfg.Probe.TimeoutMS == 0 {
		cfg.Probe.TimeoutMS = 1000
	}
	if cfg.Probe.FailAfter == 0 {
		cfg.Probe.FailAfter = 3
	}
	if cfg.Probe.RecoverAfter == 0 {
		cfg.Probe.RecoverAfter = 2
	}
	if cfg.Sink.S3.TimeoutSeconds == 0 {
		cfg.Sink.S3.TimeoutSeconds = 5
	}
	if cfg.Observability.Logging.Console.Level == "" {
		cfg.Observability.Logging.Console.Level = "info"
	}
	if cfg.Observability.Logging.GELF.Facility == "" {
		cfg.Observability.Logging.GELF.Facility = "auditfluxd"
	}
	if cfg.Observability.Metrics.Prometheus.Path == "" {
		cfg.Observability.Metrics.Prometheus.Path = "/metrics"
	}
	if cfg.Observability.Metrics.InfluxDB.PushIntervalSeconds == 0 {
		cfg.Observability.Metrics.InfluxDB.PushIntervalSeconds = 15
	}
}

// ResolveEnvVars replaces ${VAR} with environment variable values
func ResolveEnvVars(data []byte) ([]byte, error) {
	content := string(data)
	var missingVars []string

	// First pass: check for missing variables
	matches := EnvVarRegex.FindAllStringSubmatch(content, -1)
	for _, match := range matches {
		varName := match[1]
		if _, ok := os.LookupEnv(varName); !ok {
			found := false
			for _, v := range missingVars {
				if v == varName {
					found = true
					break
				}
			}
			if !found {
				missingVars = append(missingVars, varName)
			}
		}
	}

	if len(missingVars) > 0 {
		return nil, fmt.Errorf("missing environment variables: %v", missingVars)
	}

	// Second pass: replace
	resolved := EnvVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1] // Remove ${ and }
		val, _ := os.LookupEnv(varName)
		return val
	})

	return []byte(resolved), nil
}
