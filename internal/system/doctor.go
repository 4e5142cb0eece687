// Package system runs environment preflight checks: everything that must
// be true on the host before the daemon can forward events.
package system

import (
	"fmt"
	"os"
	"time"

	"github.com/malindarathnayake/AuditFlux/internal/config"
	"github.com/malindarathnayake/AuditFlux/internal/health"
	"github.com/malindarathnayake/AuditFlux/internal/sink"
)

const checkDialTimeout = 3 * time.Second

type CheckResult struct {
	Name    string
	Passed  bool
	Message string
}

type Doctor struct {
	checker health.Checker
}

func NewDoctor(checker health.Checker) *Doctor {
	return &Doctor{
		checker: checker,
	}
}

// RunChecks verifies the host environment against a loaded config. Every
// check runs even after failures so the operator sees the full picture.
func (d *Doctor) RunChecks(cfg *config.Config) []CheckResult {
	var results []CheckResult

	if err := config.Validate(cfg); err != nil {
		results = append(results, CheckResult{"Config", false, err.Error()})
	} else {
		results = append(results, CheckResult{"Config", true, "valid"})
	}

	results = append(results, d.checkSink(cfg)...)
	return results
}

func (d *Doctor) checkSink(cfg *config.Config) []CheckResult {
	var results []CheckResult

	if cfg.Sink.Type == config.SinkSocket {
		results = append(results, checkSchemaDir(cfg.Sink.Socket.Schemas))
		results = append(results, checkTLSMaterial(cfg.Sink.Socket)...)
	}

	network, address, ok := sink.Endpoint(cfg.Sink)
	if !ok {
		results = append(results, CheckResult{"Sink Endpoint", true, "no dialable endpoint for this sink type, skipped"})
		return results
	}

	if err := d.checker.Check(network, address, checkDialTimeout); err != nil {
		results = append(results, CheckResult{"Sink Endpoint", false, fmt.Sprintf("%s %s unreachable: %v", network, address, err)})
	} else {
		results = append(results, CheckResult{"Sink Endpoint", true, fmt.Sprintf("%s %s reachable", network, address)})
	}
	return results
}

func checkSchemaDir(path string) CheckResult {
	if path == "" {
		return CheckResult{"Schema Directory", true, "not configured, skipped"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return CheckResult{"Schema Directory", false, fmt.Sprintf("%s: %v", path, err)}
	}
	if !info.IsDir() {
		return CheckResult{"Schema Directory", false, fmt.Sprintf("%s is not a directory", path)}
	}
	return CheckResult{"Schema Directory", true, path}
}

func checkTLSMaterial(cfg config.SocketSink) []CheckResult {
	if cfg.KeyPath == "" && cfg.CertPath == "" {
		return nil
	}

	var results []CheckResult
	for _, item := range []struct {
		name string
		path string
	}{
		{"TLS Key", cfg.KeyPath},
		{"TLS Certificate", cfg.CertPath},
	} {
		if item.path == "" {
			results = append(results, CheckResult{item.name, false, "not set while its counterpart is"})
			continue
		}
		if _, err := os.Stat(item.path); err != nil {
			results = append(results, CheckResult{item.name, false, fmt.Sprintf("%s: %v", item.path, err)})
		} else {
			results = append(results, CheckResult{item.name, true, item.path})
		}
	}
	return results
}
