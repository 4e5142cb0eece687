package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/malindarathnayake/AuditFlux/internal/config"
	"github.com/malindarathnayake/AuditFlux/internal/daemon"
	"github.com/malindarathnayake/AuditFlux/internal/health"
	"github.com/malindarathnayake/AuditFlux/internal/observability"
	"github.com/malindarathnayake/AuditFlux/internal/system"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath, "path to the config file")
	logLevel := flag.String("log-level", "", "override console log level (debug, info, warn, error)")
	checkOnly := flag.Bool("check", false, "run environment preflight checks and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("auditfluxd %s\n", version)
		return 0
	}

	logger := observability.NewLogger(observability.InfoLevel)
	logger.SetBaseFields(map[string]interface{}{
		"service": "auditfluxd",
		"version": version,
	})

	// Config errors at startup are fatal; the daemon never runs with a
	// partial or stale config.
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load config", map[string]interface{}{
			"path":  *configPath,
			"error": err.Error(),
		})
		return 1
	}
	if *checkOnly {
		return runChecks(cfg)
	}

	if err := config.Validate(cfg); err != nil {
		logger.Error("Invalid config", map[string]interface{}{
			"path":  *configPath,
			"error": err.Error(),
		})
		return 1
	}

	if err := applyLogConfig(logger, cfg, *logLevel); err != nil {
		logger.Error("Failed to configure logging", map[string]interface{}{"error": err.Error()})
		return 1
	}

	metrics := observability.NewMetricsRegistry()
	auditor := observability.NewAuditor(logger).WithComponent("daemon")

	ctx, reloadCh, stop := daemon.ContextWithSignals(context.Background(), logger)
	defer stop()

	if err := startMetricsBackends(ctx, cfg, metrics, logger); err != nil {
		logger.Error("Failed to start metrics backends", map[string]interface{}{"error": err.Error()})
		return 1
	}

	engine, err := daemon.NewEngine(daemon.EngineOptions{
		ConfigPath: *configPath,
		Input:      os.Stdin,
		Logger:     logger,
		Auditor:    auditor,
		Metrics:    metrics,
		ReloadCh:   reloadCh,
	})
	if err != nil {
		logger.Error("Failed to initialize engine", map[string]interface{}{"error": err.Error()})
		return 1
	}

	logger.Info("auditfluxd starting", map[string]interface{}{
		"config": *configPath,
	})

	if err := engine.Run(ctx); err != nil {
		logger.Error("Engine terminated with error", map[string]interface{}{"error": err.Error()})
		return 1
	}

	logger.Info("auditfluxd stopped", nil)
	return 0
}

// runChecks prints preflight results and reports failure through the
// exit code.
func runChecks(cfg *config.Config) int {
	doctor := system.NewDoctor(&health.DialChecker{Dialer: health.NetDialer{}})
	failed := false
	for _, result := range doctor.RunChecks(cfg) {
		status := "PASS"
		if !result.Passed {
			status = "FAIL"
			failed = true
		}
		fmt.Printf("[%s] %-18s %s\n", status, result.Name, result.Message)
	}
	if failed {
		return 1
	}
	return 0
}

// applyLogConfig applies the observability.logging section plus the
// command line level override.
func applyLogConfig(logger *observability.Logger, cfg *config.Config, override string) error {
	level := cfg.Observability.Logging.Console.Level
	if override != "" {
		level = override
	}
	if level != "" {
		parsed, err := observability.ParseLogLevel(level)
		if err != nil {
			return err
		}
		logger.SetLevel(parsed)
	}

	gelfCfg := cfg.Observability.Logging.GELF
	if gelfCfg.Enabled {
		if err := logger.InitGELF(gelfCfg.Host, gelfCfg.Port, gelfCfg.Protocol, gelfCfg.Facility); err != nil {
			return fmt.Errorf("gelf init: %w", err)
		}
	}
	return nil
}

func startMetricsBackends(ctx context.Context, cfg *config.Config, metrics *observability.MetricsRegistry, logger *observability.Logger) error {
	promCfg := cfg.Observability.Metrics.Prometheus
	if promCfg.Enabled {
		server, err := observability.NewPrometheusServer(observability.PrometheusConfig{
			Port: promCfg.Port,
			Path: promCfg.Path,
			Bind: promCfg.Bind,
		}, metrics, logger)
		if err != nil {
			return fmt.Errorf("prometheus server: %w", err)
		}
		go func() {
			if err := server.Start(ctx); err != nil {
				logger.Warn("Prometheus server terminated", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()
	}

	influxCfg := cfg.Observability.Metrics.InfluxDB
	if influxCfg.Enabled {
		pusher, err := observability.NewInfluxPusher(observability.InfluxPusherConfig{
			URL:      influxCfg.URL,
			Token:    influxCfg.Token,
			Org:      influxCfg.Org,
			Bucket:   influxCfg.Bucket,
			Interval: time.Duration(influxCfg.PushIntervalSeconds) * time.Second,
		}, metrics, logger)
		if err != nil {
			return fmt.Errorf("influx pusher: %w", err)
		}
		go pusher.Start(ctx)
	}
	return nil
}
