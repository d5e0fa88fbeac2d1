package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"sparkify/internal/config"
	"sparkify/internal/engine"
	"sparkify/internal/etl"
	"sparkify/internal/metrics"
	"sparkify/internal/metrics/datadog"
	"sparkify/internal/metrics/prompush"
)

// loadConfig reads and validates the configuration at path. Every finding is
// printed to w; any error-severity finding fails the load.
func loadConfig(path string, w io.Writer) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return nil, fmt.Errorf("configuration is invalid: %s", path)
	}
	return cfg, nil
}

// setupMetrics installs the configured metrics backend and returns the flush
// to call once the run is over. A backend that fails to start leaves metrics
// disabled.
func setupMetrics(cfg *config.Config, log *zap.Logger) (flush func()) {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.Metrics.Backend {
	case "pushgateway":
		b, err = prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.DatadogAddr,
			Namespace:  "sparkify.",
			GlobalTags: []string{"job:" + cfg.Job},
		})
	default:
		log.Debug("metrics: disabled", zap.String("backend", cfg.Metrics.Backend))
		return func() {}
	}
	if err != nil {
		log.Warn("metrics: backend init failed; using nop",
			zap.String("backend", cfg.Metrics.Backend), zap.Error(err))
		return func() {}
	}

	log.Info("metrics: enabled", zap.String("backend", cfg.Metrics.Backend))
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics: flush error", zap.Error(err))
		}
	}
}

// run opens a session, runs the pipeline and closes the session. The stats
// are returned even when the run fails.
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) (engine.Stats, error) {
	sess, err := engine.Open(ctx, cfg, log, engine.Options{})
	if err != nil {
		return engine.Stats{}, err
	}
	runErr := etl.Run(ctx, sess)
	closeErr := sess.Close()
	return sess.Stats(), errors.Join(runErr, closeErr)
}
