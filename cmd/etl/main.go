// Command etl builds the Sparkify song-play lake in one batch run: it reads
// the song catalog and the activity log, derives the songs, artist, users,
// time and songplays tables, and overwrites them under the output root.
//
// Configuration comes from a YAML file (flag -config or $ETL_CONFIG, default
// dl.yml) with environment overrides; see package config.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sparkify/internal/config"
	"sparkify/internal/logging"

	// register all backends with the storage factory.
	// config picks the warehouse kind but support for each is built in.
	_ "sparkify/internal/storage/all"
)

func main() {
	var (
		cfgPath  string
		validate bool
		verbose  bool
	)
	flag.StringVar(&cfgPath, "config", config.PathFromEnv(), "job config YAML path (env "+config.PathEnv+")")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&verbose, "v", false, "enable debug logs")
	flag.Parse()

	cfg, err := loadConfig(cfgPath, os.Stderr)
	if err != nil {
		fatalf("%v", err)
	}
	if validate {
		fmt.Fprintf(os.Stderr, "configuration is valid: %s\n", cfgPath)
		os.Exit(0)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fatalf("%v", err)
	}
	defer func() { _ = log.Sync() }()

	flush := setupMetrics(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	stats, err := run(ctx, cfg, log)
	flush()

	fields := []zap.Field{
		zap.Int64("files", stats.Files),
		zap.Int64("unreadable", stats.Unreadable),
		zap.Int64("records", stats.Records),
		zap.Int64("parse_errors", stats.ParseErrors),
		zap.Int64("tables", stats.Tables),
		zap.Int64("rows_written", stats.RowsWritten),
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)),
	}
	if err != nil {
		log.Error("etl: run failed", append(fields, zap.Error(err))...)
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("etl: run complete", fields...)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
