package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"dwetl/internal/config"
	"dwetl/internal/metrics"
	"dwetl/internal/restore"
)

// Config holds CLI flags for restore.
type Config struct {
	config.Config
	SnapshotID  string
	Replace     bool
	Collections string
	MetricsAddr string
	PollSec     int
}

func main() {
	cfg := readFlags()
	if err := run(cfg); err != nil {
		log.Fatalf("etlrestore failed: %v", err)
	}
}

func readFlags() Config {
	cfg := Config{Config: config.Load()}
	flag.StringVar(&cfg.SnapshotID, "snapshot-id", "", "snapshot to restore (default: latest from the manifest)")
	flag.BoolVar(&cfg.Replace, "replace", false, "empty each restored collection first")
	flag.StringVar(&cfg.Collections, "collections", "", "comma-separated collections to restore (default all)")
	flag.StringVar(&cfg.MetricsAddr, "http", "", "http listen for /metrics (disabled when empty)")
	flag.IntVar(&cfg.PollSec, "poll", 0, "restore the latest snapshot every n seconds (0 runs once)")
	flag.StringVar(&cfg.SnapshotDir, "snapshot-dir", cfg.SnapshotDir, "snapshot directory")
	flag.StringVar(&cfg.ManifestSink, "manifest-source", cfg.ManifestSink, "manifest source: file|kafka")
	flag.StringVar(&cfg.ManifestTopic, "topic-snapshots", cfg.ManifestTopic, "manifest topic")
	flag.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", cfg.KafkaBootstrap, "kafka bootstrap servers")
	flag.StringVar(&cfg.Store, "store", cfg.Store, "store backend: memory|pebble|mongo")
	flag.StringVar(&cfg.PebbleDir, "pebble-dir", cfg.PebbleDir, "pebble data directory")
	flag.StringVar(&cfg.MongoURI, "mongo-uri", cfg.MongoURI, "mongodb connection uri")
	flag.StringVar(&cfg.MongoDB, "mongo-db", cfg.MongoDB, "mongodb database")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: json|text")
	flag.Parse()
	return cfg
}

func run(cfg Config) error {
	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := config.OpenStore(ctx, cfg.Config)
	if err != nil {
		return err
	}
	defer st.Close()
	_, reader, err := config.Manifest(cfg.Config)
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	if cfg.MetricsAddr != "" {
		go func() {
			http.Handle("/metrics", reg.Handler())
			_ = http.ListenAndServe(cfg.MetricsAddr, nil)
		}()
	}

	opts := restore.Options{Replace: cfg.Replace}
	for _, c := range strings.Split(cfg.Collections, ",") {
		if c = strings.TrimSpace(c); c != "" {
			opts.Collections = append(opts.Collections, c)
		}
	}
	r := restore.NewRestorer(st, reader, cfg.SnapshotDir, logger)

	once := func() error {
		t0 := time.Now()
		var (
			res restore.RestoreResult
			err error
		)
		if cfg.SnapshotID != "" {
			res, err = r.RestoreFromSnapshot(ctx, cfg.SnapshotID, opts)
		} else {
			res, err = r.RestoreLatest(ctx, opts)
		}
		if err != nil {
			return err
		}
		reg.RestoreApplied.Add(float64(res.Applied))
		reg.RestoreUnchanged.Add(float64(res.Unchanged))
		logger.WithFields(logrus.Fields{
			"snapshot":  res.SnapshotID,
			"applied":   res.Applied,
			"unchanged": res.Unchanged,
			"ttr_ms":    time.Since(t0).Milliseconds(),
		}).Info("restore completed")
		return nil
	}

	if cfg.PollSec <= 0 {
		return once()
	}
	ticker := time.NewTicker(time.Duration(cfg.PollSec) * time.Second)
	defer ticker.Stop()
	for {
		if err := once(); err != nil {
			logger.WithError(err).Warn("restore cycle failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
