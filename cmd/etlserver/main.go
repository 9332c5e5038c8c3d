package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dwetl/internal/admin"
	"dwetl/internal/api"
	"dwetl/internal/config"
	"dwetl/internal/load"
	"dwetl/internal/metrics"
	"dwetl/internal/pipeline"
	"dwetl/internal/runner"
	"dwetl/internal/schedule"
	"dwetl/internal/snapshot"
)

// Config holds CLI flags for the server. Defaults come from the environment.
type Config struct {
	config.Config
	SnapshotBeforeReset bool
}

func main() {
	cfg := readFlags()
	if err := run(cfg); err != nil {
		log.Fatalf("etlserver failed: %v", err)
	}
}

func readFlags() Config {
	cfg := Config{Config: config.Load()}
	flag.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "http listen address")
	flag.StringVar(&cfg.SourceRoot, "source-root", cfg.SourceRoot, "directory source paths resolve under")
	flag.StringVar(&cfg.Store, "store", cfg.Store, "store backend: memory|pebble|mongo")
	flag.StringVar(&cfg.PebbleDir, "pebble-dir", cfg.PebbleDir, "pebble data directory")
	flag.StringVar(&cfg.MongoURI, "mongo-uri", cfg.MongoURI, "mongodb connection uri")
	flag.StringVar(&cfg.MongoDB, "mongo-db", cfg.MongoDB, "mongodb database")
	flag.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", cfg.KafkaBootstrap, "kafka bootstrap servers, e.g. localhost:9092")
	flag.StringVar(&cfg.RunLogSink, "runlog-sink", cfg.RunLogSink, "run log sink: file|kafka|both|none")
	flag.StringVar(&cfg.RunLogDir, "runlog-dir", cfg.RunLogDir, "run log directory")
	flag.StringVar(&cfg.RunLogTopic, "topic-runlog", cfg.RunLogTopic, "kafka topic for run events")
	flag.StringVar(&cfg.SnapshotDir, "snapshot-dir", cfg.SnapshotDir, "snapshot directory")
	flag.StringVar(&cfg.ManifestSink, "manifest-sink", cfg.ManifestSink, "manifest sink: file|kafka|both")
	flag.StringVar(&cfg.ManifestTopic, "topic-snapshots", cfg.ManifestTopic, "kafka topic for manifest (compacted)")
	flag.StringVar(&cfg.JobsFile, "jobs", cfg.JobsFile, "yaml jobs file for scheduled runs")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: json|text")
	flag.BoolVar(&cfg.SnapshotBeforeReset, "snapshot-before-reset", true, "snapshot collections before a reset")
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

	events, closeEvents, err := config.RunLog(cfg.Config)
	if err != nil {
		return err
	}
	defer closeEvents()

	reg := metrics.NewRegistry()
	orch := pipeline.New(load.New(st, nil, logger), cfg.SourceRoot, logger)
	rn := runner.New(orch, reg, events, logger)

	adm := admin.New(st, logger)
	adm.SetMetrics(reg)
	if cfg.SnapshotBeforeReset {
		pub, _, err := config.Manifest(cfg.Config)
		if err != nil {
			return err
		}
		adm.SetBackup(snapshot.NewFilesystemSnapshotter(cfg.SnapshotDir, nil), pub)
	}
	if _, err := adm.Init(ctx); err != nil {
		return fmt.Errorf("init indexes: %w", err)
	}

	if cfg.JobsFile != "" {
		jobs, err := schedule.LoadFile(cfg.JobsFile)
		if err != nil {
			return err
		}
		sched := schedule.New(ctx, rn, logger)
		if err := sched.Add(jobs...); err != nil {
			return err
		}
		sched.Start()
		defer func() { <-sched.Stop().Done() }()
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	a := api.New(rn, adm, st, reg, logger)
	if cfg.RunLogSink == config.SinkFile || cfg.RunLogSink == config.SinkBoth {
		a.SetRunLog(filepath.Join(cfg.RunLogDir, config.RunLogFile))
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: a.Router(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	logger.WithField("addr", cfg.HTTPAddr).WithField("store", cfg.Store).Info("etlserver listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	logger.Info("etlserver stopped")
	return nil
}
