package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dwetl/internal/admin"
	"dwetl/internal/config"
	"dwetl/internal/load"
	"dwetl/internal/metrics"
	"dwetl/internal/model"
	"dwetl/internal/pipeline"
	"dwetl/internal/runner"
)

// Config holds CLI flags for a one-shot run.
type Config struct {
	config.Config
	ID           string
	Name         string
	SourceType   string
	SourcePath   string
	Target       string
	MappingsFile string
	Init         bool
}

func main() {
	cfg := readFlags()
	ok, err := run(cfg)
	if err != nil {
		log.Fatalf("etlrun failed: %v", err)
	}
	if !ok {
		os.Exit(1)
	}
}

func readFlags() Config {
	cfg := Config{Config: config.Load()}
	flag.StringVar(&cfg.ID, "id", "", "run id (default etl-<uuid>)")
	flag.StringVar(&cfg.Name, "name", "", "run name")
	flag.StringVar(&cfg.SourceType, "source-type", "", "tabular|structured-object|hierarchical-markup|free-text|metadata-object (or csv|json|xml|txt|metadata)")
	flag.StringVar(&cfg.SourcePath, "source", "", "source path under the source root")
	flag.StringVar(&cfg.Target, "target", "", "target collection")
	flag.StringVar(&cfg.MappingsFile, "mappings", "", "json file holding a list of data mappings")
	flag.BoolVar(&cfg.Init, "init", false, "create indexes before the run")
	flag.StringVar(&cfg.SourceRoot, "source-root", cfg.SourceRoot, "directory source paths resolve under")
	flag.StringVar(&cfg.Store, "store", cfg.Store, "store backend: memory|pebble|mongo")
	flag.StringVar(&cfg.PebbleDir, "pebble-dir", cfg.PebbleDir, "pebble data directory")
	flag.StringVar(&cfg.MongoURI, "mongo-uri", cfg.MongoURI, "mongodb connection uri")
	flag.StringVar(&cfg.MongoDB, "mongo-db", cfg.MongoDB, "mongodb database")
	flag.StringVar(&cfg.RunLogSink, "runlog-sink", cfg.RunLogSink, "run log sink: file|kafka|both|none")
	flag.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", cfg.KafkaBootstrap, "kafka bootstrap servers")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flag.StringVar(&cfg.LogFormat, "log-format", "text", "log format: json|text")
	flag.Parse()
	return cfg
}

func run(cfg Config) (bool, error) {
	st, err := model.ParseSourceType(cfg.SourceType)
	if err != nil {
		return false, err
	}
	req := runner.Request{
		ID: cfg.ID, Name: cfg.Name, SourceType: st,
		SourcePath: cfg.SourcePath, TargetCollection: cfg.Target,
	}
	if cfg.MappingsFile != "" {
		b, err := os.ReadFile(cfg.MappingsFile)
		if err != nil {
			return false, fmt.Errorf("read mappings: %w", err)
		}
		if err := json.Unmarshal(b, &req.Mappings); err != nil {
			return false, fmt.Errorf("decode mappings: %w", err)
		}
	}

	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return false, err
	}
	logger.SetOutput(os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := config.OpenStore(ctx, cfg.Config)
	if err != nil {
		return false, err
	}
	defer store.Close()
	if cfg.Init {
		if _, err := admin.New(store, logger).Init(ctx); err != nil {
			return false, err
		}
	}
	events, closeEvents, err := config.RunLog(cfg.Config)
	if err != nil {
		return false, err
	}
	defer closeEvents()

	orch := pipeline.New(load.New(store, nil, logger), cfg.SourceRoot, logger)
	resp := runner.New(orch, metrics.NewRegistry(), events, logger).Run(ctx, req)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return false, fmt.Errorf("encode response: %w", err)
	}
	return resp.Result.Success, nil
}
