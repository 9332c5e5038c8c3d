package config

import (
	"context"
	"fmt"
	"time"

	"dwetl/internal/manifest"
	"dwetl/internal/runlog"
	"dwetl/internal/store"
)

// RunLogFile is the file name of the JSONL run log under RunLogDir.
const RunLogFile = "runs.jsonl"

// OpenStore opens the configured backend. The caller closes it.
func OpenStore(ctx context.Context, cfg Config) (store.Store, error) {
	switch cfg.Store {
	case StoreMemory, "":
		return store.NewMemoryStore(), nil
	case StorePebble:
		s, err := store.NewPebbleStore(cfg.PebbleDir)
		if err != nil {
			return nil, fmt.Errorf("open pebble: %w", err)
		}
		return s, nil
	case StoreMongo:
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		c, err := store.ConnectMongo(cctx, cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		return store.NewMongoStore(c, cfg.MongoDB), nil
	}
	return nil, fmt.Errorf("unknown store %q: want memory|pebble|mongo", cfg.Store)
}

// RunLog builds the run-event writer for RunLogSink. The returned closer
// releases Kafka connections and is never nil.
func RunLog(cfg Config) (runlog.Writer, func() error, error) {
	noop := func() error { return nil }
	var (
		file *runlog.FileWriter
		kw   *runlog.KafkaWriter
	)
	switch cfg.RunLogSink {
	case SinkNone:
		return runlog.Nop{}, noop, nil
	case SinkFile, SinkBoth, "":
		fw, err := runlog.NewFileWriter(cfg.RunLogDir, RunLogFile)
		if err != nil {
			return nil, noop, fmt.Errorf("init run log file: %w", err)
		}
		file = fw
	case SinkKafka:
	default:
		return nil, noop, fmt.Errorf("unknown run log sink %q", cfg.RunLogSink)
	}
	if cfg.RunLogSink == SinkKafka || cfg.RunLogSink == SinkBoth {
		if cfg.KafkaBootstrap == "" {
			return nil, noop, fmt.Errorf("run log sink %s needs a kafka bootstrap", cfg.RunLogSink)
		}
		kw = runlog.NewKafkaWriter(cfg.KafkaBootstrap, cfg.RunLogTopic)
	}
	switch {
	case file != nil && kw != nil:
		return runlog.NewMultiWriter(file, kw), kw.Close, nil
	case kw != nil:
		return kw, kw.Close, nil
	}
	return file, noop, nil
}

// Manifest builds the publisher and reader for ManifestSink. With both
// sinks the reader is Kafka's.
func Manifest(cfg Config) (manifest.Publisher, manifest.Reader, error) {
	fs := manifest.NewFilesystemManifest(cfg.SnapshotDir)
	switch cfg.ManifestSink {
	case SinkFile, "":
		return fs, fs, nil
	case SinkKafka, SinkBoth:
		if cfg.KafkaBootstrap == "" {
			return nil, nil, fmt.Errorf("manifest sink %s needs a kafka bootstrap", cfg.ManifestSink)
		}
		pub := manifest.NewKafkaManifest(cfg.KafkaBootstrap, cfg.ManifestTopic, manifest.DefaultKey)
		rd := manifest.NewKafkaReader(cfg.KafkaBootstrap, cfg.ManifestTopic, manifest.DefaultKey)
		if cfg.ManifestSink == SinkBoth {
			return manifest.MultiPublisher(fs, pub), rd, nil
		}
		return pub, rd, nil
	}
	return nil, nil, fmt.Errorf("unknown manifest sink %q", cfg.ManifestSink)
}
