// Package config loads settings from the environment (and a .env file when
// present) and builds the shared components every binary needs.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Sink modes for the run log and the manifest.
const (
	SinkFile  = "file"
	SinkKafka = "kafka"
	SinkBoth  = "both"
	SinkNone  = "none"
)

// Store backends.
const (
	StoreMemory = "memory"
	StorePebble = "pebble"
	StoreMongo  = "mongo"
)

type Config struct {
	SourceRoot string

	Store     string // memory|pebble|mongo
	PebbleDir string
	MongoURI  string
	MongoDB   string

	HTTPAddr  string
	LogLevel  string
	LogFormat string // json|text

	KafkaBootstrap string
	RunLogSink     string // file|kafka|both|none
	RunLogDir      string
	RunLogTopic    string

	SnapshotDir   string
	ManifestSink  string // file|kafka|both
	ManifestTopic string

	JobsFile string
	RunTopic string
	GroupID  string
}

// Load reads .env (if any) into the process environment and returns the
// resulting configuration. Variables already set win over .env.
func Load(files ...string) Config {
	_ = godotenv.Load(files...)
	return FromEnv()
}

// FromEnv returns the configuration from the current environment.
func FromEnv() Config {
	return Config{
		SourceRoot:     env("DWETL_SOURCE_ROOT", "data/sources"),
		Store:          strings.ToLower(env("DWETL_STORE", StoreMemory)),
		PebbleDir:      env("DWETL_PEBBLE_DIR", "data/pebble"),
		MongoURI:       env("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:        env("MONGODB_DB", "datawarehouse"),
		HTTPAddr:       env("DWETL_HTTP_ADDR", ":8080"),
		LogLevel:       env("DWETL_LOG_LEVEL", "info"),
		LogFormat:      env("DWETL_LOG_FORMAT", "json"),
		KafkaBootstrap: env("DWETL_KAFKA_BOOTSTRAP", ""),
		RunLogSink:     strings.ToLower(env("DWETL_RUNLOG_SINK", SinkFile)),
		RunLogDir:      env("DWETL_RUNLOG_DIR", "./runlog"),
		RunLogTopic:    env("DWETL_RUNLOG_TOPIC", "dwetl.runs"),
		SnapshotDir:    env("DWETL_SNAPSHOT_DIR", "./snapshots"),
		ManifestSink:   strings.ToLower(env("DWETL_MANIFEST_SINK", SinkFile)),
		ManifestTopic:  env("DWETL_MANIFEST_TOPIC", "dwetl.snapshots"),
		JobsFile:       env("DWETL_JOBS_FILE", ""),
		RunTopic:       env("DWETL_RUN_TOPIC", "dwetl.run-requests"),
		GroupID:        env("DWETL_GROUP_ID", "dwetl-worker"),
	}
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}
