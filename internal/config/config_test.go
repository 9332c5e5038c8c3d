package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwetl/internal/manifest"
	"dwetl/internal/runlog"
	"dwetl/internal/store"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("DWETL_STORE", "")
	t.Setenv("MONGODB_DB", "")
	cfg := FromEnv()
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "datawarehouse", cfg.MongoDB)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, SinkFile, cfg.RunLogSink)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DWETL_HTTP_ADDR=:9999\nDWETL_STORE=PEBBLE\n"), 0o644))
	t.Setenv("DWETL_HTTP_ADDR", ":7000")
	t.Setenv("DWETL_STORE", "")
	os.Unsetenv("DWETL_STORE")

	cfg := Load(path)
	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, StorePebble, cfg.Store)
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("debug", "text")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)

	_, err = NewLogger("loud", "json")
	assert.Error(t, err)
	_, err = NewLogger("info", "xml")
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	s, err := OpenStore(ctx, Config{Store: StoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, s)

	s, err = OpenStore(ctx, Config{Store: StorePebble, PebbleDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &store.PebbleStore{}, s)
	require.NoError(t, s.Close())

	_, err = OpenStore(ctx, Config{Store: "redis"})
	assert.Error(t, err)
}

func TestRunLog(t *testing.T) {
	dir := t.TempDir()
	w, closer, err := RunLog(Config{RunLogSink: SinkFile, RunLogDir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(runlog.Event{RunID: "etl-1"}))
	require.NoError(t, closer())
	evs, err := runlog.ReadFile(filepath.Join(dir, RunLogFile), 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)

	w, _, err = RunLog(Config{RunLogSink: SinkNone})
	require.NoError(t, err)
	assert.IsType(t, runlog.Nop{}, w)

	_, _, err = RunLog(Config{RunLogSink: SinkKafka})
	assert.Error(t, err)

	w, closer, err = RunLog(Config{RunLogSink: SinkBoth, RunLogDir: dir, KafkaBootstrap: "localhost:9092", RunLogTopic: "runs"})
	require.NoError(t, err)
	assert.IsType(t, &runlog.MultiWriter{}, w)
	require.NoError(t, closer())
}

func TestManifest(t *testing.T) {
	pub, rd, err := Manifest(Config{ManifestSink: SinkFile, SnapshotDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, pub.PublishLatest("snap-1", map[string]int64{"products": 1}))
	m, err := rd.ReadLatest()
	require.NoError(t, err)
	assert.Equal(t, "snap-1", m.SnapshotID)

	_, _, err = Manifest(Config{ManifestSink: SinkKafka})
	assert.Error(t, err)

	pub, rd, err = Manifest(Config{ManifestSink: SinkBoth, SnapshotDir: t.TempDir(), KafkaBootstrap: "localhost:9092", ManifestTopic: "snaps"})
	require.NoError(t, err)
	assert.IsType(t, &manifest.MultiPublisherImpl{}, pub)
	assert.IsType(t, &manifest.KafkaReader{}, rd)
}
