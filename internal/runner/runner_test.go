package runner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwetl/internal/load"
	"dwetl/internal/metrics"
	"dwetl/internal/model"
	"dwetl/internal/pipeline"
	"dwetl/internal/runlog"
	"dwetl/internal/store"
)

type captureWriter struct {
	events []runlog.Event
	err    error
}

func (c *captureWriter) Append(e runlog.Event) error {
	c.events = append(c.events, e)
	return c.err
}

func newRunner(t *testing.T, w runlog.Writer) (*Runner, *metrics.Registry, *logtest.Hook) {
	t.Helper()
	root := t.TempDir()
	csv := "id,product_name,category,price,quantity,created_at\n1,Widget,Tools,9.99,5,2024-01-01\n2,Gadget,Tools,5,1,2024-01-02\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "products.csv"), []byte(csv), 0o644))
	log, hook := logtest.NewNullLogger()
	reg := metrics.NewRegistry()
	orch := pipeline.New(load.New(store.NewMemoryStore(), nil, nil), root, nil)
	return New(orch, reg, w, log), reg, hook
}

func TestRun_AssignsIDAndRecords(t *testing.T) {
	w := &captureWriter{}
	r, reg, hook := newRunner(t, w)
	resp := r.Run(context.Background(), Request{
		Name: "Importar Productos", SourceType: model.SourceTabular,
		SourcePath: "products.csv", TargetCollection: model.CollectionProducts,
	})

	assert.Regexp(t, `^etl-[0-9a-f-]{36}$`, resp.ID)
	assert.Equal(t, model.StatusCompleted, resp.Status)
	assert.Equal(t, 2, resp.RecordsProcessed)
	assert.Equal(t, 2, resp.Result.RecordsInserted)
	require.NotNil(t, resp.StartedAt)
	require.NotNil(t, resp.CompletedAt)

	require.Len(t, w.events, 1)
	assert.Equal(t, resp.ID, w.events[0].RunID)
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.RunLogAppended))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.Runs.WithLabelValues("tabular", "completed")))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, resp.ID, entry.Data["run_id"])
	assert.Equal(t, 2, entry.Data["inserted"])
}

func TestRun_KeepsGivenID(t *testing.T) {
	r, _, _ := newRunner(t, nil)
	resp := r.Run(context.Background(), Request{
		ID: "etl-fixed", SourceType: model.SourceTabular,
		SourcePath: "products.csv", TargetCollection: model.CollectionProducts,
	})
	assert.Equal(t, "etl-fixed", resp.ID)
}

func TestRun_InvalidMappingsFail(t *testing.T) {
	w := &captureWriter{}
	r, reg, hook := newRunner(t, w)
	resp := r.Run(context.Background(), Request{
		SourceType: model.SourceTabular, SourcePath: "products.csv",
		TargetCollection: model.CollectionProducts,
		Mappings:         []model.DataMapping{{SourceField: "", TargetField: "x", DataType: model.TypeString}},
	})
	assert.Equal(t, model.StatusFailed, resp.Status)
	assert.False(t, resp.Result.Success)
	assert.Zero(t, resp.Result.RecordsProcessed)
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.Runs.WithLabelValues("tabular", "failed")))
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	require.Len(t, w.events, 1)
	assert.Equal(t, "failed", w.events[0].Status)
}

func TestRun_RunLogFailureDoesNotFailRun(t *testing.T) {
	w := &captureWriter{err: errors.New("broker down")}
	r, reg, _ := newRunner(t, w)
	resp := r.Run(context.Background(), Request{
		SourceType: model.SourceTabular, SourcePath: "products.csv",
		TargetCollection: model.CollectionProducts,
	})
	assert.True(t, resp.Result.Success)
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.RunLogFailed))
}

func TestRequest_DecodesSourceAliases(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"name":"n","sourceType":"csv","sourcePath":"p","targetCollection":"products"}`), &req))
	assert.Equal(t, model.SourceTabular, req.SourceType)
	assert.Error(t, json.Unmarshal([]byte(`{"sourceType":"parquet"}`), &req))
}

func TestResponse_JSONShape(t *testing.T) {
	b, err := json.Marshal(Response{ETLProcess: model.ETLProcess{ID: "etl-1", Status: model.StatusCompleted}, Result: model.ETLResult{Errors: []string{}}})
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "etl-1", m["id"])
	assert.Equal(t, "completed", m["status"])
	assert.Contains(t, m, "result")
	assert.NotContains(t, m, "mappings")
}
