package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dwetl/internal/model"
)

type Registry struct {
	reg *prometheus.Registry

	Runs            *prometheus.CounterVec   // source_type, status
	RunDurationSec  *prometheus.HistogramVec // source_type
	RecordsInserted *prometheus.CounterVec   // collection
	RecordsUpdated  *prometheus.CounterVec   // collection
	RecordErrors    *prometheus.CounterVec   // collection

	RunLogAppended prometheus.Counter
	RunLogFailed   prometheus.Counter

	CollectionDocs   *prometheus.GaugeVec // collection
	SnapshotsWritten prometheus.Counter
	RestoreApplied   prometheus.Counter
	RestoreUnchanged prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "dwetl_runs_total"}, []string{"source_type", "status"})
	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dwetl_run_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"source_type"})
	inserted := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "dwetl_records_inserted_total"}, []string{"collection"})
	updated := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "dwetl_records_updated_total"}, []string{"collection"})
	recErrors := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "dwetl_record_errors_total"}, []string{"collection"})

	runlogAppended := prometheus.NewCounter(prometheus.CounterOpts{Name: "dwetl_runlog_appended_total"})
	runlogFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "dwetl_runlog_failed_total"})

	docs := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "dwetl_collection_documents"}, []string{"collection"})
	snapshots := prometheus.NewCounter(prometheus.CounterOpts{Name: "dwetl_snapshots_written_total"})
	restoreApplied := prometheus.NewCounter(prometheus.CounterOpts{Name: "dwetl_restore_applied_total"})
	restoreUnchanged := prometheus.NewCounter(prometheus.CounterOpts{Name: "dwetl_restore_unchanged_total"})

	r.MustRegister(runs, runDuration, inserted, updated, recErrors, runlogAppended, runlogFailed,
		docs, snapshots, restoreApplied, restoreUnchanged)
	return &Registry{
		reg:              r,
		Runs:             runs,
		RunDurationSec:   runDuration,
		RecordsInserted:  inserted,
		RecordsUpdated:   updated,
		RecordErrors:     recErrors,
		RunLogAppended:   runlogAppended,
		RunLogFailed:     runlogFailed,
		CollectionDocs:   docs,
		SnapshotsWritten: snapshots,
		RestoreApplied:   restoreApplied,
		RestoreUnchanged: restoreUnchanged,
	}
}

// ObserveRun records the outcome of one finished run.
func (r *Registry) ObserveRun(p model.ETLProcess, res model.ETLResult) {
	st := string(p.SourceType)
	r.Runs.WithLabelValues(st, string(p.Status)).Inc()
	r.RunDurationSec.WithLabelValues(st).Observe(float64(res.Duration) / 1000)
	r.RecordsInserted.WithLabelValues(p.TargetCollection).Add(float64(res.RecordsInserted))
	r.RecordsUpdated.WithLabelValues(p.TargetCollection).Add(float64(res.RecordsUpdated))
	r.RecordErrors.WithLabelValues(p.TargetCollection).Add(float64(len(res.Errors)))
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
