// Package runner is the run-trigger contract shared by the HTTP API, the
// scheduler, the Kafka worker and the one-shot CLI.
package runner

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dwetl/internal/metrics"
	"dwetl/internal/model"
	"dwetl/internal/pipeline"
	"dwetl/internal/runlog"
)

// NewID returns the id given to requests that carry none.
var NewID = func() string { return "etl-" + uuid.NewString() }

// Request asks for one run. ID and Mappings are optional.
type Request struct {
	ID               string              `json:"id,omitempty" yaml:"id,omitempty"`
	Name             string              `json:"name" yaml:"name"`
	SourceType       model.SourceType    `json:"sourceType" yaml:"sourceType"`
	SourcePath       string              `json:"sourcePath" yaml:"sourcePath"`
	TargetCollection string              `json:"targetCollection" yaml:"targetCollection"`
	Mappings         []model.DataMapping `json:"mappings,omitempty" yaml:"mappings,omitempty"`
}

// Response is the finished process followed by its result.
type Response struct {
	model.ETLProcess
	Result model.ETLResult `json:"result"`
}

type Runner struct {
	orch    *pipeline.Orchestrator
	metrics *metrics.Registry
	events  runlog.Writer
	log     logrus.FieldLogger
}

// New builds a runner. reg and events may be nil.
func New(orch *pipeline.Orchestrator, reg *metrics.Registry, events runlog.Writer, log logrus.FieldLogger) *Runner {
	if events == nil {
		events = runlog.Nop{}
	}
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	return &Runner{orch: orch, metrics: reg, events: events, log: log}
}

// Run executes req to completion. Failures are reported in the response,
// never as a Go error.
func (r *Runner) Run(ctx context.Context, req Request) Response {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = NewID()
	}
	p := model.ETLProcess{
		ID:               id,
		Name:             req.Name,
		SourceType:       req.SourceType,
		SourcePath:       req.SourcePath,
		TargetCollection: req.TargetCollection,
		Mappings:         req.Mappings,
		Status:           model.StatusPending,
	}
	res := r.orch.Execute(ctx, &p)

	if r.metrics != nil {
		r.metrics.ObserveRun(p, res)
	}
	if err := r.events.Append(runlog.NewEvent(p, res)); err != nil {
		r.log.WithError(err).WithField("run_id", p.ID).Warn("run log append failed")
		if r.metrics != nil {
			r.metrics.RunLogFailed.Inc()
		}
	} else if r.metrics != nil {
		r.metrics.RunLogAppended.Inc()
	}

	entry := r.log.WithFields(logrus.Fields{
		"run_id":      p.ID,
		"source_type": p.SourceType,
		"target":      p.TargetCollection,
		"status":      p.Status,
		"processed":   res.RecordsProcessed,
		"inserted":    res.RecordsInserted,
		"updated":     res.RecordsUpdated,
		"errors":      len(res.Errors),
		"duration_ms": res.Duration,
	})
	if res.Success {
		entry.Info("etl run finished")
	} else {
		entry.WithField("error", p.Error).Error("etl run failed")
	}
	return Response{ETLProcess: p, Result: res}
}
