// Package pipeline runs one ETL process: extract, transform, optional
// mapping, load. It owns the process state machine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dwetl/internal/extract"
	"dwetl/internal/load"
	"dwetl/internal/mapping"
	"dwetl/internal/model"
)

// ErrUnknownSourceType is returned for a process whose source type has no
// route.
var ErrUnknownSourceType = errors.New("unknown source type")

var errOutsideRoot = errors.New("path escapes the source root")

// UnknownTargetError reports a target collection the loader has no key
// definition for.
type UnknownTargetError struct {
	Target string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown target collection %q", e.Target)
}

func (e *UnknownTargetError) Unwrap() error { return load.ErrUnknownTarget }

// Orchestrator executes processes against a loader. Source paths resolve
// under sourceRoot.
type Orchestrator struct {
	loader     *load.Loader
	sourceRoot string
	log        logrus.FieldLogger
	now        func() time.Time
}

func New(loader *load.Loader, sourceRoot string, log logrus.FieldLogger) *Orchestrator {
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	return &Orchestrator{loader: loader, sourceRoot: sourceRoot, log: log, now: time.Now}
}

// Execute runs p to completion and returns its result. p moves from
// pending to running to completed or failed; timestamps, record count and
// error are written back to p.
func (o *Orchestrator) Execute(ctx context.Context, p *model.ETLProcess) model.ETLResult {
	start := o.now().UTC()
	p.Status = model.StatusRunning
	p.StartedAt = &start
	p.CompletedAt = nil
	p.Error = ""

	res, err := o.execute(ctx, p)
	if err != nil {
		res = model.FailedResult(err)
	}
	done := o.now().UTC()
	res.Duration = done.Sub(start).Milliseconds()

	p.CompletedAt = &done
	p.RecordsProcessed = res.RecordsProcessed
	if res.Success {
		p.Status = model.StatusCompleted
	} else {
		p.Status = model.StatusFailed
		p.Error = strings.Join(res.Errors, "; ")
	}
	return res
}

func (o *Orchestrator) execute(ctx context.Context, p *model.ETLProcess) (model.ETLResult, error) {
	if _, err := o.loader.Targets().Keys(p.TargetCollection); err != nil {
		return model.ETLResult{}, &UnknownTargetError{Target: p.TargetCollection}
	}
	r, ok := routes[p.SourceType]
	if !ok {
		return model.ETLResult{}, fmt.Errorf("%w: %q", ErrUnknownSourceType, p.SourceType)
	}
	if len(p.Mappings) > 0 {
		if err := mapping.Validate(p.Mappings); err != nil {
			return model.ETLResult{}, fmt.Errorf("invalid mappings: %w", err)
		}
	}
	path, err := o.resolve(p.SourcePath)
	if err != nil {
		return model.ETLResult{}, &extract.ExtractionError{Format: r.format(), Path: p.SourcePath, Err: err}
	}

	log := o.log.WithFields(logrus.Fields{
		"run_id":      p.ID,
		"source_type": p.SourceType,
		"target":      p.TargetCollection,
	})
	recs, err := r.run(path, p.Name, p.Mappings)
	if err != nil {
		return model.ETLResult{}, err
	}
	log.WithField("records", len(recs)).Debug("source transformed")

	if err := ctx.Err(); err != nil {
		return model.ETLResult{}, fmt.Errorf("run cancelled before load: %w", err)
	}
	res, err := o.loader.Load(ctx, p.TargetCollection, recs)
	if err != nil {
		return model.ETLResult{}, err
	}
	log.WithFields(logrus.Fields{
		"inserted": res.RecordsInserted,
		"updated":  res.RecordsUpdated,
		"errors":   len(res.Errors),
	}).Debug("records loaded")
	return res, nil
}

// resolve joins path under the source root and rejects results outside it.
// Without a root, path is used as given.
func (o *Orchestrator) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("source path is empty")
	}
	if o.sourceRoot == "" {
		return path, nil
	}
	root := filepath.Clean(o.sourceRoot)
	full := filepath.Join(root, path)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideRoot
	}
	return full, nil
}
