// Package schedule runs ETL requests on cron schedules read from a YAML
// jobs file.
package schedule

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"dwetl/internal/mapping"
	"dwetl/internal/runner"
)

// Parser accepts five- or six-field expressions (seconds optional) and
// descriptors such as @hourly or @every 1h.
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Job is one scheduled run.
type Job struct {
	Name     string         `yaml:"name"`
	Schedule string         `yaml:"schedule"`
	Request  runner.Request `yaml:"request"`
}

type jobsFile struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadFile reads and validates a jobs file.
func LoadFile(path string) ([]Job, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates a jobs document. Unknown keys are rejected.
func Parse(b []byte) ([]Job, error) {
	var f jobsFile
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}
	if err := Validate(f.Jobs); err != nil {
		return nil, err
	}
	return f.Jobs, nil
}

// Validate checks every job and joins all problems found.
func Validate(jobs []Job) error {
	var errs []error
	seen := map[string]bool{}
	for i, j := range jobs {
		name := strings.TrimSpace(j.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("job %d: name is empty", i))
		case seen[name]:
			errs = append(errs, fmt.Errorf("job %d: duplicate name %q", i, name))
		}
		seen[name] = true
		if _, err := Parser.Parse(j.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("job %q: schedule %q: %w", name, j.Schedule, err))
		}
		if j.Request.SourceType == "" {
			errs = append(errs, fmt.Errorf("job %q: request.sourceType is empty", name))
		}
		if strings.TrimSpace(j.Request.SourcePath) == "" {
			errs = append(errs, fmt.Errorf("job %q: request.sourcePath is empty", name))
		}
		if strings.TrimSpace(j.Request.TargetCollection) == "" {
			errs = append(errs, fmt.Errorf("job %q: request.targetCollection is empty", name))
		}
		if err := mapping.Validate(j.Request.Mappings); err != nil {
			errs = append(errs, fmt.Errorf("job %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Runner executes one request.
type Runner interface {
	Run(ctx context.Context, req runner.Request) runner.Response
}

type Scheduler struct {
	cron *cron.Cron
	run  Runner
	log  logrus.FieldLogger
	ctx  context.Context
}

// New builds a scheduler whose runs use ctx. A run still in progress when
// its next tick fires is skipped; a panicking run is recovered.
func New(ctx context.Context, run Runner, log logrus.FieldLogger) *Scheduler {
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(Parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		run: run,
		log: log,
		ctx: ctx,
	}
}

// Add registers jobs. Nothing is registered if any schedule is invalid.
func (s *Scheduler) Add(jobs ...Job) error {
	if err := Validate(jobs); err != nil {
		return err
	}
	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.Schedule, s.task(j)); err != nil {
			return fmt.Errorf("schedule %q: %w", j.Name, err)
		}
		s.log.WithFields(logrus.Fields{"job": j.Name, "schedule": j.Schedule}).Info("job scheduled")
	}
	return nil
}

// task returns the function cron calls on every tick of j. Each tick is a
// new run with a fresh id.
func (s *Scheduler) task(j Job) func() {
	return func() {
		if s.ctx.Err() != nil {
			return
		}
		req := j.Request
		req.ID = ""
		if req.Name == "" {
			req.Name = j.Name
		}
		resp := s.run.Run(s.ctx, req)
		s.log.WithFields(logrus.Fields{"job": j.Name, "run_id": resp.ID, "status": resp.Status}).Info("scheduled run finished")
	}
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and returns a context done when running jobs finish.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

type cronLogger struct {
	log logrus.FieldLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.WithError(err).WithFields(fields(keysAndValues)).Error("cron: " + msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
