// Package load upserts canonical records into their target collections by
// entity key and accounts inserts, updates and per-record failures.
package load

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dwetl/internal/model"
	"dwetl/internal/store"
)

// ErrUnknownTarget is returned for a collection with no key definition.
var ErrUnknownTarget = errors.New("unknown target collection")

// Targets maps a collection to the fields that identify its documents.
type Targets map[string][]string

// DefaultTargets returns the key fields of the managed collections.
func DefaultTargets() Targets {
	return Targets{
		model.CollectionProducts:     {"productId"},
		model.CollectionCustomers:    {"customerId"},
		model.CollectionOrders:       {"orderId"},
		model.CollectionSalesReports: {"reportDate", "analyst"},
		model.CollectionMetadata:     {"source"},
	}
}

// Keys returns the key fields for coll.
func (t Targets) Keys(coll string) ([]string, error) {
	keys, ok := t[coll]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, coll)
	}
	return keys, nil
}

// LoadError describes one record that could not be stored. Key is empty
// when the record carried no usable key.
type LoadError struct {
	Collection string
	Index      int
	Key        string
	Err        error
}

func (e *LoadError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("load %s record %d: %v", e.Collection, e.Index, e.Err)
	}
	return fmt.Sprintf("load %s record %d (key %s): %v", e.Collection, e.Index, e.Key, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader upserts records through a Store.
type Loader struct {
	store   store.Store
	targets Targets
	log     logrus.FieldLogger
}

func New(s store.Store, targets Targets, log logrus.FieldLogger) *Loader {
	if targets == nil {
		targets = DefaultTargets()
	}
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	return &Loader{store: s, targets: targets, log: log}
}

// Targets returns the loader's key definitions.
func (l *Loader) Targets() Targets { return l.targets }

// Load upserts every record into coll. A failing record is reported in
// Errors and the batch continues. Cancellation is checked between records;
// records already written stay written and are counted.
func (l *Loader) Load(ctx context.Context, coll string, records []model.Record) (model.ETLResult, error) {
	keys, err := l.targets.Keys(coll)
	if err != nil {
		return model.ETLResult{}, err
	}
	start := time.Now()
	res := model.ETLResult{RecordsProcessed: len(records), Errors: []string{}}
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("load %s cancelled after %d of %d records: %v", coll, i, len(records), err))
			break
		}
		doc := rec.Document()
		filter, key, err := keyFilter(doc, keys)
		if err != nil {
			l.fail(&res, &LoadError{Collection: coll, Index: i, Key: key, Err: err})
			continue
		}
		up, err := l.store.Upsert(ctx, coll, filter, doc)
		if err != nil {
			l.fail(&res, &LoadError{Collection: coll, Index: i, Key: key, Err: err})
			continue
		}
		switch {
		case up.Inserted:
			res.RecordsInserted++
		case up.Matched:
			res.RecordsUpdated++
		}
	}
	res.Success = len(res.Errors) == 0
	res.Duration = time.Since(start).Milliseconds()
	return res, nil
}

// LoadMetadata upserts a single metadata record by source.
func (l *Loader) LoadMetadata(ctx context.Context, md model.Metadata) (model.ETLResult, error) {
	return l.Load(ctx, model.CollectionMetadata, []model.Record{md})
}

func (l *Loader) fail(res *model.ETLResult, err *LoadError) {
	l.log.WithFields(logrus.Fields{
		"collection": err.Collection,
		"index":      err.Index,
		"key":        err.Key,
	}).WithError(err.Err).Warn("record not loaded")
	res.Errors = append(res.Errors, err.Error())
}

// keyFilter builds the upsert filter from doc's key fields. The returned
// key text is usable in messages even when the filter is rejected.
func keyFilter(doc model.Document, keys []string) (model.Document, string, error) {
	filter := make(model.Document, len(keys))
	parts := make([]string, 0, len(keys))
	var missing []string
	for _, k := range keys {
		v, ok := doc[k]
		if !ok || v == nil || isBlank(v) {
			missing = append(missing, k)
			parts = append(parts, fmt.Sprintf("%s=%s", k, render(v)))
			continue
		}
		filter[k] = v
		parts = append(parts, fmt.Sprintf("%s=%s", k, render(v)))
	}
	key := strings.Join(parts, ",")
	if len(keys) == 1 {
		key = render(doc[keys[0]])
	}
	if len(missing) > 0 {
		return nil, key, fmt.Errorf("%w: missing %s", store.ErrEmptyKey, strings.Join(missing, ", "))
	}
	return filter, key, nil
}

func isBlank(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case string:
		return t
	}
	return fmt.Sprint(v)
}
