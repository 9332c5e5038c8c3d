// Package store is the keyed document collection the pipeline loads into.
// Backends: in-memory, Pebble (embedded) and MongoDB.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dwetl/internal/model"
)

var (
	// ErrEmptyKey is returned for an upsert filter that is empty or holds an
	// empty value.
	ErrEmptyKey = errors.New("store: empty key")
	// ErrDuplicateKey is returned when a write or index build would break a
	// unique index.
	ErrDuplicateKey = errors.New("store: duplicate key")
	// ErrIndexNotFound is returned by DropIndex for an unknown name.
	ErrIndexNotFound = errors.New("store: index not found")
)

// IDIndexName is the primary index every collection carries. It cannot be
// dropped.
const IDIndexName = "_id_"

// UpsertResult tells an insert from an update. Matched is set when a
// document with the filter's key already existed; Modified when its stored
// fields changed.
type UpsertResult struct {
	Inserted bool
	Matched  bool
	Modified bool
}

type IndexField struct {
	Name string `json:"name"`
	Desc bool   `json:"desc,omitempty"`
}

// Index is a secondary index over one or more fields.
type Index struct {
	Name   string       `json:"name"`
	Fields []IndexField `json:"fields"`
	Unique bool         `json:"unique,omitempty"`
}

// DefaultName is the name MongoDB would give the index, e.g.
// "reportDate_-1_analyst_1".
func (ix Index) DefaultName() string {
	parts := make([]string, 0, len(ix.Fields))
	for _, f := range ix.Fields {
		dir := "1"
		if f.Desc {
			dir = "-1"
		}
		parts = append(parts, f.Name+"_"+dir)
	}
	return strings.Join(parts, "_")
}

func (ix Index) withName() Index {
	if ix.Name == "" {
		ix.Name = ix.DefaultName()
	}
	return ix
}

// Store is the document collection contract. Upsert merges doc into the
// document matching filter, creating it with filter's fields when absent.
type Store interface {
	Upsert(ctx context.Context, coll string, filter, doc model.Document) (UpsertResult, error)
	Count(ctx context.Context, coll string) (int64, error)
	DeleteAll(ctx context.Context, coll string) (int64, error)
	CreateIndex(ctx context.Context, coll string, ix Index) (string, error)
	ListIndexes(ctx context.Context, coll string) ([]Index, error)
	DropIndex(ctx context.Context, coll string, name string) error
	Scan(ctx context.Context, coll string, fn func(model.Document) error) error
	Close() error
}

func checkFilter(filter model.Document) error {
	if len(filter) == 0 {
		return ErrEmptyKey
	}
	for k, v := range filter {
		if v == nil {
			return fmt.Errorf("%w: %s is null", ErrEmptyKey, k)
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: %s is blank", ErrEmptyKey, k)
		}
	}
	return nil
}

func checkIndex(ix Index) error {
	if len(ix.Fields) == 0 {
		return errors.New("store: index has no fields")
	}
	if ix.Name == IDIndexName {
		return fmt.Errorf("store: index name %q is reserved", IDIndexName)
	}
	return nil
}
