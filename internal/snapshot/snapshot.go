// Package snapshot dumps managed collections to MongoDB canonical extended
// JSON, one file per collection, plus their index definitions.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"dwetl/internal/model"
	"dwetl/internal/store"
)

// IndexFile holds the index definitions of every dumped collection.
const IndexFile = "indexes.json"

// Summary lists the document count written per collection.
type Summary struct {
	SnapshotID  string           `json:"snapshotId"`
	Collections map[string]int64 `json:"collections"`
}

type Snapshotter interface {
	WriteSnapshot(ctx context.Context, snapshotID string, st store.Store) (Summary, error)
}

// NewID returns a sortable snapshot id such as 20240131T120000Z-1a2b3c4d.
func NewID(now time.Time) string {
	return now.UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
}

type FilesystemSnapshotter struct {
	baseDir     string
	collections []string
}

func NewFilesystemSnapshotter(baseDir string, collections []string) *FilesystemSnapshotter {
	if len(collections) == 0 {
		collections = model.Collections
	}
	return &FilesystemSnapshotter{baseDir: baseDir, collections: collections}
}

// BaseDir is the directory snapshots are written under.
func (f *FilesystemSnapshotter) BaseDir() string { return f.baseDir }

func (f *FilesystemSnapshotter) WriteSnapshot(ctx context.Context, snapshotID string, st store.Store) (Summary, error) {
	dir := filepath.Join(f.baseDir, snapshotID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("mkdir: %w", err)
	}
	sum := Summary{SnapshotID: snapshotID, Collections: make(map[string]int64, len(f.collections))}
	indexes := make(map[string][]store.Index, len(f.collections))
	for _, coll := range f.collections {
		n, err := writeCollection(ctx, filepath.Join(dir, coll+".json"), coll, st)
		if err != nil {
			return Summary{}, err
		}
		sum.Collections[coll] = n
		list, err := st.ListIndexes(ctx, coll)
		if err != nil {
			return Summary{}, fmt.Errorf("list indexes %s: %w", coll, err)
		}
		indexes[coll] = list
	}
	b, err := json.MarshalIndent(indexes, "", "  ")
	if err != nil {
		return Summary{}, fmt.Errorf("encode indexes: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, IndexFile), b, 0o644); err != nil {
		return Summary{}, fmt.Errorf("write indexes: %w", err)
	}
	return sum, nil
}

// writeCollection writes a JSON array of canonical extended JSON documents.
func writeCollection(ctx context.Context, path, coll string, st store.Store) (int64, error) {
	var buf bytes.Buffer
	buf.WriteString("[")
	var n int64
	err := st.Scan(ctx, coll, func(d model.Document) error {
		b, err := bson.MarshalExtJSON(store.EncodeBSON(d), true, false)
		if err != nil {
			return fmt.Errorf("encode %s document: %w", coll, err)
		}
		if n > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		buf.Write(b)
		n++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", coll, err)
	}
	buf.WriteString("\n]\n")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", coll, err)
	}
	return n, nil
}

// ReadCollection loads one collection file of a snapshot. A collection with
// no file yields os.ErrNotExist.
func ReadCollection(baseDir, snapshotID, coll string) ([]model.Document, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, snapshotID, coll+".json"))
	if err != nil {
		return nil, err
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", coll, err)
	}
	out := make([]model.Document, 0, len(raws))
	for i, raw := range raws {
		var m bson.M
		if err := bson.UnmarshalExtJSON(raw, true, &m); err != nil {
			return nil, fmt.Errorf("decode %s[%d]: %w", coll, i, err)
		}
		out = append(out, store.DecodeBSON(m))
	}
	return out, nil
}

// ReadIndexes loads the index definitions of a snapshot.
func ReadIndexes(baseDir, snapshotID string) (map[string][]store.Index, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, snapshotID, IndexFile))
	if err != nil {
		return nil, err
	}
	var out map[string][]store.Index
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal indexes: %w", err)
	}
	return out, nil
}
