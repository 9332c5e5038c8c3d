// Package restore reloads a snapshot into a store through keyed upserts.
package restore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"dwetl/internal/load"
	"dwetl/internal/manifest"
	"dwetl/internal/model"
	"dwetl/internal/snapshot"
	"dwetl/internal/store"
)

type Restorer struct {
	store           store.Store
	manifestReader  manifest.Reader
	snapshotBaseDir string
	targets         load.Targets
	log             logrus.FieldLogger
}

func NewRestorer(st store.Store, mr manifest.Reader, snapshotBaseDir string, log logrus.FieldLogger) *Restorer {
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	return &Restorer{
		store:           st,
		manifestReader:  mr,
		snapshotBaseDir: snapshotBaseDir,
		targets:         load.DefaultTargets(),
		log:             log,
	}
}

// Options control a restore. Replace clears each collection before it is
// reloaded; otherwise snapshot documents are merged over current ones.
type Options struct {
	Replace     bool
	Collections []string
}

// CollectionResult counts one collection's restore. Applied documents were
// inserted or changed; Unchanged ones already matched the snapshot.
type CollectionResult struct {
	Applied   int `json:"applied"`
	Unchanged int `json:"unchanged"`
	Deleted   int `json:"deleted"`
}

type RestoreResult struct {
	SnapshotID  string                      `json:"snapshotId"`
	Applied     int                         `json:"applied"`
	Unchanged   int                         `json:"unchanged"`
	Collections map[string]CollectionResult `json:"collections"`
	Indexes     []string                    `json:"indexes"`
}

// RestoreLatest restores the snapshot named by the latest manifest.
func (r *Restorer) RestoreLatest(ctx context.Context, opts Options) (RestoreResult, error) {
	m, err := r.manifestReader.ReadLatest()
	if err != nil {
		return RestoreResult{}, fmt.Errorf("read manifest: %w", err)
	}
	res, err := r.RestoreFromSnapshot(ctx, m.SnapshotID, opts)
	if err != nil {
		return res, fmt.Errorf("restore snapshot: %w", err)
	}
	return res, nil
}

// RestoreFromSnapshot reloads every collection file of snapshotID. A
// collection missing from the snapshot is skipped.
func (r *Restorer) RestoreFromSnapshot(ctx context.Context, snapshotID string, opts Options) (RestoreResult, error) {
	res := RestoreResult{SnapshotID: snapshotID, Collections: map[string]CollectionResult{}, Indexes: []string{}}
	if snapshotID == "" {
		return res, errors.New("empty snapshot id")
	}
	colls := opts.Collections
	if len(colls) == 0 {
		colls = model.Collections
	}
	for _, coll := range colls {
		docs, err := snapshot.ReadCollection(r.snapshotBaseDir, snapshotID, coll)
		if errors.Is(err, os.ErrNotExist) {
			r.log.WithFields(logrus.Fields{"snapshot": snapshotID, "collection": coll}).Warn("collection not in snapshot, skipping")
			continue
		}
		if err != nil {
			return res, err
		}
		cr, err := r.restoreCollection(ctx, coll, docs, opts.Replace)
		if err != nil {
			return res, err
		}
		res.Collections[coll] = cr
		res.Applied += cr.Applied
		res.Unchanged += cr.Unchanged
	}

	indexes, err := snapshot.ReadIndexes(r.snapshotBaseDir, snapshotID)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return res, err
	}
	for _, coll := range colls {
		for _, ix := range indexes[coll] {
			if ix.Name == store.IDIndexName {
				continue
			}
			name, err := r.store.CreateIndex(ctx, coll, ix)
			if err != nil {
				return res, fmt.Errorf("create index %s on %s: %w", ix.Name, coll, err)
			}
			res.Indexes = append(res.Indexes, coll+"."+name)
		}
	}
	r.log.WithFields(logrus.Fields{
		"snapshot":  snapshotID,
		"applied":   res.Applied,
		"unchanged": res.Unchanged,
	}).Info("snapshot restored")
	return res, nil
}

func (r *Restorer) restoreCollection(ctx context.Context, coll string, docs []model.Document, replace bool) (CollectionResult, error) {
	var cr CollectionResult
	keys, err := r.targets.Keys(coll)
	if err != nil {
		return cr, err
	}
	if replace {
		n, err := r.store.DeleteAll(ctx, coll)
		if err != nil {
			return cr, fmt.Errorf("clear %s: %w", coll, err)
		}
		cr.Deleted = int(n)
	}
	for i, d := range docs {
		filter := make(model.Document, len(keys))
		for _, k := range keys {
			filter[k] = d[k]
		}
		up, err := r.store.Upsert(ctx, coll, filter, d)
		if err != nil {
			return cr, fmt.Errorf("restore %s[%d]: %w", coll, i, err)
		}
		if up.Inserted || up.Modified {
			cr.Applied++
		} else {
			cr.Unchanged++
		}
	}
	return cr, nil
}
