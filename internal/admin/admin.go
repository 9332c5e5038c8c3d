// Package admin prepares and inspects the warehouse: index creation, reset
// to an empty state, and collection statistics.
package admin

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dwetl/internal/manifest"
	"dwetl/internal/metrics"
	"dwetl/internal/model"
	"dwetl/internal/snapshot"
	"dwetl/internal/store"
)

func asc(name string) store.IndexField  { return store.IndexField{Name: name} }
func desc(name string) store.IndexField { return store.IndexField{Name: name, Desc: true} }

// Indexes are the secondary indexes of each managed collection.
var Indexes = map[string][]store.Index{
	model.CollectionProducts: {
		{Fields: []store.IndexField{asc("productId")}, Unique: true},
		{Fields: []store.IndexField{asc("category")}},
	},
	model.CollectionCustomers: {
		{Fields: []store.IndexField{asc("customerId")}, Unique: true},
		{Fields: []store.IndexField{asc("email")}},
	},
	model.CollectionOrders: {
		{Fields: []store.IndexField{asc("orderId")}, Unique: true},
		{Fields: []store.IndexField{asc("customerId")}},
		{Fields: []store.IndexField{desc("orderDate")}},
	},
	model.CollectionSalesReports: {
		{Fields: []store.IndexField{desc("reportDate")}},
		{Fields: []store.IndexField{asc("reportDate"), asc("analyst")}, Unique: true},
	},
	model.CollectionMetadata: {
		{Fields: []store.IndexField{asc("source")}, Unique: true},
	},
}

type Admin struct {
	store       store.Store
	collections []string
	log         logrus.FieldLogger

	snapshotter snapshot.Snapshotter
	publisher   manifest.Publisher
	metrics     *metrics.Registry
	now         func() time.Time
}

func New(st store.Store, log logrus.FieldLogger) *Admin {
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	return &Admin{store: st, collections: model.Collections, log: log, now: time.Now}
}

// SetBackup makes Reset snapshot the collections and publish the manifest
// before clearing anything.
func (a *Admin) SetBackup(snap snapshot.Snapshotter, pub manifest.Publisher) {
	a.snapshotter = snap
	a.publisher = pub
}

// SetMetrics makes Stats update the per-collection document gauge.
func (a *Admin) SetMetrics(m *metrics.Registry) { a.metrics = m }

// InitResult lists created index names per collection.
type InitResult struct {
	Indexes map[string][]string `json:"indexes"`
}

// Init creates every managed index. Existing indexes are left as they are.
func (a *Admin) Init(ctx context.Context) (InitResult, error) {
	res := InitResult{Indexes: make(map[string][]string, len(a.collections))}
	for _, coll := range a.collections {
		names := []string{}
		for _, ix := range Indexes[coll] {
			name, err := a.store.CreateIndex(ctx, coll, ix)
			if err != nil {
				return res, fmt.Errorf("init %s: %w", coll, err)
			}
			names = append(names, name)
		}
		res.Indexes[coll] = names
	}
	a.log.WithField("collections", len(a.collections)).Info("indexes created")
	return res, nil
}

type ResetResult struct {
	SnapshotID     string              `json:"snapshotId,omitempty"`
	InitialCounts  map[string]int64    `json:"initialCounts"`
	Deleted        map[string]int64    `json:"deleted"`
	DroppedIndexes map[string][]string `json:"droppedIndexes"`
	Indexes        map[string][]string `json:"indexes"`
	FinalCounts    map[string]int64    `json:"finalCounts"`
}

// Reset empties every managed collection and rebuilds its indexes. With a
// backup configured, a snapshot is taken first and a failed snapshot stops
// the reset before anything is deleted.
func (a *Admin) Reset(ctx context.Context) (ResetResult, error) {
	res := ResetResult{
		Deleted:        map[string]int64{},
		DroppedIndexes: map[string][]string{},
	}
	initial, err := a.Counts(ctx)
	if err != nil {
		return res, err
	}
	res.InitialCounts = initial

	if a.snapshotter != nil {
		id := snapshot.NewID(a.now())
		sum, err := a.snapshotter.WriteSnapshot(ctx, id, a.store)
		if err != nil {
			return res, fmt.Errorf("snapshot before reset: %w", err)
		}
		if a.publisher != nil {
			if err := a.publisher.PublishLatest(sum.SnapshotID, sum.Collections); err != nil {
				return res, fmt.Errorf("publish manifest: %w", err)
			}
		}
		if a.metrics != nil {
			a.metrics.SnapshotsWritten.Inc()
		}
		res.SnapshotID = id
	}

	for _, coll := range a.collections {
		n, err := a.store.DeleteAll(ctx, coll)
		if err != nil {
			return res, fmt.Errorf("reset %s: %w", coll, err)
		}
		res.Deleted[coll] = n

		list, err := a.store.ListIndexes(ctx, coll)
		if err != nil {
			return res, fmt.Errorf("reset %s: %w", coll, err)
		}
		dropped := []string{}
		for _, ix := range list {
			if ix.Name == store.IDIndexName {
				continue
			}
			if err := a.store.DropIndex(ctx, coll, ix.Name); err != nil {
				return res, fmt.Errorf("reset %s: %w", coll, err)
			}
			dropped = append(dropped, ix.Name)
		}
		res.DroppedIndexes[coll] = dropped
	}

	created, err := a.Init(ctx)
	if err != nil {
		return res, err
	}
	res.Indexes = created.Indexes

	final, err := a.Counts(ctx)
	if err != nil {
		return res, err
	}
	res.FinalCounts = final
	a.log.WithFields(logrus.Fields{"snapshot": res.SnapshotID, "deleted": res.Deleted}).Warn("warehouse reset")
	return res, nil
}

// Counts returns the document count of every managed collection. The
// collections are counted concurrently.
func (a *Admin) Counts(ctx context.Context) (map[string]int64, error) {
	var mu sync.Mutex
	out := make(map[string]int64, len(a.collections))
	g, gctx := errgroup.WithContext(ctx)
	for _, coll := range a.collections {
		coll := coll
		g.Go(func() error {
			n, err := a.store.Count(gctx, coll)
			if err != nil {
				return fmt.Errorf("count %s: %w", coll, err)
			}
			mu.Lock()
			out[coll] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type CollectionState struct {
	Count   int64    `json:"count"`
	Indexes []string `json:"indexes"`
}

// State reports the count and index names of each managed collection.
func (a *Admin) State(ctx context.Context) (map[string]CollectionState, error) {
	counts, err := a.Counts(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]CollectionState, len(counts))
	for _, coll := range a.collections {
		list, err := a.store.ListIndexes(ctx, coll)
		if err != nil {
			return nil, fmt.Errorf("state %s: %w", coll, err)
		}
		names := make([]string, 0, len(list))
		for _, ix := range list {
			names = append(names, ix.Name)
		}
		sort.Strings(names)
		out[coll] = CollectionState{Count: counts[coll], Indexes: names}
	}
	return out, nil
}

type Stats struct {
	Products     int64           `json:"products"`
	Customers    int64           `json:"customers"`
	Orders       int64           `json:"orders"`
	SalesReports int64           `json:"reports"`
	Metadata     int64           `json:"metadata"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
}

// Stats returns collection counts and total revenue, the sum of
// orders.totalAmount.
func (a *Admin) Stats(ctx context.Context) (Stats, error) {
	var (
		counts  map[string]int64
		revenue decimal.Decimal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = a.Counts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		revenue, err = a.revenue(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	if a.metrics != nil {
		for coll, n := range counts {
			a.metrics.CollectionDocs.WithLabelValues(coll).Set(float64(n))
		}
	}
	return Stats{
		Products:     counts[model.CollectionProducts],
		Customers:    counts[model.CollectionCustomers],
		Orders:       counts[model.CollectionOrders],
		SalesReports: counts[model.CollectionSalesReports],
		Metadata:     counts[model.CollectionMetadata],
		TotalRevenue: revenue,
	}, nil
}

func (a *Admin) revenue(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	err := a.store.Scan(ctx, model.CollectionOrders, func(d model.Document) error {
		if v, ok := amount(d["totalAmount"]); ok {
			total = total.Add(v)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("revenue: %w", err)
	}
	return total, nil
}

func amount(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case float64:
		return decimal.NewFromFloat(t), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		d, err := decimal.NewFromString(t)
		return d, err == nil
	}
	return decimal.Zero, false
}
