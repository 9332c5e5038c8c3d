package admin

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwetl/internal/manifest"
	"dwetl/internal/metrics"
	"dwetl/internal/model"
	"dwetl/internal/snapshot"
	"dwetl/internal/store"
)

func seeded(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	for id, total := range map[string]string{"O1": "19.00", "O2": "80.50"} {
		_, err := s.Upsert(ctx, model.CollectionOrders, model.Document{"orderId": id}, model.Document{"totalAmount": decimal.RequireFromString(total)})
		require.NoError(t, err)
	}
	_, err := s.Upsert(ctx, model.CollectionProducts, model.Document{"productId": "1"}, model.Document{"category": "Tools"})
	require.NoError(t, err)
	return s
}

func TestInit_CreatesManagedIndexes(t *testing.T) {
	a := New(store.NewMemoryStore(), nil)
	res, err := a.Init(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"orderId_1", "customerId_1", "orderDate_-1"}, res.Indexes[model.CollectionOrders])
	assert.Equal(t, []string{"reportDate_-1", "reportDate_1_analyst_1"}, res.Indexes[model.CollectionSalesReports])

	// idempotent
	_, err = a.Init(context.Background())
	require.NoError(t, err)
	st, err := a.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"_id_", "category_1", "productId_1"}, st[model.CollectionProducts].Indexes)
}

func TestReset_ClearsAndRebuilds(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	_, err := s.CreateIndex(ctx, model.CollectionOrders, store.Index{Name: "legacy", Fields: []store.IndexField{{Name: "status"}}})
	require.NoError(t, err)

	a := New(s, nil)
	res, err := a.Reset(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.SnapshotID)
	assert.Equal(t, int64(2), res.InitialCounts[model.CollectionOrders])
	assert.Equal(t, int64(2), res.Deleted[model.CollectionOrders])
	assert.Equal(t, []string{"legacy"}, res.DroppedIndexes[model.CollectionOrders])
	for _, coll := range model.Collections {
		assert.Zero(t, res.FinalCounts[coll], coll)
	}

	// a reset collection behaves like a new one
	up, err := s.Upsert(ctx, model.CollectionOrders, model.Document{"orderId": "O1"}, model.Document{"totalAmount": decimal.RequireFromString("1")})
	require.NoError(t, err)
	assert.True(t, up.Inserted)
}

func TestReset_SnapshotsFirst(t *testing.T) {
	dir := t.TempDir()
	s := seeded(t)
	reg := metrics.NewRegistry()
	a := New(s, nil)
	a.SetBackup(snapshot.NewFilesystemSnapshotter(dir, nil), manifest.NewFilesystemManifest(dir))
	a.SetMetrics(reg)

	res, err := a.Reset(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, res.SnapshotID)

	m, err := manifest.NewFilesystemManifest(dir).ReadLatest()
	require.NoError(t, err)
	assert.Equal(t, res.SnapshotID, m.SnapshotID)
	assert.Equal(t, int64(2), m.Collections[model.CollectionOrders])
	docs, err := snapshot.ReadCollection(dir, res.SnapshotID, model.CollectionOrders)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.SnapshotsWritten))
}

type failingSnapshotter struct{}

func (failingSnapshotter) WriteSnapshot(context.Context, string, store.Store) (snapshot.Summary, error) {
	return snapshot.Summary{}, errors.New("disk full")
}

func TestReset_FailedSnapshotKeepsData(t *testing.T) {
	s := seeded(t)
	a := New(s, nil)
	a.SetBackup(failingSnapshotter{}, nil)
	_, err := a.Reset(context.Background())
	require.ErrorContains(t, err, "disk full")
	n, _ := s.Count(context.Background(), model.CollectionOrders)
	assert.Equal(t, int64(2), n)
}

func TestStats_CountsAndRevenue(t *testing.T) {
	reg := metrics.NewRegistry()
	a := New(seeded(t), nil)
	a.SetMetrics(reg)
	st, err := a.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Orders)
	assert.Equal(t, int64(1), st.Products)
	assert.Zero(t, st.Customers)
	assert.True(t, st.TotalRevenue.Equal(decimal.RequireFromString("99.5")), st.TotalRevenue.String())
	assert.Equal(t, float64(2), testutil.ToFloat64(reg.CollectionDocs.WithLabelValues(model.CollectionOrders)))
}

func chartsStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	d := decimal.RequireFromString
	day := func(s string) time.Time {
		ts, err := time.Parse(time.RFC3339, s)
		require.NoError(t, err)
		return ts
	}
	for _, p := range []model.Product{
		{ProductID: "P1", Name: "Laptop", Category: "Electronics", Quantity: 5},
		{ProductID: "P2", Name: "Mouse", Category: "Electronics", Quantity: 20},
		{ProductID: "P3", Name: "Desk", Category: "Furniture", Quantity: 2},
	} {
		_, err := s.Upsert(ctx, model.CollectionProducts, model.Document{"productId": p.ProductID}, p.Document())
		require.NoError(t, err)
	}
	for _, c := range []model.Customer{
		{CustomerID: "C1", City: "Madrid"},
		{CustomerID: "C2", City: "Madrid"},
		{CustomerID: "C3"},
	} {
		_, err := s.Upsert(ctx, model.CollectionCustomers, model.Document{"customerId": c.CustomerID}, c.Document())
		require.NoError(t, err)
	}
	for _, o := range []model.Order{
		{OrderID: "O1", OrderDate: day("2024-01-15T10:00:00Z"), Status: "completed", TotalAmount: d("1020"), Items: []model.OrderItem{
			{ProductID: "P1", ProductName: "Laptop", Quantity: 1, Total: d("1000")},
			{ProductID: "P2", ProductName: "Mouse", Quantity: 2, Total: d("20")},
		}},
		{OrderID: "O2", OrderDate: day("2024-01-15T18:30:00Z"), Status: "pending", TotalAmount: d("10"), Items: []model.OrderItem{
			{ProductID: "P2", ProductName: "Mouse", Quantity: 1, Total: d("10")},
		}},
		{OrderID: "O3", OrderDate: day("2024-01-10T08:00:00Z"), Status: "completed", TotalAmount: d("5"), Items: []model.OrderItem{
			{ProductID: "P9", ProductName: "Cable", Quantity: 5, Total: d("5")},
		}},
	} {
		_, err := s.Upsert(ctx, model.CollectionOrders, model.Document{"orderId": o.OrderID}, o.Document())
		require.NoError(t, err)
	}
	return s
}

func TestCharts_GroupsCollections(t *testing.T) {
	ch, err := New(chartsStore(t), nil).Charts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []CategoryCount{
		{Category: "Electronics", Count: 2, TotalQuantity: 25},
		{Category: "Furniture", Count: 1, TotalQuantity: 2},
	}, ch.ProductsByCategory)

	require.Len(t, ch.SalesByProduct, 3)
	assert.Equal(t, "Laptop", ch.SalesByProduct[0].Product)
	assert.Equal(t, "Mouse", ch.SalesByProduct[1].Product)
	assert.Equal(t, int64(3), ch.SalesByProduct[1].Quantity)
	assert.True(t, decimal.RequireFromString("30").Equal(ch.SalesByProduct[1].Revenue))

	require.Len(t, ch.SalesByDate, 2)
	assert.Equal(t, "2024-01-10", ch.SalesByDate[0].Date)
	assert.Equal(t, "2024-01-15", ch.SalesByDate[1].Date)
	assert.Equal(t, int64(2), ch.SalesByDate[1].Count)
	assert.True(t, decimal.RequireFromString("1030").Equal(ch.SalesByDate[1].Revenue))

	assert.Equal(t, []StatusCount{{Status: "completed", Count: 2}, {Status: "pending", Count: 1}}, ch.OrdersByStatus)
	assert.Equal(t, []CityCount{{City: "Madrid", Count: 2}, {City: NoCity, Count: 1}}, ch.CustomersByCity)

	require.Len(t, ch.RevenueByCategory, 2)
	assert.Equal(t, "Electronics", ch.RevenueByCategory[0].Category)
	assert.Equal(t, int64(3), ch.RevenueByCategory[0].OrderCount)
	assert.True(t, decimal.RequireFromString("1030").Equal(ch.RevenueByCategory[0].Revenue))
	assert.Equal(t, Uncategorized, ch.RevenueByCategory[1].Category)
}

func TestCharts_TopTenProducts(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	var orderItems []model.OrderItem
	for i := 1; i <= 12; i++ {
		orderItems = append(orderItems, model.OrderItem{ProductID: fmt.Sprint(i), ProductName: fmt.Sprintf("item-%02d", i), Quantity: 1, Total: decimal.NewFromInt(int64(i))})
	}
	o := model.Order{OrderID: "O1", Items: orderItems}
	_, err := s.Upsert(ctx, model.CollectionOrders, model.Document{"orderId": "O1"}, o.Document())
	require.NoError(t, err)

	ch, err := New(s, nil).Charts(ctx)
	require.NoError(t, err)
	require.Len(t, ch.SalesByProduct, 10)
	assert.Equal(t, "item-12", ch.SalesByProduct[0].Product)
	assert.Equal(t, "item-03", ch.SalesByProduct[9].Product)
}

func TestCharts_EmptyStore(t *testing.T) {
	ch, err := New(store.NewMemoryStore(), nil).Charts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ch.ProductsByCategory)
	assert.Empty(t, ch.SalesByDate)
	assert.NotNil(t, ch.RevenueByCategory)
}
