package main

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwetl/internal/load"
	"dwetl/internal/model"
	"dwetl/internal/pipeline"
	"dwetl/internal/store"
)

func TestGeneratedSourcesLoad(t *testing.T) {
	dir := t.TempDir()
	g := generator{dir: dir, rng: rand.New(rand.NewSource(7)), base: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, g.all(8, 12, true))

	s := store.NewMemoryStore()
	orch := pipeline.New(load.New(s, nil, nil), dir, nil)
	cases := []struct {
		st     model.SourceType
		path   string
		target string
		want   int
	}{
		{model.SourceTabular, "products.csv", model.CollectionProducts, len(catalog)},
		{model.SourceTabular, "products.xlsx", model.CollectionProducts, len(catalog)},
		{model.SourceStructuredObject, "customers.json", model.CollectionCustomers, 8},
		{model.SourceHierarchicalMarkup, "orders.xml", model.CollectionOrders, 12},
		{model.SourceFreeText, "sales_report.txt", model.CollectionSalesReports, 1},
		{model.SourceMetadataObject, "metadata.json", model.CollectionMetadata, 1},
	}
	for _, c := range cases {
		t.Run(c.path, func(t *testing.T) {
			p := &model.ETLProcess{ID: "etl-" + c.path, Name: c.path, SourceType: c.st, SourcePath: c.path, TargetCollection: c.target}
			res := orch.Execute(context.Background(), p)
			require.True(t, res.Success, "%v", res.Errors)
			assert.Equal(t, c.want, res.RecordsProcessed)
		})
	}
	n, err := s.Count(context.Background(), model.CollectionProducts)
	require.NoError(t, err)
	assert.Equal(t, int64(len(catalog)), n)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "26,100.50", money(decimal.RequireFromString("26100.5")))
	assert.Equal(t, "999.00", money(decimal.RequireFromString("999")))
	assert.Equal(t, "1,234,567.89", money(decimal.RequireFromString("1234567.89")))
}
