package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dwetl/internal/model"
)

func TestPebbleStore_Contract(t *testing.T) {
	st, err := NewPebbleStore(t.TempDir())
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	runContract(t, st)
}

func TestPebbleStore_ReopenKeepsDocumentsAndIndexes(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	when := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	st, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	report := model.Document{
		"reportDate":   when,
		"analyst":      "Ana",
		"totalSales":   decimal.RequireFromString("26100.50"),
		"productSales": []any{map[string]any{"productName": "Laptop", "quantity": int64(2)}},
	}
	filter := model.Document{"reportDate": when, "analyst": "Ana"}
	if _, err := st.Upsert(ctx, "salesReports", filter, report); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := st.CreateIndex(ctx, "salesReports", Index{Fields: []IndexField{{Name: "reportDate", Desc: true}}}); err != nil {
		t.Fatalf("create index: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, err = NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("pebble reopen: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	// the BSON round trip must not look like a change
	res, err := st.Upsert(ctx, "salesReports", filter, report)
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if res.Inserted || !res.Matched || res.Modified {
		t.Fatalf("reopened upsert should match unchanged: %+v", res)
	}

	var got model.Document
	_ = st.Scan(ctx, "salesReports", func(d model.Document) error { got = d; return nil })
	if ts, ok := got["reportDate"].(time.Time); !ok || !ts.Equal(when) {
		t.Fatalf("reportDate round trip: %#v", got["reportDate"])
	}
	if q := got["productSales"].([]any)[0].(map[string]any)["quantity"]; q != int64(2) {
		t.Fatalf("nested quantity round trip: %#v", q)
	}
	list, err := st.ListIndexes(ctx, "salesReports")
	if err != nil || len(list) != 2 || list[1].Name != "reportDate_-1" {
		t.Fatalf("indexes after reopen: %+v err=%v", list, err)
	}
}
