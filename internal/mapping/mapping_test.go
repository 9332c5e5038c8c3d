package mapping

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwetl/internal/extract"
	"dwetl/internal/model"
)

var productSpecs = []model.DataMapping{
	{SourceField: "id", TargetField: "productId", DataType: model.TypeString, Required: true},
	{SourceField: "product_name", TargetField: "name", DataType: model.TypeString, Required: true},
	{SourceField: "price", TargetField: "price", DataType: model.TypeNumber, Required: true},
	{SourceField: "quantity", TargetField: "quantity", DataType: model.TypeInteger, Required: true},
	{SourceField: "created_at", TargetField: "createdAt", DataType: model.TypeDate, Transformation: model.TransformParseDate, Required: true},
	{SourceField: "discount", TargetField: "discount", DataType: model.TypeNumber},
}

func TestApply_TabularRows(t *testing.T) {
	rows := []any{extract.Row{
		"id": "1", "product_name": "Widget", "price": "1,209.99", "quantity": "5.7", "created_at": "2024-01-01",
	}}
	got, err := Apply(rows, productSpecs)
	require.NoError(t, err)
	require.Len(t, got, 1)
	d := got[0]
	assert.Equal(t, "1", d["productId"])
	assert.Equal(t, "Widget", d["name"])
	assert.True(t, d["price"].(decimal.Decimal).Equal(decimal.RequireFromString("1209.99")))
	assert.Equal(t, int64(5), d["quantity"])
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), d["createdAt"])
	_, present := d["discount"]
	assert.False(t, present, "optional missing field is omitted")
}

func TestApply_RequiredMissingFailsBatch(t *testing.T) {
	rows := []any{
		extract.Row{"id": "1", "product_name": "A", "price": "1", "quantity": "1", "created_at": "2024-01-01"},
		extract.Row{"id": "2", "price": "1", "quantity": "1", "created_at": "2024-01-01"},
	}
	_, err := Apply(rows, productSpecs)
	var mf *MissingFieldError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, "product_name", mf.SourceField)
	assert.Equal(t, 1, mf.Index)
}

func TestApplyOne_DottedPaths(t *testing.T) {
	rec := map[string]any{
		"customerId": "C1",
		"address":    map[string]any{"city": "Lima"},
		"preferences": map[string]any{
			"newsletter": json.Number("1"),
		},
		"tags": []any{"vip", "early"},
		"note": nil,
	}
	specs := []model.DataMapping{
		{SourceField: "customerId", TargetField: "customerId", DataType: model.TypeString, Required: true},
		{SourceField: "address.city", TargetField: "city", DataType: model.TypeString, Transformation: model.TransformUppercase},
		{SourceField: "address.country", TargetField: "country", DataType: model.TypeString},
		{SourceField: "preferences.newsletter", TargetField: "newsletter", DataType: model.TypeBoolean},
		{SourceField: "tags.1", TargetField: "secondTag", DataType: model.TypeString},
		{SourceField: "note", TargetField: "note", DataType: model.TypeString},
	}
	d, err := ApplyOne(rec, specs)
	require.NoError(t, err)
	assert.Equal(t, model.Document{
		"customerId": "C1",
		"city":       "LIMA",
		"newsletter": true,
		"secondTag":  "early",
	}, d)

	_, err = ApplyOne(rec, []model.DataMapping{{SourceField: "address.zip", TargetField: "zip", DataType: model.TypeString, Required: true}})
	var mf *MissingFieldError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, -1, mf.Index)
}

func TestApplyOne_DateIsIdempotent(t *testing.T) {
	when := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	d, err := ApplyOne(model.Document{"reportDate": when}, []model.DataMapping{
		{SourceField: "reportDate", TargetField: "reportDate", DataType: model.TypeDate, Transformation: model.TransformParseDate},
		{SourceField: "reportDate", TargetField: "day", DataType: model.TypeString, Transformation: model.TransformFormatDate},
	})
	require.NoError(t, err)
	assert.Equal(t, when, d["reportDate"])
	assert.Equal(t, "2024-05-06", d["day"])
}

func TestApplyOne_CoercionError(t *testing.T) {
	_, err := ApplyOne(extract.Row{"price": "cheap"}, []model.DataMapping{
		{SourceField: "price", TargetField: "price", DataType: model.TypeNumber},
	})
	var ce *CoercionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "price", ce.TargetField)
}

func TestCoerce_Boolean(t *testing.T) {
	for in, want := range map[any]bool{
		"true": true, "false": false, "yes": true, "": false, int64(0): false, 2.5: true,
	} {
		assert.Equal(t, want, toBool(in), "%v", in)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(productSpecs))
	err := Validate([]model.DataMapping{
		{SourceField: "", TargetField: "a", DataType: model.TypeString},
		{SourceField: "b", TargetField: "a", DataType: "money"},
		{SourceField: "c", TargetField: "c", DataType: model.TypeString, Transformation: "reverse"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sourceField is empty")
	assert.Contains(t, err.Error(), `targetField "a" repeated`)
	assert.Contains(t, err.Error(), `unknown dataType "money"`)
	assert.Contains(t, err.Error(), `unknown transformation "reverse"`)
}
