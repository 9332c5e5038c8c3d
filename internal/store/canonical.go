package store

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"dwetl/internal/model"
)

// canonical renders a value as JSON with stable map ordering. Times are UTC
// at millisecond precision and decimals use their shortest form, so values
// compare equal across a BSON round trip.
func canonical(v any) ([]byte, error) {
	return json.Marshal(normalize(v))
}

func sameDocument(a, b model.Document) bool {
	x, err := canonical(a)
	if err != nil {
		return false
	}
	y, err := canonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(x, y)
}

func normalize(v any) any {
	switch t := v.(type) {
	case model.Document:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case bson.M:
		return normalizeMap(t)
	case bson.D:
		return normalizeMap(t.Map())
	case []any:
		return normalizeList(t)
	case bson.A:
		return normalizeList(t)
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case time.Time:
		return t.UTC().Truncate(time.Millisecond).Format(time.RFC3339Nano)
	case primitive.DateTime:
		return normalize(t.Time())
	case decimal.Decimal:
		return t.String()
	case primitive.Decimal128:
		if d, err := decimal.NewFromString(t.String()); err == nil {
			return d.String()
		}
		return t.String()
	}
	return v
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalizeList(l []any) []any {
	out := make([]any, len(l))
	for i, v := range l {
		out[i] = normalize(v)
	}
	return out
}

// clone deep-copies maps and lists; leaves are immutable values.
func clone(v any) any {
	switch t := v.(type) {
	case model.Document:
		return model.Document(cloneMap(t))
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = clone(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = clone(v)
	}
	return out
}

// merge applies $set semantics: cur, then filter fields, then doc fields.
func merge(cur, filter, doc model.Document) model.Document {
	out := make(model.Document, len(cur)+len(doc))
	for k, v := range cur {
		out[k] = clone(v)
	}
	for k, v := range filter {
		out[k] = clone(v)
	}
	for k, v := range doc {
		out[k] = clone(v)
	}
	return out
}
