package store

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"dwetl/internal/model"
)

// EncodeBSON converts a document into driver types: decimals become
// Decimal128 and times become BSON datetimes.
func EncodeBSON(doc model.Document) bson.M {
	return encodeMap(doc)
}

func encodeMap(m map[string]any) bson.M {
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = encodeValue(v)
	}
	return out
}

func encodeValue(v any) any {
	switch t := v.(type) {
	case model.Document:
		return encodeMap(t)
	case map[string]any:
		return encodeMap(t)
	case []any:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = encodeValue(e)
		}
		return out
	case []string:
		out := make(bson.A, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case decimal.Decimal:
		d, err := primitive.ParseDecimal128(t.String())
		if err != nil {
			return t.String()
		}
		return d
	case time.Time:
		return primitive.NewDateTimeFromTime(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	}
	return v
}

// DecodeBSON converts a decoded BSON document back into plain Go values.
// The MongoDB _id field is dropped.
func DecodeBSON(m bson.M) model.Document {
	doc := model.Document(decodeMap(m))
	delete(doc, "_id")
	return doc
}

func decodeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = decodeValue(v)
	}
	return out
}

func decodeValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return decodeMap(t)
	case map[string]any:
		return decodeMap(t)
	case bson.D:
		return decodeMap(t.Map())
	case bson.A:
		return decodeList(t)
	case []any:
		return decodeList(t)
	case primitive.Decimal128:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return t.String()
		}
		return d
	case primitive.DateTime:
		return t.Time().UTC()
	case int32:
		return int64(t)
	}
	return v
}

func decodeList(l []any) []any {
	out := make([]any, len(l))
	for i, e := range l {
		out[i] = decodeValue(e)
	}
	return out
}

func marshalDocument(doc model.Document) ([]byte, error) {
	return bson.Marshal(EncodeBSON(doc))
}

func unmarshalDocument(b []byte) (model.Document, error) {
	var m bson.M
	if err := bson.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return DecodeBSON(m), nil
}
