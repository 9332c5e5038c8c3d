package mapping

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dwetl/internal/extract"
	"dwetl/internal/model"
	"dwetl/internal/transform"
)

// applyTransformation runs a named transformation. Unknown names pass the
// value through; Validate rejects them before a run.
func applyTransformation(name string, v any) (any, error) {
	switch name {
	case model.TransformUppercase:
		return strings.ToUpper(text(v)), nil
	case model.TransformLowercase:
		return strings.ToLower(text(v)), nil
	case model.TransformTrim:
		return strings.TrimSpace(text(v)), nil
	case model.TransformParseFloat:
		return toDecimal(v)
	case model.TransformParseInt:
		return toInt(v)
	case model.TransformParseDate:
		return toTime(v)
	case model.TransformFormatDate:
		t, err := toTime(v)
		if err != nil {
			return nil, err
		}
		return model.FormatDate(t), nil
	}
	return v, nil
}

func coerce(dt model.DataType, v any) (any, error) {
	switch dt {
	case model.TypeString:
		return text(v), nil
	case model.TypeNumber:
		return toDecimal(v)
	case model.TypeInteger:
		return toInt(v)
	case model.TypeBoolean:
		return toBool(v), nil
	case model.TypeDate:
		return toTime(v)
	}
	return v, nil
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case decimal.Decimal:
		return t.String()
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		if s, ok := extract.Text(t); ok {
			return s
		}
	}
	return fmt.Sprint(v)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case int64:
		return decimal.NewFromInt(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case bool, time.Time:
		return decimal.Zero, fmt.Errorf("cannot convert %T to number", v)
	}
	return transform.ParseMoney(text(v))
}

func toInt(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case decimal.Decimal:
		return t.IntPart(), nil
	}
	s := strings.TrimSpace(text(v))
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	d, err := toDecimal(v)
	if err != nil {
		return 0, fmt.Errorf("parse integer %q: %w", s, err)
	}
	return d.IntPart(), nil
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	case decimal.Decimal:
		return !t.IsZero()
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	}
	s := strings.TrimSpace(text(v))
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s != ""
}

// toTime is idempotent for time values; numbers are epoch milliseconds.
func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case float64:
		return time.UnixMilli(int64(t)).UTC(), nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return time.UnixMilli(n).UTC(), nil
		}
	}
	return model.ParseISO(text(v))
}
