// Package transform converts extractor output into canonical entities.
// Every function here is pure; only SalesReport reads the clock, through Now.
package transform

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Now returns the current time. Split for testability.
var Now = func() time.Time { return time.Now().UTC() }

// TransformationError reports a required shape or coercion that failed.
// Index is the position of the offending record, or -1.
type TransformationError struct {
	Entity string
	Index  int
	Field  string
	Err    error
}

func (e *TransformationError) Error() string {
	switch {
	case e.Index >= 0 && e.Field != "":
		return fmt.Sprintf("transform %s[%d].%s: %v", e.Entity, e.Index, e.Field, e.Err)
	case e.Index >= 0:
		return fmt.Sprintf("transform %s[%d]: %v", e.Entity, e.Index, e.Err)
	default:
		return fmt.Sprintf("transform %s: %v", e.Entity, e.Err)
	}
}

func (e *TransformationError) Unwrap() error { return e.Err }

var errMissing = fmt.Errorf("required field is missing")

// ParseMoney parses a decimal that may carry thousands separators and a
// leading currency sign.
func ParseMoney(s string) (decimal.Decimal, error) {
	v := strings.TrimSpace(s)
	v = strings.TrimPrefix(v, "$")
	v = strings.ReplaceAll(v, ",", "")
	v = strings.TrimSuffix(v, ".")
	if v == "" {
		return decimal.Zero, fmt.Errorf("parse decimal: empty value")
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}

// ParseCount parses a whole number.
func ParseCount(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse integer %q: %w", s, err)
	}
	return n, nil
}

// scalarText renders a JSON leaf as text; ok is false for objects, arrays
// and null.
func scalarText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}
