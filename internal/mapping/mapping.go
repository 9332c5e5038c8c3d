// Package mapping applies declarative DataMapping specs to source records.
// Apply and ApplyOne are pure and hold no state between calls.
package mapping

import (
	"errors"
	"fmt"
	"strings"

	"dwetl/internal/model"
)

// MissingFieldError reports a required source field that could not be
// resolved. Index is the record position, or -1 outside a batch.
type MissingFieldError struct {
	SourceField string
	Index       int
}

func (e *MissingFieldError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("mapping: required field %q is missing", e.SourceField)
	}
	return fmt.Sprintf("mapping: record %d: required field %q is missing", e.Index, e.SourceField)
}

// CoercionError reports a value that could not be transformed or coerced
// into its target type.
type CoercionError struct {
	TargetField string
	Index       int
	Err         error
}

func (e *CoercionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("mapping: field %q: %v", e.TargetField, e.Err)
	}
	return fmt.Sprintf("mapping: record %d: field %q: %v", e.Index, e.TargetField, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }

// Apply maps every record in order. The first failing record fails the batch.
func Apply(records []any, specs []model.DataMapping) ([]model.Document, error) {
	out := make([]model.Document, 0, len(records))
	for i, rec := range records {
		doc, err := applyAt(i, rec, specs)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// ApplyOne maps a single record.
func ApplyOne(record any, specs []model.DataMapping) (model.Document, error) {
	return applyAt(-1, record, specs)
}

func applyAt(i int, record any, specs []model.DataMapping) (model.Document, error) {
	doc := make(model.Document, len(specs))
	for _, s := range specs {
		v, ok := Resolve(record, s.SourceField)
		if !ok {
			if s.Required {
				return nil, &MissingFieldError{SourceField: s.SourceField, Index: i}
			}
			continue
		}
		if s.Transformation != "" {
			var err error
			if v, err = applyTransformation(s.Transformation, v); err != nil {
				return nil, &CoercionError{TargetField: s.TargetField, Index: i, Err: err}
			}
		}
		v, err := coerce(s.DataType, v)
		if err != nil {
			return nil, &CoercionError{TargetField: s.TargetField, Index: i, Err: err}
		}
		doc[s.TargetField] = v
	}
	return doc, nil
}

var (
	dataTypes = map[model.DataType]bool{
		model.TypeString:  true,
		model.TypeNumber:  true,
		model.TypeInteger: true,
		model.TypeBoolean: true,
		model.TypeDate:    true,
	}
	transformations = map[string]bool{
		model.TransformUppercase:  true,
		model.TransformLowercase:  true,
		model.TransformTrim:       true,
		model.TransformParseFloat: true,
		model.TransformParseInt:   true,
		model.TransformParseDate:  true,
		model.TransformFormatDate: true,
	}
)

// Validate checks specs before a run: field names are set, data types and
// transformations are known and target fields are not repeated.
func Validate(specs []model.DataMapping) error {
	var errs []error
	seen := make(map[string]bool, len(specs))
	for i, s := range specs {
		if strings.TrimSpace(s.SourceField) == "" {
			errs = append(errs, fmt.Errorf("mapping %d: sourceField is empty", i))
		}
		if strings.TrimSpace(s.TargetField) == "" {
			errs = append(errs, fmt.Errorf("mapping %d: targetField is empty", i))
		} else if seen[s.TargetField] {
			errs = append(errs, fmt.Errorf("mapping %d: targetField %q repeated", i, s.TargetField))
		}
		seen[s.TargetField] = true
		if !dataTypes[s.DataType] {
			errs = append(errs, fmt.Errorf("mapping %d: unknown dataType %q", i, s.DataType))
		}
		if s.Transformation != "" && !transformations[s.Transformation] {
			errs = append(errs, fmt.Errorf("mapping %d: unknown transformation %q", i, s.Transformation))
		}
	}
	return errors.Join(errs...)
}
