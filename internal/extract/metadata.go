package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"dwetl/internal/model"
)

// MetadataObject parses a metadata JSON file and coerces lastUpdated to a
// timestamp.
func MetadataObject(path string) (model.Metadata, error) {
	b, err := readFile(FormatMetadata, path)
	if err != nil {
		return model.Metadata{}, err
	}
	md, err := ParseMetadata(b)
	if err != nil {
		return model.Metadata{}, withPath(err, path)
	}
	return md, nil
}

func ParseMetadata(data []byte) (model.Metadata, error) {
	v, err := decodeJSON(data)
	if err != nil {
		return model.Metadata{}, &ExtractionError{Format: FormatMetadata, Err: err}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return model.Metadata{}, &ExtractionError{Format: FormatMetadata, Err: errors.New("top-level value is not an object")}
	}
	ts, err := timestamp(obj["lastUpdated"])
	if err != nil {
		return model.Metadata{}, &ExtractionError{Format: FormatMetadata, Err: fmt.Errorf("lastUpdated: %w", err)}
	}

	md := model.Metadata{
		Source:      str(obj["source"]),
		Version:     str(obj["version"]),
		LastUpdated: ts,
		Schema:      map[string]any{},
	}
	if s, ok := obj["schema"].(map[string]any); ok {
		md.Schema = s
	}
	if dq, ok := obj["dataQuality"].(map[string]any); ok {
		md.DataQuality = model.DataQuality{
			Completeness: ratio(dq["completeness"]),
			Accuracy:     ratio(dq["accuracy"]),
			Consistency:  ratio(dq["consistency"]),
			Timeliness:   str(dq["timeliness"]),
		}
	}
	if ln, ok := obj["lineage"].(map[string]any); ok {
		md.Lineage = model.Lineage{
			SourceSystem:     str(ln["sourceSystem"]),
			ExtractionMethod: str(ln["extractionMethod"]),
			Frequency:        str(ln["frequency"]),
			Retention:        str(ln["retention"]),
		}
	}
	return md, nil
}

// timestamp accepts ISO-8601 text or epoch milliseconds.
func timestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		return model.ParseISO(t)
	case json.Number:
		ms, err := t.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("epoch millis %s: %w", t, err)
		}
		return time.UnixMilli(ms).UTC(), nil
	case nil:
		return time.Time{}, errors.New("missing")
	}
	return time.Time{}, fmt.Errorf("unsupported value %v", v)
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func ratio(v any) float64 {
	switch t := v.(type) {
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	}
	return 0
}
