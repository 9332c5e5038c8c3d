package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// StructuredObject parses a JSON file into a generic object graph. Numbers
// are kept as json.Number.
func StructuredObject(path string) (any, error) {
	b, err := readFile(FormatObject, path)
	if err != nil {
		return nil, err
	}
	v, err := ParseStructuredObject(b)
	if err != nil {
		return nil, withPath(err, path)
	}
	return v, nil
}

func ParseStructuredObject(data []byte) (any, error) {
	v, err := decodeJSON(data)
	if err != nil {
		return nil, &ExtractionError{Format: FormatObject, Err: err}
	}
	return v, nil
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, fmt.Errorf("decode json: trailing data after top-level value")
	}
	return v, nil
}
