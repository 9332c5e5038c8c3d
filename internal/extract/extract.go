// Package extract reads source files into their format-native in-memory
// representation. Extractors carry no business semantics.
package extract

import (
	"fmt"
	"os"
)

// Format names used in errors and logs.
const (
	FormatTabular  = "tabular"
	FormatObject   = "structured-object"
	FormatMarkup   = "hierarchical-markup"
	FormatText     = "free-text"
	FormatMetadata = "metadata-object"
)

// ExtractionError reports a source that could not be read or parsed.
type ExtractionError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("extract %s: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("extract %s %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func readFile(format, path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExtractionError{Format: format, Path: path, Err: err}
	}
	return b, nil
}

// withPath fills the path of an ExtractionError returned by a Parse* func.
func withPath(err error, path string) error {
	if ee, ok := err.(*ExtractionError); ok {
		ee.Path = path
		return ee
	}
	return err
}
