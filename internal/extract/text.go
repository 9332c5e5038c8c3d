package extract

import (
	"errors"
	"unicode/utf8"
)

// FreeText returns the file content unchanged.
func FreeText(path string) (string, error) {
	b, err := readFile(FormatText, path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", &ExtractionError{Format: FormatText, Path: path, Err: errors.New("content is not valid UTF-8")}
	}
	return string(b), nil
}
