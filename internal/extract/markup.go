package extract

import (
	"fmt"

	"github.com/clbanning/mxj"
)

// Markup parses an XML file into a navigable map tree. The tree keeps the
// parser's shape: an element that occurs once is a single node, an element
// that repeats is a []any. Use List when reading repeatable elements.
func Markup(path string) (mxj.Map, error) {
	b, err := readFile(FormatMarkup, path)
	if err != nil {
		return nil, err
	}
	m, err := ParseMarkup(b)
	if err != nil {
		return nil, withPath(err, path)
	}
	return m, nil
}

func ParseMarkup(data []byte) (mxj.Map, error) {
	m, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, &ExtractionError{Format: FormatMarkup, Err: fmt.Errorf("decode xml: %w", err)}
	}
	return m, nil
}

// List returns v as a sequence: nil is empty, a []any is returned as is and
// any other node becomes a one-element slice.
func List(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}

// Node returns v as an element map. mxj yields map[string]any for nested
// elements; mxj.Map appears only at the root.
func Node(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case mxj.Map:
		return map[string]any(t), true
	}
	return nil, false
}

// Text returns the character data of a leaf element. Elements that carry
// attributes keep their text under "#text".
func Text(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case map[string]any:
		if s, ok := t["#text"].(string); ok {
			return s, true
		}
	case []any:
		if len(t) > 0 {
			return Text(t[0])
		}
	}
	return "", false
}
