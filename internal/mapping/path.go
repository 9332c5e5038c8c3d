package mapping

import (
	"strconv"
	"strings"

	"github.com/clbanning/mxj"

	"dwetl/internal/extract"
	"dwetl/internal/model"
)

// Resolve walks a dotted path through nested maps and lists. Numeric
// segments index lists. A nil value at the end counts as missing.
func Resolve(record any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	// flat records may carry dotted column names
	if v, ok := field(record, path); ok {
		return v, v != nil
	}
	cur := record
	for _, seg := range strings.Split(path, ".") {
		v, ok := field(cur, seg)
		if !ok || v == nil {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func field(node any, key string) (any, bool) {
	switch t := node.(type) {
	case map[string]any:
		v, ok := t[key]
		return v, ok
	case model.Document:
		v, ok := t[key]
		return v, ok
	case mxj.Map:
		v, ok := t[key]
		return v, ok
	case extract.Row:
		v, ok := t[key]
		return v, ok
	case map[string]string:
		v, ok := t[key]
		return v, ok
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(t) {
			return nil, false
		}
		return t[i], true
	}
	return nil, false
}
