package pipeline

import (
	"github.com/clbanning/mxj"

	"dwetl/internal/extract"
	"dwetl/internal/mapping"
	"dwetl/internal/model"
	"dwetl/internal/transform"
)

// route runs the extract and transform stages of one source type and,
// when mappings are given, the mapping stage.
type route interface {
	format() string
	run(path, name string, mappings []model.DataMapping) ([]model.Record, error)
}

// typedRoute pairs an extractor with the transformer for its output. When
// raw is set, mappings read the extracted records instead of the
// transformer output.
type typedRoute[S any] struct {
	name      string
	extract   func(path string) (S, error)
	transform func(src S, source string) ([]model.Record, error)
	raw       func(src S) []any
}

func (r typedRoute[S]) format() string { return r.name }

func (r typedRoute[S]) run(path, name string, mappings []model.DataMapping) ([]model.Record, error) {
	src, err := r.extract(path)
	if err != nil {
		return nil, err
	}
	if len(mappings) > 0 && r.raw != nil {
		return mapRecords(r.raw(src), mappings, name)
	}
	recs, err := r.transform(src, name)
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return recs, nil
	}
	in := make([]any, len(recs))
	for i, rec := range recs {
		in[i] = rec.Document()
	}
	return mapRecords(in, mappings, name)
}

func mapRecords(in []any, mappings []model.DataMapping, name string) ([]model.Record, error) {
	docs, err := mapping.Apply(in, mappings)
	if err != nil {
		return nil, err
	}
	out := make([]model.Record, len(docs))
	for i, d := range docs {
		if _, ok := d["source"]; !ok {
			d["source"] = name
		}
		out[i] = d
	}
	return out, nil
}

func records[T model.Record](xs []T) []model.Record {
	out := make([]model.Record, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func lift[S any, T model.Record](f func(S, string) ([]T, error)) func(S, string) ([]model.Record, error) {
	return func(src S, source string) ([]model.Record, error) {
		xs, err := f(src, source)
		if err != nil {
			return nil, err
		}
		return records(xs), nil
	}
}

// routes is the fixed source type table. Every model.SourceType has an
// entry.
var routes = map[model.SourceType]route{
	model.SourceTabular: typedRoute[[]extract.Row]{
		name:      extract.FormatTabular,
		extract:   extract.Tabular,
		transform: lift(transform.Products),
		raw: func(rows []extract.Row) []any {
			out := make([]any, len(rows))
			for i, r := range rows {
				out[i] = r
			}
			return out
		},
	},
	model.SourceStructuredObject: typedRoute[any]{
		name:      extract.FormatObject,
		extract:   extract.StructuredObject,
		transform: lift(transform.Customers),
		raw:       transform.CustomerEntries,
	},
	model.SourceHierarchicalMarkup: typedRoute[mxj.Map]{
		name:      extract.FormatMarkup,
		extract:   extract.Markup,
		transform: lift(transform.Orders),
	},
	model.SourceFreeText: typedRoute[string]{
		name:    extract.FormatText,
		extract: extract.FreeText,
		transform: func(text, source string) ([]model.Record, error) {
			return []model.Record{transform.SalesReport(text, source)}, nil
		},
	},
	model.SourceMetadataObject: typedRoute[model.Metadata]{
		name:    extract.FormatMetadata,
		extract: extract.MetadataObject,
		transform: func(md model.Metadata, _ string) ([]model.Record, error) {
			return records(transform.MetadataPassthrough(md)), nil
		},
	},
}
