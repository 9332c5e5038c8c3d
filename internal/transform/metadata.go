package transform

import "dwetl/internal/model"

// MetadataPassthrough wraps a parsed metadata object as the single record of
// a metadata run.
func MetadataPassthrough(md model.Metadata) []model.Metadata {
	return []model.Metadata{md}
}
