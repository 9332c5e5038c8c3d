package pipeline

import "dwetl/internal/model"

var defaultMappings = map[string][]model.DataMapping{
	model.CollectionProducts: {
		{SourceField: "id", TargetField: "productId", DataType: model.TypeString, Required: true},
		{SourceField: "product_name", TargetField: "name", DataType: model.TypeString, Required: true},
		{SourceField: "category", TargetField: "category", DataType: model.TypeString, Required: true},
		{SourceField: "price", TargetField: "price", DataType: model.TypeNumber, Required: true},
		{SourceField: "quantity", TargetField: "quantity", DataType: model.TypeInteger, Required: true},
		{SourceField: "created_at", TargetField: "createdAt", DataType: model.TypeDate, Transformation: model.TransformParseDate, Required: true},
	},
	model.CollectionCustomers: {
		{SourceField: "customerId", TargetField: "customerId", DataType: model.TypeString, Required: true},
		{SourceField: "name", TargetField: "name", DataType: model.TypeString, Required: true},
		{SourceField: "email", TargetField: "email", DataType: model.TypeString, Required: true},
		{SourceField: "phone", TargetField: "phone", DataType: model.TypeString},
		{SourceField: "address.city", TargetField: "city", DataType: model.TypeString},
		{SourceField: "address.country", TargetField: "country", DataType: model.TypeString},
		{SourceField: "registrationDate", TargetField: "registrationDate", DataType: model.TypeDate, Transformation: model.TransformParseDate, Required: true},
		{SourceField: "preferences.newsletter", TargetField: "newsletter", DataType: model.TypeBoolean},
		{SourceField: "preferences.language", TargetField: "language", DataType: model.TypeString},
	},
}

// DefaultMappings returns a copy of the default mapping registry, keyed by
// target collection.
func DefaultMappings() map[string][]model.DataMapping {
	out := make(map[string][]model.DataMapping, len(defaultMappings))
	for k, v := range defaultMappings {
		out[k] = append([]model.DataMapping(nil), v...)
	}
	return out
}

// DefaultMapping returns a copy of the default mappings for coll.
func DefaultMapping(coll string) ([]model.DataMapping, bool) {
	v, ok := defaultMappings[coll]
	if !ok {
		return nil, false
	}
	return append([]model.DataMapping(nil), v...), true
}
