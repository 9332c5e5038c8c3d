package model

import (
	"fmt"
	"strings"
	"time"
)

// SourceType is the closed set of source shapes the pipeline can ingest.
type SourceType string

const (
	SourceTabular            SourceType = "tabular"
	SourceStructuredObject   SourceType = "structured-object"
	SourceHierarchicalMarkup SourceType = "hierarchical-markup"
	SourceFreeText           SourceType = "free-text"
	SourceMetadataObject     SourceType = "metadata-object"
)

// SourceTypes lists every SourceType in routing order.
var SourceTypes = []SourceType{
	SourceTabular,
	SourceStructuredObject,
	SourceHierarchicalMarkup,
	SourceFreeText,
	SourceMetadataObject,
}

var sourceAliases = map[string]SourceType{
	"csv":      SourceTabular,
	"xlsx":     SourceTabular,
	"json":     SourceStructuredObject,
	"xml":      SourceHierarchicalMarkup,
	"txt":      SourceFreeText,
	"text":     SourceFreeText,
	"metadata": SourceMetadataObject,
}

// ParseSourceType accepts the canonical names and the short file-format
// aliases (csv, json, xml, txt, metadata).
func ParseSourceType(s string) (SourceType, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, st := range SourceTypes {
		if string(st) == v {
			return st, nil
		}
	}
	if st, ok := sourceAliases[v]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown source type %q", s)
}

// UnmarshalText lets run requests carry either canonical names or aliases.
func (s *SourceType) UnmarshalText(b []byte) error {
	st, err := ParseSourceType(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Collection names managed by the warehouse.
const (
	CollectionProducts     = "products"
	CollectionCustomers    = "customers"
	CollectionOrders       = "orders"
	CollectionSalesReports = "salesReports"
	CollectionMetadata     = "metadata"
)

// Collections lists the managed collections.
var Collections = []string{
	CollectionProducts,
	CollectionCustomers,
	CollectionOrders,
	CollectionSalesReports,
	CollectionMetadata,
}

type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// DataType is the coercion target of a DataMapping.
type DataType string

const (
	TypeString  DataType = "string"
	TypeNumber  DataType = "number"
	TypeInteger DataType = "integer"
	TypeBoolean DataType = "boolean"
	TypeDate    DataType = "date"
)

// Named transformations a DataMapping may apply before coercion.
const (
	TransformUppercase  = "uppercase"
	TransformLowercase  = "lowercase"
	TransformTrim       = "trim"
	TransformParseFloat = "parseFloat"
	TransformParseInt   = "parseInt"
	TransformParseDate  = "parseDate"
	TransformFormatDate = "formatDate"
)

// DataMapping maps one dotted source path to one target field.
type DataMapping struct {
	SourceField    string   `json:"sourceField" yaml:"sourceField"`
	TargetField    string   `json:"targetField" yaml:"targetField"`
	DataType       DataType `json:"dataType" yaml:"dataType"`
	Transformation string   `json:"transformation,omitempty" yaml:"transformation,omitempty"`
	Required       bool     `json:"required" yaml:"required"`
}

// ETLProcess describes one run. It lives only as long as the run.
type ETLProcess struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	SourceType       SourceType    `json:"sourceType"`
	SourcePath       string        `json:"sourcePath"`
	TargetCollection string        `json:"targetCollection"`
	Mappings         []DataMapping `json:"mappings,omitempty"`
	Status           RunStatus     `json:"status"`
	StartedAt        *time.Time    `json:"startedAt,omitempty"`
	CompletedAt      *time.Time    `json:"completedAt,omitempty"`
	RecordsProcessed int           `json:"recordsProcessed"`
	Error            string        `json:"error,omitempty"`
}

// ETLResult summarizes a load or a whole run. Duration is in milliseconds.
type ETLResult struct {
	Success          bool     `json:"success"`
	RecordsProcessed int      `json:"recordsProcessed"`
	RecordsInserted  int      `json:"recordsInserted"`
	RecordsUpdated   int      `json:"recordsUpdated"`
	Errors           []string `json:"errors"`
	Duration         int64    `json:"duration"`
}

// FailedResult is the single-error, zero-count result of a fatal run.
func FailedResult(err error) ETLResult {
	return ETLResult{Success: false, Errors: []string{err.Error()}}
}
