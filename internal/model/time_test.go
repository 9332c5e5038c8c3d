package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseISO_Forms(t *testing.T) {
	cases := map[string]time.Time{
		"2024-01-01":                time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"2024-01-01T10:30:00Z":      time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC),
		"2024-01-01T10:30:00":       time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC),
		"2024-01-01T10:30:00+02:00": time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC),
		"2024-01-01 10:30:00":       time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC),
		" 2024-03 ":                 time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, err := ParseISO(in)
		require.NoError(t, err, in)
		require.True(t, want.Equal(got), "%s: got %s", in, got)
	}
}

func TestParseISO_Rejects(t *testing.T) {
	for _, in := range []string{"", "yesterday", "01/02/2024"} {
		_, err := ParseISO(in)
		require.Error(t, err, in)
	}
}

func TestParseSourceType_Aliases(t *testing.T) {
	for in, want := range map[string]SourceType{
		"csv":                 SourceTabular,
		"JSON":                SourceStructuredObject,
		"xml":                 SourceHierarchicalMarkup,
		"txt":                 SourceFreeText,
		"metadata":            SourceMetadataObject,
		"hierarchical-markup": SourceHierarchicalMarkup,
	} {
		got, err := ParseSourceType(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseSourceType("parquet")
	require.Error(t, err)
}
