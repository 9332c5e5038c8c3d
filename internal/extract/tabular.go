package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one tabular record: column name to raw string value.
type Row map[string]string

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Tabular reads a delimited-text file, or the first sheet of an .xlsx
// workbook, into rows keyed by the header row.
func Tabular(path string) ([]Row, error) {
	b, err := readFile(FormatTabular, path)
	if err != nil {
		return nil, err
	}
	var rows []Row
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err = ParseWorkbook(b)
	} else {
		rows, err = ParseTabular(b)
	}
	if err != nil {
		return nil, withPath(err, path)
	}
	return rows, nil
}

// ParseTabular parses comma-delimited text with a header row.
func ParseTabular(data []byte) ([]Row, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []Row{}, nil
		}
		return nil, &ExtractionError{Format: FormatTabular, Err: fmt.Errorf("read header: %w", err)}
	}
	header = trimAll(header)

	rows := make([]Row, 0)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ExtractionError{Format: FormatTabular, Err: fmt.Errorf("read row: %w", err)}
		}
		if row, ok := toRow(header, rec); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// ParseWorkbook reads the first sheet of an .xlsx workbook.
func ParseWorkbook(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ExtractionError{Format: FormatTabular, Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return []Row{}, nil
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ExtractionError{Format: FormatTabular, Err: fmt.Errorf("read sheet %s: %w", sheets[0], err)}
	}
	rows := make([]Row, 0)
	if len(all) == 0 {
		return rows, nil
	}
	header := trimAll(all[0])
	for _, rec := range all[1:] {
		if row, ok := toRow(header, rec); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// toRow zips a record with the header; short records are padded with "".
// Records whose every cell is blank are reported as not ok.
func toRow(header, rec []string) (Row, bool) {
	row := make(Row, len(header))
	blank := true
	for i, col := range header {
		v := ""
		if i < len(rec) {
			v = rec[i]
		}
		if strings.TrimSpace(v) != "" {
			blank = false
		}
		row[col] = v
	}
	return row, !blank
}

func trimAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
