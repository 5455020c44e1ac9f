// Package spreadsheet decodes uploaded reference-value workbooks into a plain
// header/rows table. Excel workbooks (xlsx, xlsm) are read from their first
// sheet; CSV is accepted as a plain-text alternative.
package spreadsheet

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

// Format identifies the container format of an upload.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var zipSignature = []byte("PK\x03\x04")

// ErrEmpty is returned when the upload carries no header row.
var ErrEmpty = errors.New("spreadsheet has no header row")

// Table is the decoded first sheet. Every row has exactly len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of the named column, or -1.
func (t Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Missing reports which of the required columns are absent from the header,
// in the order they were requested.
func (t Table) Missing(required ...string) []string {
	var out []string
	for _, name := range required {
		if t.Index(name) < 0 {
			out = append(out, name)
		}
	}
	return out
}

// Detect picks a format from the filename extension, falling back to the
// content signature.
func Detect(filename string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".csv":
		return FormatCSV
	}
	if bytes.HasPrefix(data, zipSignature) {
		return FormatXLSX
	}
	return FormatCSV
}

// Parse decodes data according to Detect(filename, data).
func Parse(filename string, data []byte) (Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch Detect(filename, data) {
	case FormatXLSX:
		rows, err = readWorkbook(data)
	default:
		rows, err = readCSV(data)
	}
	if err != nil {
		return Table{}, err
	}
	return normalize(rows)
}

func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func normalize(rows [][]string) (Table, error) {
	if len(rows) == 0 {
		return Table{}, ErrEmpty
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	for len(header) > 0 && header[len(header)-1] == "" {
		header = header[:len(header)-1]
	}
	if len(header) == 0 {
		return Table{}, ErrEmpty
	}
	out := Table{Header: header, Rows: make([][]string, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		cells := make([]string, len(header))
		copy(cells, row)
		out.Rows = append(out.Rows, cells)
	}
	return out, nil
}

// Blank reports whether every cell in row is empty after trimming.
func Blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
