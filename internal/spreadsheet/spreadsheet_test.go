package spreadsheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestParseWorkbookFirstSheet(t *testing.T) {
	data := workbook(t,
		[]any{"Program", "Batch", "Analyte", "Unit"},
		[]any{"Chemistry", 101, "Glucose", "mg/dL"},
		[]any{"Chemistry", 101.0, "Sodium"},
	)
	table, err := Parse("upload.xlsx", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Program", "Batch", "Analyte", "Unit"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"Chemistry", "101", "Glucose", "mg/dL"}, table.Rows[0])
	assert.Equal(t, "", table.Rows[1][3], "short rows are padded")
	assert.Equal(t, 1, table.Index("Batch"))
	assert.Equal(t, -1, table.Index("batch"))
}

func TestParseSniffsWorkbookWithoutExtension(t *testing.T) {
	data := workbook(t, []any{"Program"}, []any{"Chemistry"})
	assert.Equal(t, FormatXLSX, Detect("blob", data))
	table, err := Parse("blob", data)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Chemistry"}}, table.Rows)
}

func TestParseCSV(t *testing.T) {
	data := []byte("\xef\xbb\xbfProgram, Batch ,Analyte,Unit,\nChemistry,7,Urea,mmol/L\n,,,\n")
	table, err := Parse("seed.csv", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Program", "Batch", "Analyte", "Unit"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.True(t, Blank(table.Rows[1]))
	assert.False(t, Blank(table.Rows[0]))
}

func TestMissingColumnsInRequestOrder(t *testing.T) {
	table := Table{Header: []string{"Batch", "Program"}}
	assert.Equal(t, []string{"Analyte", "Unit"}, table.Missing("Program", "Batch", "Analyte", "Unit"))
	assert.Empty(t, table.Missing("Program"))
}

func TestParseRejectsEmptyAndCorrupt(t *testing.T) {
	_, err := Parse("empty.csv", nil)
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = Parse("broken.xlsx", []byte("PK\x03\x04garbage"))
	assert.Error(t, err)
	_, err = Parse("quotes.csv", []byte("Program\n\"unterminated\n"))
	assert.Error(t, err)
}
