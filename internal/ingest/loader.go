package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rpattn/labetl/internal/domain"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned when a source file extension is not supported.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// LoadTable reads a delimited source file into a table of string cells.
// Tab-delimited text (.csv/.tsv/.txt) and .xlsx workbooks are supported.
// Every literal comma and tab is stripped from header names and cell values;
// stray delimiters in the extracts are artifacts, not data. Type inference
// happens downstream in the pipeline.
func LoadTable(path string) (domain.Table, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return domain.Table{}, &domain.IngestError{Source: path, Err: err}
	}
	if len(payload) == 0 {
		return domain.Table{}, &domain.IngestError{Source: path, Err: errors.New("file is empty")}
	}

	records, err := parseRecords(path, payload)
	if err != nil {
		return domain.Table{}, &domain.IngestError{Source: path, Err: err}
	}

	table, err := buildTable(records)
	if err != nil {
		return domain.Table{}, &domain.IngestError{Source: path, Err: err}
	}
	return table, nil
}

func parseRecords(path string, payload []byte) ([][]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv", ".tsv", ".txt":
		return parseDelimited(payload)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseDelimited(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.Comma = '\t'
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read delimited text: %w", err)
	}
	return records, nil
}

func parseExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return rows, nil
}

func buildTable(records [][]string) (domain.Table, error) {
	var headerRow []string
	var dataRows [][]string
	for _, row := range records {
		if isEmptyRow(row) {
			continue
		}
		if headerRow == nil {
			headerRow = row
			continue
		}
		dataRows = append(dataRows, row)
	}
	if headerRow == nil {
		return domain.Table{}, errors.New("no header row detected")
	}

	columns := make([]domain.Column, len(headerRow))
	for i, name := range headerRow {
		columns[i] = domain.Column{Name: cleanCell(name), Type: domain.TypeString}
	}

	table := domain.NewTable(columns)
	for _, row := range dataRows {
		cells := make([]any, len(columns))
		for i := range columns {
			if i < len(row) {
				cells[i] = cleanCell(row[i])
			} else {
				cells[i] = ""
			}
		}
		table = table.AppendRow(cells)
	}
	return table, nil
}

// cleanCell strips every literal comma and tab, then surrounding whitespace.
func cleanCell(value string) string {
	value = strings.ReplaceAll(value, ",", "")
	value = strings.ReplaceAll(value, "\t", "")
	return strings.TrimSpace(value)
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
