package testkit

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"dataexplorer/adapters/excel"
)

// ErrUnsupportedFileType is reported for uploads that are neither CSV nor Excel
var ErrUnsupportedFileType = errors.New("unsupported file type, upload .csv or .xlsx")

// CleanedFile is the service-side result of cleaning one upload
type CleanedFile struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Records returns the header followed by the data rows
func (f *CleanedFile) Records() [][]string {
	out := make([][]string, 0, len(f.Rows)+1)
	out = append(out, f.Columns)
	return append(out, f.Rows...)
}

// Encode writes the cleaned file in the format its name implies
func (f *CleanedFile) Encode() ([]byte, error) {
	if excel.IsWorkbook(f.Name) {
		return excel.WriteRecords(f.Records())
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(f.Records()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CleanUpload parses an uploaded CSV or workbook, trims header names, and drops
// every row with a missing value.
func CleanUpload(filename string, data []byte) (*CleanedFile, error) {
	var records [][]string
	var err error

	switch ext := strings.ToLower(filepath.Ext(filename)); {
	case ext == ".csv":
		records, err = readCSV(data)
	case excel.IsWorkbook(filename):
		records, err = excel.NewSheetReader("").ReadRecords(data)
	default:
		return nil, ErrUnsupportedFileType
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("file %s has no header row", filename)
	}

	cleaned := &CleanedFile{Name: "cleaned_" + filepath.Base(filename)}
	for _, name := range records[0] {
		cleaned.Columns = append(cleaned.Columns, strings.TrimSpace(name))
	}

	for _, record := range records[1:] {
		if row, ok := completeRow(record, len(cleaned.Columns)); ok {
			cleaned.Rows = append(cleaned.Rows, row)
		}
	}
	return cleaned, nil
}

// completeRow rejects rows with a short or blank cell and drops extra fields
func completeRow(record []string, width int) ([]string, bool) {
	if len(record) < width {
		return nil, false
	}
	row := make([]string, width)
	for i := 0; i < width; i++ {
		if strings.TrimSpace(record[i]) == "" {
			return nil, false
		}
		row[i] = record[i]
	}
	return row, true
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}
