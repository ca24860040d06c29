package excel

import (
	"bytes"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the sheet pandas and excelize both write by default
const DefaultSheet = "Sheet1"

// IsWorkbook reports whether a filename names an Excel workbook
func IsWorkbook(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xls":
		return true
	}
	return false
}

// SheetReader reads workbook bytes into string records
type SheetReader struct {
	sheet string
}

// NewSheetReader creates a reader for the named sheet; an empty name means the
// default sheet, falling back to the first sheet in the workbook.
func NewSheetReader(sheet string) *SheetReader {
	return &SheetReader{sheet: sheet}
}

// ReadRecords returns every non-blank row of the sheet. excelize already omits
// trailing empty cells, so short rows stay short.
func (r *SheetReader) ReadRecords(body []byte) ([][]string, error) {
	start := time.Now()
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := r.resolveSheet(f)
	if sheet == "" {
		return nil, nil
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheet, err)
	}

	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		if isBlank(row) {
			continue
		}
		records = append(records, row)
	}

	log.Printf("[SheetReader] %s read in %.2fms (%d records)", sheet, float64(time.Since(start).Nanoseconds())/1e6, len(records))
	return records, nil
}

func (r *SheetReader) resolveSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	want := r.sheet
	if want == "" {
		want = DefaultSheet
	}
	for _, s := range sheets {
		if s == want {
			return s
		}
	}
	if r.sheet == "" && len(sheets) > 0 {
		return sheets[0]
	}
	return ""
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// WriteRecords renders records into a single-sheet workbook
func WriteRecords(records [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, record := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(record))
		for j, v := range record {
			values[j] = v
		}
		if err := f.SetSheetRow(DefaultSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
