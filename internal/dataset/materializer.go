package dataset

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	domain "dataexplorer/domain/dataset"
)

// Mode selects how delimited lines are split into fields
type Mode string

const (
	// ModeQuoted honours RFC 4180 quoting, so commas inside quoted fields survive
	ModeQuoted Mode = "quoted"
	// ModeNaive splits every line on ',' with no quoting or escaping
	ModeNaive Mode = "naive"
)

// ParseMode maps a config value to a Mode, defaulting to ModeQuoted
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeNaive)) {
		return ModeNaive
	}
	return ModeQuoted
}

// Options controls materialization
type Options struct {
	Mode Mode
	// MaxRows bounds the retained preview; 0 means domain.MaxPreviewRows
	MaxRows int
}

// DefaultOptions returns the quoted parser with the standard preview bound
func DefaultOptions() Options {
	return Options{Mode: ModeQuoted, MaxRows: domain.MaxPreviewRows}
}

// Materializer turns a cleaned delimited-text payload into a bounded preview table
type Materializer struct {
	opts Options
}

// NewMaterializer creates a materializer
func NewMaterializer(opts Options) *Materializer {
	if opts.MaxRows <= 0 {
		opts.MaxRows = domain.MaxPreviewRows
	}
	if opts.Mode == "" {
		opts.Mode = ModeQuoted
	}
	return &Materializer{opts: opts}
}

// Materialize parses raw text with the default options
func Materialize(raw string) (*domain.Table, error) {
	return NewMaterializer(DefaultOptions()).Materialize(raw)
}

// Materialize parses the header and every data line, then keeps the first
// MaxRows rows. Blank lines are ignored everywhere. Empty input yields an empty
// table and no error.
func (m *Materializer) Materialize(raw string) (*domain.Table, error) {
	var records [][]string
	var err error

	switch m.opts.Mode {
	case ModeNaive:
		records = splitNaive(raw)
	default:
		records, err = splitQuoted(raw)
		if err != nil {
			return nil, err
		}
	}

	return m.FromRecords(records), nil
}

// FromRecords builds the table from already-split, non-blank records. The first
// record is the header.
func (m *Materializer) FromRecords(records [][]string) *domain.Table {
	table := &domain.Table{Columns: domain.ColumnSet{}, Rows: []domain.CleanedRow{}}
	if len(records) == 0 {
		return table
	}

	table.Columns = uniqueColumns(records[0])
	table.TotalRows = len(records) - 1

	limit := table.TotalRows
	if limit > m.opts.MaxRows {
		limit = m.opts.MaxRows
	}
	table.Rows = make([]domain.CleanedRow, 0, limit)
	for _, fields := range records[1 : 1+limit] {
		table.Rows = append(table.Rows, domain.NewRow(table.Columns, fields))
	}
	return table
}

func splitNaive(raw string) [][]string {
	var records [][]string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		records = append(records, strings.Split(line, ","))
	}
	return records
}

// splitQuoted reads each physical line on its own so an unterminated quote
// can never swallow the lines after it.
func splitQuoted(raw string) ([][]string, error) {
	var records [][]string
	for n, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		reader := csv.NewReader(strings.NewReader(line))
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		record, err := reader.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to parse cleaned file at line %d: %w", n+1, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// uniqueColumns keeps header order and renames repeats as name.1, name.2, ...
func uniqueColumns(header []string) domain.ColumnSet {
	columns := make(domain.ColumnSet, 0, len(header))
	used := make(map[string]bool, len(header))
	for _, name := range header {
		candidate := name
		for n := 1; used[candidate]; n++ {
			candidate = name + "." + strconv.Itoa(n)
		}
		used[candidate] = true
		columns = append(columns, candidate)
	}
	return columns
}
