package dataset

// MaxPreviewRows bounds the cleaned-table preview. It is a display bound, not a
// correctness bound: every row is parsed, only the first MaxPreviewRows are kept.
const MaxPreviewRows = 20

// ColumnSet is the ordered, unique list of column names declared by a header
type ColumnSet []string

// Contains reports whether name is one of the columns
func (c ColumnSet) Contains(name string) bool {
	return c.Index(name) >= 0
}

// Index returns the position of name, or -1
func (c ColumnSet) Index(name string) int {
	for i, col := range c {
		if col == name {
			return i
		}
	}
	return -1
}

// First returns the first column, if any
func (c ColumnSet) First() (string, bool) {
	if len(c) == 0 {
		return "", false
	}
	return c[0], true
}

// Clone returns an independent copy
func (c ColumnSet) Clone() ColumnSet {
	if c == nil {
		return nil
	}
	out := make(ColumnSet, len(c))
	copy(out, c)
	return out
}

// Cell is one value of a cleaned row. Valid is false when the source line had
// fewer fields than the header and the value is absent.
type Cell struct {
	Column string `json:"column"`
	Value  string `json:"value"`
	Valid  bool   `json:"valid"`
}

// CleanedRow maps every column of the header, in header order, to a cell
type CleanedRow []Cell

// Get returns the value for column and whether it is present
func (r CleanedRow) Get(column string) (string, bool) {
	for _, cell := range r {
		if cell.Column == column {
			return cell.Value, cell.Valid
		}
	}
	return "", false
}

// Values returns the cell values in column order; absent cells are empty strings
func (r CleanedRow) Values() []string {
	out := make([]string, len(r))
	for i, cell := range r {
		out[i] = cell.Value
	}
	return out
}

// Table is the bounded in-memory preview of a cleaned file
type Table struct {
	Columns   ColumnSet    `json:"columns"`
	Rows      []CleanedRow `json:"rows"`
	TotalRows int          `json:"total_rows"` // data rows parsed before truncation
}

// IsEmpty reports whether the table has no columns and no rows
func (t *Table) IsEmpty() bool {
	return t == nil || (len(t.Columns) == 0 && len(t.Rows) == 0)
}

// Truncated reports whether rows were dropped by the preview bound
func (t *Table) Truncated() bool {
	return t != nil && t.TotalRows > len(t.Rows)
}

// Clone deep-copies the table
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	rows := make([]CleanedRow, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = append(CleanedRow(nil), row...)
	}
	return &Table{Columns: t.Columns.Clone(), Rows: rows, TotalRows: t.TotalRows}
}

// NewRow aligns positional fields to the header: missing trailing fields become
// absent cells and extra trailing fields are dropped.
func NewRow(columns ColumnSet, fields []string) CleanedRow {
	row := make(CleanedRow, len(columns))
	for i, col := range columns {
		row[i].Column = col
		if i < len(fields) {
			row[i].Value = fields[i]
			row[i].Valid = true
		}
	}
	return row
}
