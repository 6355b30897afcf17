// Package mapping holds the legacy→CDL identifier mapping table and its
// loaders. The table is read-only input shared across conversions: the engine
// builds its own per-call lookup structures from it and never mutates it.
package mapping

import (
	"fmt"
	"strings"
)

// Placeholder is the value mapping authors use to mark "no target".
const Placeholder = "-"

// Row is one mapping-table entry. Legacy components identify the identifier
// being migrated away from; CDL components name its canonical replacement.
type Row struct {
	LegacyDB     string
	LegacySchema string
	LegacyTable  string
	LegacyColumn string
	CDLSchema    string
	CDLTable     string
	CDLColumn    string
	Comment      string
}

// HasCDLColumn reports whether the row carries a usable target column name.
func (r Row) HasCDLColumn() bool {
	v := strings.TrimSpace(r.CDLColumn)
	return v != "" && v != Placeholder
}

// HasComment reports whether the row carries a non-placeholder comment.
func (r Row) HasComment() bool {
	v := strings.TrimSpace(r.Comment)
	return v != "" && v != Placeholder
}

// Table is an ordered, immutable collection of mapping rows.
type Table struct {
	rows []Row
}

// New builds a Table from rows. The slice is copied.
func New(rows []Row) *Table {
	t := &Table{rows: make([]Row, len(rows))}
	copy(t.rows, rows)
	return t
}

// Rows returns the mapping rows in file order.
func (t *Table) Rows() []Row { return t.rows }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// HasColumn reports whether any row maps the given legacy table/column pair
// (case-insensitive).
func (t *Table) HasColumn(table, column string) bool {
	for _, r := range t.rows {
		if strings.EqualFold(r.LegacyTable, table) && strings.EqualFold(r.LegacyColumn, column) {
			return true
		}
	}
	return false
}

// The eight logical columns a mapping file must provide. Header matching is
// case-insensitive and extra columns are ignored.
const (
	headerLegacyDB     = "legacy db"
	headerLegacySchema = "legacy schema"
	headerLegacyTable  = "legacy table"
	headerLegacyColumn = "legacy column"
	headerCDLSchema    = "cdl-stc schema"
	headerCDLTable     = "cdl-stc table"
	headerCDLColumn    = "cdl-stc column"
	headerComment      = "comment"
)

var requiredHeaders = []string{
	headerLegacyDB, headerLegacySchema, headerLegacyTable, headerLegacyColumn,
	headerCDLSchema, headerCDLTable, headerCDLColumn, headerComment,
}

// headerIndex maps logical column names to their position in the header row.
func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, h := range requiredHeaders {
		if _, ok := idx[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("mapping file is missing required columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

// cell returns the trimmed value at the logical column, or "" when the record
// is too short.
func cell(record []string, idx map[string]int, name string) string {
	i := idx[name]
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func rowFromRecord(record []string, idx map[string]int) Row {
	return Row{
		LegacyDB:     cell(record, idx, headerLegacyDB),
		LegacySchema: cell(record, idx, headerLegacySchema),
		LegacyTable:  cell(record, idx, headerLegacyTable),
		LegacyColumn: cell(record, idx, headerLegacyColumn),
		CDLSchema:    cell(record, idx, headerCDLSchema),
		CDLTable:     cell(record, idx, headerCDLTable),
		CDLColumn:    cell(record, idx, headerCDLColumn),
		Comment:      cell(record, idx, headerComment),
	}
}

func emptyRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
