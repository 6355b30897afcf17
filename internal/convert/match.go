package convert

import (
	"log/slog"
	"sort"
	"strings"

	"cdlconv/internal/mapping"
)

// Match is one successful legacy→CDL column match. Legacy components carry
// whatever qualification the matched reference had.
type Match struct {
	LegacyDB     string
	LegacySchema string
	LegacyTable  string
	LegacyColumn string
	CDLSchema    string
	CDLTable     string
	CDLColumn    string
	Comment      string
}

// Unmapped records a base identifier with no usable mapping row. Comment is
// carried over from a partial match (a row that matched the legacy key but
// had an empty or placeholder target).
type Unmapped struct {
	LegacyDB     string
	LegacySchema string
	LegacyTable  string
	LegacyColumn string
	Comment      string
	Reason       string
}

// Identifier joins the non-empty legacy components into a dotted name.
func (u Unmapped) Identifier() string {
	return joinNonEmpty(u.LegacyDB, u.LegacySchema, u.LegacyTable, u.LegacyColumn)
}

// reasonMappingMissing tags identifiers whose mapping row is absent or has a
// placeholder target.
const reasonMappingMissing = "CDL mapping missing"

// FindMappings matches every base identifier in els against the mapping
// table. For each base, the candidate list is the base itself followed by its
// aliases; the first candidate that yields a row with a usable target column
// wins. Bases with no such candidate are returned as unmapped. Ambiguous ties
// between distinct non-empty targets for the same legacy key are resolved by
// the stable sort and logged as a data-quality warning.
func FindMappings(els *Elements, table *mapping.Table, logger *slog.Logger) ([]Match, []Unmapped) {
	var matches []Match
	var unmapped []Unmapped

	for _, base := range els.sortedBases() {
		candidates := append([]string{base}, els.ColumnAliases[base]...)

		matched := false
		partialComment := ""
		for _, ref := range candidates {
			db, schema, tbl, col := splitReference(ref)

			rows := filterRows(table.Rows(), db, schema, tbl, col)
			if len(rows) == 0 {
				continue
			}
			row, ambiguous := selectRow(rows)
			if ambiguous {
				logger.Warn("mapping table has multiple distinct targets for one legacy key",
					"legacy_table", row.LegacyTable, "legacy_column", row.LegacyColumn)
			}
			if !row.HasCDLColumn() {
				if partialComment == "" {
					partialComment = row.Comment
				}
				continue
			}

			matches = append(matches, Match{
				LegacyDB:     db,
				LegacySchema: schema,
				LegacyTable:  tbl,
				LegacyColumn: col,
				CDLSchema:    row.CDLSchema,
				CDLTable:     row.CDLTable,
				CDLColumn:    row.CDLColumn,
				Comment:      row.Comment,
			})
			matched = true
			break
		}

		if !matched {
			db, schema, tbl, col := splitReference(base)
			unmapped = append(unmapped, Unmapped{
				LegacyDB:     db,
				LegacySchema: schema,
				LegacyTable:  tbl,
				LegacyColumn: col,
				Comment:      partialComment,
				Reason:       reasonMappingMissing,
			})
		}
	}

	return matches, unmapped
}

// splitReference parses a dotted reference into up to four components,
// rightmost-anchored: the last part is always the column.
func splitReference(ref string) (db, schema, table, column string) {
	raw := strings.Split(ref, ".")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		parts = append(parts, strings.Trim(p, "`[] \""))
	}
	switch len(parts) {
	case 0:
		return "", "", "", ""
	case 1:
		return "", "", "", parts[0]
	case 2:
		return "", "", parts[0], parts[1]
	case 3:
		return "", parts[0], parts[1], parts[2]
	default:
		return parts[len(parts)-4], parts[len(parts)-3], parts[len(parts)-2], parts[len(parts)-1]
	}
}

// filterRows keeps rows matching every present component case-insensitively.
// The column filter is mandatory; table/schema/db apply only when the
// reference carries them.
func filterRows(rows []mapping.Row, db, schema, table, column string) []mapping.Row {
	var out []mapping.Row
	for _, r := range rows {
		if !strings.EqualFold(r.LegacyColumn, column) {
			continue
		}
		if table != "" && !strings.EqualFold(r.LegacyTable, table) {
			continue
		}
		if schema != "" && !strings.EqualFold(r.LegacySchema, schema) {
			continue
		}
		if db != "" && !strings.EqualFold(r.LegacyDB, db) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// selectRow picks one row deterministically: rows with a usable target column
// sort first (stable, preserving file order otherwise) and the first row of
// the sorted list wins. ambiguous reports whether another row with the same
// legacy key maps to a different non-empty target, which indicates malformed
// mapping data.
func selectRow(rows []mapping.Row) (picked mapping.Row, ambiguous bool) {
	ordered := make([]mapping.Row, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].HasCDLColumn() && !ordered[j].HasCDLColumn()
	})

	picked = ordered[0]
	for _, r := range ordered[1:] {
		if !r.HasCDLColumn() || !picked.HasCDLColumn() {
			continue
		}
		if strings.EqualFold(r.LegacyTable, picked.LegacyTable) &&
			strings.EqualFold(r.LegacyColumn, picked.LegacyColumn) &&
			(r.CDLSchema != picked.CDLSchema || r.CDLTable != picked.CDLTable || r.CDLColumn != picked.CDLColumn) {
			ambiguous = true
			break
		}
	}
	return picked, ambiguous
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ".")
}
