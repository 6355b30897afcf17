package convert

import (
	"strings"

	"cdlconv/internal/mapping"
)

// QualifyUnmapped disambiguates columns that are still unqualified after
// collection: for each such column, every detected table is checked against
// the mapping table, and the column is qualified only when exactly one table
// has a row for it. Ambiguous or unmatched columns stay unresolved and
// surface later as errors.
func QualifyUnmapped(els *Elements, table *mapping.Table) {
	resolved := make(map[string]bool, len(els.ColumnAliases))
	for base, aliases := range els.ColumnAliases {
		resolved[base] = true
		for _, a := range aliases {
			resolved[a] = true
		}
	}

	detected := els.sortedTables()
	for _, col := range els.sortedColumns() {
		if resolved[col] || strings.Contains(col, ".") {
			continue
		}
		var matches []string
		for _, tbl := range detected {
			parts := strings.Split(tbl, ".")
			name := parts[len(parts)-1]
			if table.HasColumn(name, col) && !containsString(matches, name) {
				matches = append(matches, name)
			}
		}
		if len(matches) == 1 {
			els.ColumnAliases[matches[0]+"."+col] = []string{col}
		}
	}
}
