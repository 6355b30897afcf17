// Package convert implements the legacy→CDL query conversion engine: it
// collects table/column references from a parsed query, resolves alias
// indirection down to base identifiers, matches those against the mapping
// table with specificity-ordered fallback, rewrites the tree, and reports
// which identifiers were and were not renamed.
package convert

import "sort"

// Elements accumulates the structural facts extracted from one query. All
// names are lowercased; fully-qualified forms are dotted with missing levels
// omitted. The accumulator lives for a single conversion call.
type Elements struct {
	// Columns are fully-qualified column references observed in the query.
	Columns map[string]bool
	// Tables are fully-qualified table references (catalog.schema.table).
	Tables map[string]bool
	// Schemas and Databases are the observed schema/database names.
	Schemas   map[string]bool
	Databases map[string]bool
	// TableAliases maps alias name → fully-qualified table.
	TableAliases map[string]string
	// forward maps an alias-like reference (alias-qualified column, CTE
	// output column) → the identifier or raw expression it stands for.
	// Entries may chain through each other.
	forward map[string]string
	// ColumnAliases maps a base identifier → the alias strings that resolve
	// to it. Derived from forward by the alias resolver.
	ColumnAliases map[string][]string
}

func newElements() *Elements {
	return &Elements{
		Columns:       make(map[string]bool),
		Tables:        make(map[string]bool),
		Schemas:       make(map[string]bool),
		Databases:     make(map[string]bool),
		TableAliases:  make(map[string]string),
		forward:       make(map[string]string),
		ColumnAliases: make(map[string][]string),
	}
}

// merge folds a scope's partial elements into the accumulator: set-union on
// collections, last-write-wins on maps. Scopes are disjoint by construction,
// so map conflicts are not expected.
func (e *Elements) merge(part *Elements) {
	for c := range part.Columns {
		e.Columns[c] = true
	}
	for t := range part.Tables {
		e.Tables[t] = true
	}
	for s := range part.Schemas {
		e.Schemas[s] = true
	}
	for d := range part.Databases {
		e.Databases[d] = true
	}
	for alias, table := range part.TableAliases {
		e.TableAliases[alias] = table
	}
	for ref, target := range part.forward {
		e.forward[ref] = target
	}
}

// sortedColumns returns the observed columns in deterministic order.
func (e *Elements) sortedColumns() []string {
	cols := make([]string, 0, len(e.Columns))
	for c := range e.Columns {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// sortedTables returns the detected tables in deterministic order.
func (e *Elements) sortedTables() []string {
	tables := make([]string, 0, len(e.Tables))
	for t := range e.Tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// sortedBases returns the base identifiers of ColumnAliases in deterministic
// order.
func (e *Elements) sortedBases() []string {
	bases := make([]string, 0, len(e.ColumnAliases))
	for b := range e.ColumnAliases {
		bases = append(bases, b)
	}
	sort.Strings(bases)
	return bases
}
