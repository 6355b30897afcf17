package convert

import (
	"strings"

	"cdlconv/internal/mapping"
	"cdlconv/internal/sqlast"
)

// Catalog configures the optional catalog override applied while rewriting:
// either a fixed target catalog name, or an old→new lookup keyed by the
// lowercased legacy catalog name.
type Catalog struct {
	Name   string
	Lookup map[string]string
}

// resolve maps a legacy catalog name to its replacement. Unknown names pass
// through unchanged when a lookup is configured.
func (c Catalog) resolve(old string) string {
	if len(c.Lookup) > 0 {
		if v, ok := c.Lookup[strings.ToLower(old)]; ok {
			return v
		}
		return old
	}
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return old
}

// Prefix returns "name." when a fixed catalog name is set, for building
// catalog-qualified mapping values.
func (c Catalog) Prefix() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name + "."
	}
	return ""
}

type columnKey struct {
	schema, table, column string
}

type columnTarget struct {
	schema, table, column string
}

// columnMap is the per-conversion column lookup built from matched rows.
// Iteration order (for widened lookups) follows insertion order.
type columnMap struct {
	entries map[columnKey]columnTarget
	order   []columnKey
}

// buildColumnMap derives the (schema, table, column) lookup from matches.
// Keys collide when the same legacy key matched through different aliases;
// entries with a non-empty target column win over empty ones, first match
// otherwise.
func buildColumnMap(matches []Match) *columnMap {
	m := &columnMap{entries: make(map[columnKey]columnTarget, len(matches))}
	for _, match := range matches {
		key := columnKey{
			schema: strings.ToLower(match.LegacySchema),
			table:  strings.ToLower(match.LegacyTable),
			column: strings.ToLower(match.LegacyColumn),
		}
		tgt := columnTarget{schema: match.CDLSchema, table: match.CDLTable, column: match.CDLColumn}
		if existing, ok := m.entries[key]; ok {
			if strings.TrimSpace(existing.column) == "" && strings.TrimSpace(tgt.column) != "" {
				m.entries[key] = tgt
			}
			continue
		}
		m.entries[key] = tgt
		m.order = append(m.order, key)
	}
	return m
}

type tableKey struct {
	schema, table string
}

type tableTarget struct {
	schema, table string
}

// tableMap is the (schema, table) lookup built from the whole mapping table,
// independent of which columns were referenced.
type tableMap struct {
	entries map[tableKey]tableTarget
	order   []tableKey
}

// buildTableMap dedupes by (legacy schema, legacy table), preferring rows
// whose target schema and table are both non-empty; among equally complete
// rows the first in file order wins.
func buildTableMap(table *mapping.Table) *tableMap {
	m := &tableMap{entries: make(map[tableKey]tableTarget)}
	for _, row := range table.Rows() {
		key := tableKey{schema: strings.ToLower(row.LegacySchema), table: strings.ToLower(row.LegacyTable)}
		tgt := tableTarget{schema: row.CDLSchema, table: row.CDLTable}
		existing, ok := m.entries[key]
		if !ok {
			m.entries[key] = tgt
			m.order = append(m.order, key)
			continue
		}
		if targetRank(tgt) > targetRank(existing) {
			m.entries[key] = tgt
		}
	}
	return m
}

func targetRank(t tableTarget) int {
	rank := 0
	if strings.TrimSpace(t.schema) != "" {
		rank++
	}
	if strings.TrimSpace(t.table) != "" {
		rank++
	}
	return rank
}

// RewriteColumns mutates every column node whose lookup key (alias-resolved,
// for lookup purposes only) hits the column map. The emitted alias or table
// qualifier text is never altered; database qualifiers are dropped; catalog
// components are replaced through the catalog override. Returns the replaced
// identifiers in both their pre-qualification and post-rewrite forms.
func RewriteColumns(tree *sqlast.Tree, els *Elements, cmap *columnMap, catalog Catalog) map[string]bool {
	replaced := make(map[string]bool)
	for _, stmt := range tree.Statements() {
		sqlast.WalkColumns(stmt, func(c *sqlast.ColumnRef) {
			rewriteColumn(c, els, cmap, catalog, replaced)
		})
	}
	return replaced
}

func rewriteColumn(c *sqlast.ColumnRef, els *Elements, cmap *columnMap, catalog Catalog, replaced map[string]bool) {
	parts := c.Parts()
	if len(parts) == 0 {
		return
	}
	origLen := len(parts)
	lower := lowerParts(parts)

	var dbName, schemaName, tableName, columnName string
	switch origLen {
	case 4:
		dbName, schemaName, tableName, columnName = lower[0], lower[1], lower[2], lower[3]
	case 3:
		schemaName, tableName, columnName = lower[0], lower[1], lower[2]
	case 2:
		tableName, columnName = lower[0], lower[1]
	default:
		columnName = lower[len(lower)-1]
	}

	// Resolve a table alias for the lookup key only; the emitted qualifier
	// keeps the alias text so downstream references stay valid.
	lookupSchema, lookupTable := schemaName, tableName
	if tableName != "" {
		if real, ok := els.TableAliases[tableName]; ok {
			realParts := strings.Split(real, ".")
			switch len(realParts) {
			case 3:
				dbName, lookupSchema, lookupTable = realParts[0], realParts[1], realParts[2]
			case 2:
				lookupSchema, lookupTable = realParts[0], realParts[1]
			default:
				lookupTable = realParts[0]
			}
		}
	}

	key := columnKey{schema: lookupSchema, table: lookupTable, column: columnName}
	tgt, ok := cmap.entries[key]
	if !ok {
		key, ok = cmap.widen(key)
		if ok {
			tgt = cmap.entries[key]
		}
	}
	if !ok {
		return
	}

	newColumn := strings.TrimSpace(tgt.column)
	switch {
	case tableName != "" && origLen == 4:
		c.SetParts(catalog.resolve(parts[0]), parts[2], newColumn)
	case tableName != "":
		c.SetParts(parts[origLen-2], newColumn)
	default:
		c.SetParts(newColumn)
	}

	replaced[joinNonEmpty(dbName, lookupSchema, lookupTable, columnName)] = true

	post := c.Parts()
	if origLen == 4 {
		// Catalog is not part of the recorded identifier.
		post = post[1:]
	}
	replaced[strings.ToLower(strings.Join(post, "."))] = true
}

// widen relaxes a missed lookup key: first to any entry matching
// (table, column) ignoring schema, then for references carrying neither table
// nor schema to any entry matching the column alone. A widened key is applied
// only when it is unique among candidates.
func (m *columnMap) widen(key columnKey) (columnKey, bool) {
	var candidates []columnKey
	if key.table != "" {
		for _, k := range m.order {
			if k.table == key.table && k.column == key.column {
				candidates = append(candidates, k)
			}
		}
	}
	if len(candidates) == 0 && key.table == "" && key.schema == "" {
		for _, k := range m.order {
			if k.column == key.column {
				candidates = append(candidates, k)
			}
		}
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}
	return columnKey{}, false
}

// RewriteTables mutates every table node whose (schema, table) key hits the
// table map, widening to a bare table-name match when the exact key is
// absent. Schema and table are renamed independently; the catalog is set only
// when both renamed and a fixed catalog name is configured. Returns the
// pre-rewrite fully-qualified identifiers that were replaced.
func RewriteTables(tree *sqlast.Tree, tmap *tableMap, catalog Catalog) map[string]bool {
	replaced := make(map[string]bool)
	for _, stmt := range tree.Statements() {
		sqlast.WalkTables(stmt, func(t *sqlast.TableRef) {
			rewriteTable(t, tmap, catalog, replaced)
		})
	}
	return replaced
}

func rewriteTable(t *sqlast.TableRef, tmap *tableMap, catalog Catalog, replaced map[string]bool) {
	catalogName := strings.ToLower(t.Catalog())
	schemaName := strings.ToLower(t.Schema())
	tableName := strings.ToLower(t.Name())

	key := tableKey{schema: schemaName, table: tableName}
	tgt, ok := tmap.entries[key]
	if !ok {
		// Widen to the first entry matching the table name alone.
		for _, k := range tmap.order {
			if k.table == tableName {
				tgt, ok = tmap.entries[k], true
				break
			}
		}
	}
	if !ok {
		return
	}

	if strings.TrimSpace(tgt.table) != "" {
		t.SetName(tgt.table)
		replaced[joinNonEmpty(catalogName, schemaName, tableName)] = true
	}
	if strings.TrimSpace(tgt.schema) != "" {
		t.SetSchema(tgt.schema)
	}
	if strings.TrimSpace(tgt.schema) != "" && strings.TrimSpace(tgt.table) != "" &&
		strings.TrimSpace(catalog.Name) != "" {
		t.SetCatalog(catalog.Name)
	}
}
