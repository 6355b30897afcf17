package convert

import (
	"log/slog"
	"strings"

	"cdlconv/internal/mapping"
	"cdlconv/internal/sqlast"
)

// RewriteFailedSentinel is returned as the query text when the rewrite stage
// fails after matching succeeded.
const RewriteFailedSentinel = "Unable to rewrite query to the CDL naming scheme"

// Options configures one conversion call.
type Options struct {
	Dialect sqlast.Dialect
	Catalog Catalog
	Logger  *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Response is the outcome of one conversion. The query text is always
// present, possibly the rewrite-failure sentinel; errors are additive
// metadata about identifiers that could not be renamed.
type Response struct {
	Query         string            `json:"query"`
	ColumnMapping map[string]string `json:"column_mapping"`
	TableMapping  map[string]string `json:"table_mapping"`
	Comments      map[string]string `json:"comments"`
	Errors        map[string]Error  `json:"errors"`
}

// Convert rewrites a legacy query into the CDL naming scheme using the
// read-only mapping table. A parse failure is the only unrecoverable error;
// every later stage degrades to a partial result instead of failing the call.
func Convert(query string, table *mapping.Table, opts Options) (*Response, error) {
	logger := opts.logger()

	tree, err := sqlast.Parse(query, opts.Dialect)
	if err != nil {
		return nil, err
	}

	els := Extract(tree)
	QualifyUnmapped(els, table)
	matches, unmapped := FindMappings(els, table, logger)

	converted, replacedColumns, replacedTables := rewriteStage(query, els, matches, table, opts)

	columnMapping, comments := buildMappingAndComments(matches, opts.Catalog)
	tableMapping := buildTableMapping(matches, opts.Catalog)

	mappedKeys := make(map[string]bool, len(columnMapping))
	for k := range columnMapping {
		mappedKeys[strings.ToLower(k)] = true
	}

	errs := buildColumnErrors(els, replacedColumns, mappedKeys, unmapped)
	errs = pruneStale(errs, converted, columnMapping)
	for key, e := range buildTableErrors(els, replacedTables) {
		errs[key] = e
	}

	return &Response{
		Query:         converted,
		ColumnMapping: columnMapping,
		TableMapping:  tableMapping,
		Comments:      comments,
		Errors:        errs,
	}, nil
}

// rewriteStage parses a fresh tree owned exclusively by the rewriter, mutates
// it, and renders the result. On failure it degrades to the sentinel query
// text with empty replaced sets, so mapping and error computation still
// proceed on what was matched.
func rewriteStage(query string, els *Elements, matches []Match, table *mapping.Table, opts Options) (string, map[string]bool, map[string]bool) {
	logger := opts.logger()

	tree, err := sqlast.Parse(query, opts.Dialect)
	if err != nil {
		logger.Error("rewrite stage: reparse failed", "error", err)
		return RewriteFailedSentinel, map[string]bool{}, map[string]bool{}
	}

	replacedColumns := RewriteColumns(tree, els, buildColumnMap(matches), opts.Catalog)
	replacedTables := RewriteTables(tree, buildTableMap(table), opts.Catalog)

	converted, err := tree.Deparse()
	if err != nil {
		logger.Error("rewrite stage: deparse failed", "error", err)
		return RewriteFailedSentinel, map[string]bool{}, map[string]bool{}
	}
	return converted, replacedColumns, replacedTables
}

// buildMappingAndComments builds legacy→target mapping values (catalog
// prefixed) and the comment dictionary keyed by target identifier. Comments
// that are empty or the "-" placeholder are skipped.
func buildMappingAndComments(matches []Match, catalog Catalog) (map[string]string, map[string]string) {
	prefix := catalog.Prefix()
	mappingOut := make(map[string]string, len(matches))
	comments := make(map[string]string)

	for _, m := range matches {
		legacyKey := joinNonEmpty(m.LegacyDB, m.LegacySchema, m.LegacyTable, m.LegacyColumn)
		if legacyKey == "" {
			continue
		}
		target := prefix + joinNonEmpty(m.CDLSchema, m.CDLTable, m.CDLColumn)
		mappingOut[legacyKey] = target

		comment := strings.TrimSpace(m.Comment)
		if comment != "" && comment != mapping.Placeholder {
			comments[target] = m.Comment
		}
	}
	return mappingOut, comments
}

// buildTableMapping builds legacy table → catalog-prefixed target table
// values from the matched rows, deduplicated by the legacy db/schema/table
// triple.
func buildTableMapping(matches []Match, catalog Catalog) map[string]string {
	prefix := catalog.Prefix()
	out := make(map[string]string)
	seen := make(map[[3]string]bool)

	for _, m := range matches {
		triple := [3]string{m.LegacyDB, m.LegacySchema, m.LegacyTable}
		if seen[triple] {
			continue
		}
		seen[triple] = true

		legacyKey := joinNonEmpty(m.LegacyDB, m.LegacySchema, m.LegacyTable)
		target := joinNonEmpty(m.CDLSchema, m.CDLTable)
		if legacyKey == "" || target == "" {
			continue
		}
		out[legacyKey] = prefix + target
	}
	return out
}
