package convert

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"cdlconv/internal/mapping"
	"cdlconv/internal/sqlast"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func mustConvert(t *testing.T, query string, table *mapping.Table, catalog Catalog) *Response {
	t.Helper()
	resp, err := Convert(query, table, Options{Catalog: catalog, Logger: testLogger()})
	if err != nil {
		t.Fatalf("Convert(%q) failed: %v", query, err)
	}
	return resp
}

func TestConvert_AliasPreservedTableAndColumnRenamed(t *testing.T) {
	table := mapping.New([]mapping.Row{
		{LegacySchema: "legacy_schema", LegacyTable: "legacy_table", LegacyColumn: "col1",
			CDLSchema: "cdl_schema", CDLTable: "cdl_table", CDLColumn: "cdl_col"},
	})

	resp := mustConvert(t, "SELECT a.col1 FROM legacy_schema.legacy_table a", table, Catalog{})

	assertContains(t, resp.Query, "a.cdl_col")
	assertContains(t, resp.Query, "cdl_schema.cdl_table")
	assertNotContains(t, resp.Query, "legacy_table")
	assertNotContains(t, resp.Query, "col1")

	if got := resp.ColumnMapping["legacy_schema.legacy_table.col1"]; got != "cdl_schema.cdl_table.cdl_col" {
		t.Errorf("column mapping = %q, want cdl_schema.cdl_table.cdl_col", got)
	}
	if got := resp.TableMapping["legacy_schema.legacy_table"]; got != "cdl_schema.cdl_table" {
		t.Errorf("table mapping = %q, want cdl_schema.cdl_table", got)
	}
	if len(resp.Errors) != 0 {
		t.Errorf("expected no errors, got %v", resp.Errors)
	}
}

func TestConvert_CTEOutputAliasResolvesToBase(t *testing.T) {
	table := mapping.New([]mapping.Row{
		{LegacyTable: "tbl", LegacyColumn: "x", CDLSchema: "s2", CDLTable: "t2", CDLColumn: "y2"},
	})

	resp := mustConvert(t, "WITH c AS (SELECT t.x AS y FROM tbl t) SELECT c.y FROM c", table, Catalog{})

	// The CTE body is rewritten; the exposed output alias keeps the outer
	// reference valid.
	assertContains(t, resp.Query, "t.y2")
	assertContains(t, resp.Query, "s2.t2")
	assertContains(t, resp.Query, "c.y")
	assertNotContains(t, resp.Query, "t.x")

	if got := resp.ColumnMapping["tbl.x"]; got != "s2.t2.y2" {
		t.Errorf("column mapping = %q, want s2.t2.y2", got)
	}
	// The CTE name itself has no mapping row and is reported as a table.
	if e, ok := resp.Errors["c"]; !ok || e.Kind != KindTable {
		t.Errorf("expected table error for CTE reference c, got %v", resp.Errors)
	}
	if _, ok := resp.Errors["tbl.x"]; ok {
		t.Errorf("tbl.x was rewritten and must not be reported: %v", resp.Errors)
	}
}

func TestConvert_UnqualifiedColumnUniqueTableMatch(t *testing.T) {
	table := mapping.New([]mapping.Row{
		{LegacyTable: "tbl1", LegacyColumn: "col2", CDLSchema: "cs", CDLTable: "ct1", CDLColumn: "cc2"},
		{LegacyTable: "tbl1", LegacyColumn: "other", CDLSchema: "cs", CDLTable: "ct1", CDLColumn: "co"},
		{LegacyTable: "tbl2", LegacyColumn: "other", CDLSchema: "cs", CDLTable: "ct2", CDLColumn: "co2"},
	})

	resp := mustConvert(t, "SELECT col2 FROM tbl1, tbl2", table, Catalog{})

	assertContains(t, resp.Query, "cc2")
	if got := resp.ColumnMapping["tbl1.col2"]; got != "cs.ct1.cc2" {
		t.Errorf("column mapping = %q, want cs.ct1.cc2", got)
	}
}

func TestConvert_UnqualifiedColumnAmbiguousReported(t *testing.T) {
	table := mapping.New([]mapping.Row{
		{LegacyTable: "tbl1", LegacyColumn: "col2", CDLSchema: "cs", CDLTable: "ct1", CDLColumn: "cc2"},
		{LegacyTable: "tbl2", LegacyColumn: "col2", CDLSchema: "cs", CDLTable: "ct2", CDLColumn: "cc2b"},
	})

	resp := mustConvert(t, "SELECT col2 FROM tbl1, tbl2", table, Catalog{})

	assertContains(t, resp.Query, "col2")
	e, ok := resp.Errors["col2"]
	if !ok {
		t.Fatalf("expected error for ambiguous col2, got %v", resp.Errors)
	}
	if e.Kind != KindColumn {
		t.Errorf("error kind = %q, want column", e.Kind)
	}
}

func TestConvert_PlaceholderTargetReportedAsMappingMissing(t *testing.T) {
	table := mapping.New([]mapping.Row{
		{LegacySchema: "s", LegacyTable: "tb", LegacyColumn: "colx", CDLColumn: "-", Comment: "pending review"},
	})

	resp := mustConvert(t, "SELECT a.colx FROM s.tb a", table, Catalog{})

	e, ok := resp.Errors["s.tb.colx"]
	if !ok {
		t.Fatalf("expected error for s.tb.colx, got %v", resp.Errors)
	}
	if e.Kind != KindColumn || e.Message != reasonMappingMissing {
		t.Errorf("error = %+v, want column/%q", e, reasonMappingMissing)
	}
	if e.Comment != "pending review" {
		t.Errorf("comment = %q, want partial-match comment carried over", e.Comment)
	}
	if _, ok := resp.ColumnMapping["s.tb.colx"]; ok {
		t.Errorf("placeholder target must not appear in column mapping")
	}
}

func TestConvert_UnmappedTableReported(t *testing.T) {
	table := mapping.New([]mapping.Row{
		{LegacyTable: "known", LegacyColumn: "k", CDLSchema: "cs", CDLTable: "ck", CDLColumn: "ck1"},
	})

	resp := mustConvert(t, "SELECT m.v FROM mystery m", table, Catalog{})

	assertContains(t, resp.Query, "mystery")
	e, ok := resp.Errors["mystery"]
	if !ok || e.Kind != KindTable {
		t.Fatalf("expected table error for mystery, got %v", resp.Errors)
	}
}

func TestConvert_CatalogPrefixAppliedToMappingsAndTables(t *testing.T) {
	table := mapping.New([]mapping.Row{
		{LegacySchema: "ls", LegacyTable: "lt", LegacyColumn: "c", CDLSchema: "cs", CDLTable: "ct", CDLColumn: "cc"},
	})

	resp := mustConvert(t, "SELECT a.c FROM ls.lt a", table, Catalog{Name: "lake"})

	assertContains(t, resp.Query, "lake.cs.ct")
	if got := resp.ColumnMapping["ls.lt.c"]; got != "lake.cs.ct.cc" {
		t.Errorf("column mapping = %q, want lake.cs.ct.cc", got)
	}
	if got := resp.TableMapping["ls.lt"]; got != "lake.cs.ct" {
		t.Errorf("table mapping = %q, want lake.cs.ct", got)
	}
}

func TestConvert_CommentKeyedByTargetIdentifier(t *testing.T) {
	table := mapping.New([]mapping.Row{
		{LegacySchema: "ls", LegacyTable: "lt", LegacyColumn: "c",
			CDLSchema: "cs", CDLTable: "ct", CDLColumn: "cc", Comment: "deprecated upstream"},
		{LegacySchema: "ls", LegacyTable: "lt", LegacyColumn: "d",
			CDLSchema: "cs", CDLTable: "ct", CDLColumn: "cd", Comment: "-"},
	})

	resp := mustConvert(t, "SELECT a.c, a.d FROM ls.lt a", table, Catalog{})

	if got := resp.Comments["cs.ct.cc"]; got != "deprecated upstream" {
		t.Errorf("comment = %q, want deprecated upstream", got)
	}
	if _, ok := resp.Comments["cs.ct.cd"]; ok {
		t.Errorf("placeholder comment must be skipped")
	}
}

func TestConvert_ParseFailure(t *testing.T) {
	table := mapping.New(nil)
	_, err := Convert("SELEC nope FROM", table, Options{Logger: testLogger()})
	if err == nil {
		t.Fatal("expected parse error")
	}
	var parseErr *sqlast.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *sqlast.ParseError, got %T: %v", err, err)
	}
}

func TestConvert_ErrorsNeverReferenceRewrittenIdentifiers(t *testing.T) {
	table := mapping.New([]mapping.Row{
		{LegacySchema: "ls", LegacyTable: "lt", LegacyColumn: "c", CDLSchema: "cs", CDLTable: "ct", CDLColumn: "cc"},
	})

	resp := mustConvert(t, "SELECT a.c, a.gone FROM ls.lt a", table, Catalog{})

	lower := strings.ToLower(resp.Query)
	for key, e := range resp.Errors {
		if e.Kind != KindColumn {
			continue
		}
		parts := strings.Split(key, ".")
		name := strings.ToLower(parts[len(parts)-1])
		if !strings.Contains(lower, name) {
			t.Errorf("error %q refers to an identifier absent from the output", key)
		}
		if _, mapped := resp.ColumnMapping[key]; mapped {
			t.Errorf("error %q was successfully mapped and must have been pruned", key)
		}
	}
	if _, ok := resp.Errors["ls.lt.gone"]; !ok {
		t.Errorf("expected error for unmapped column gone, got %v", resp.Errors)
	}
}

// --- helpers ---

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}

func assertNotContains(t *testing.T, s, substr string) {
	t.Helper()
	if strings.Contains(s, substr) {
		t.Errorf("expected %q to not contain %q", s, substr)
	}
}
