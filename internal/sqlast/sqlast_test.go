package sqlast

import (
	"errors"
	"strings"
	"testing"
)

func mustParse(t *testing.T, query string) *Tree {
	t.Helper()
	tree, err := Parse(query, DialectPostgres)
	if err != nil {
		t.Fatalf("parse %q: %v", query, err)
	}
	return tree
}

func TestParseDialect(t *testing.T) {
	cases := map[string]bool{
		"":           true,
		"postgres":   true,
		"PostgreSQL": true,
		"ansi":       true,
		"tsql":       false,
		"mysql":      false,
	}
	for in, ok := range cases {
		_, err := ParseDialect(in)
		if ok && err != nil {
			t.Errorf("ParseDialect(%q) = %v, want nil", in, err)
		}
		if !ok && err == nil {
			t.Errorf("ParseDialect(%q) accepted an unsupported dialect", in)
		}
	}
}

func TestParse_InvalidSQL(t *testing.T) {
	_, err := Parse("SELECT FROM WHERE", DialectPostgres)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error %T is not *ParseError", err)
	}
	if perr.Dialect != DialectPostgres {
		t.Errorf("ParseError.Dialect = %q", perr.Dialect)
	}
}

func TestParseDeparseRoundTrip(t *testing.T) {
	tree := mustParse(t, "SELECT a.x, b.y FROM t1 a JOIN t2 b ON a.id = b.id WHERE a.x > 1")
	out, err := tree.Deparse()
	if err != nil {
		t.Fatalf("deparse: %v", err)
	}
	for _, want := range []string{"a.x", "b.y", "t1", "t2"} {
		if !strings.Contains(out, want) {
			t.Errorf("deparsed %q missing %q", out, want)
		}
	}
}

func TestWalkTables(t *testing.T) {
	tree := mustParse(t, `
		WITH c AS (SELECT x FROM inner_t)
		SELECT * FROM outer_t o
		JOIN c ON true
		JOIN (SELECT 1 AS n FROM sub_t) s ON true
		WHERE o.id IN (SELECT id FROM where_t)`)

	var names []string
	for _, stmt := range tree.Statements() {
		WalkTables(stmt, func(ref *TableRef) {
			names = append(names, ref.Name())
		})
	}
	for _, want := range []string{"inner_t", "outer_t", "sub_t", "where_t", "c"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("WalkTables missed %q, got %v", want, names)
		}
	}
}

func TestWalkColumns_CoversClauses(t *testing.T) {
	tree := mustParse(t, `
		SELECT t.sel, count(t.agg) FROM tab t
		WHERE t.wh = 1
		GROUP BY t.grp
		HAVING count(t.hav) > 0
		ORDER BY t.ord`)

	seen := map[string]bool{}
	for _, stmt := range tree.Statements() {
		WalkColumns(stmt, func(c *ColumnRef) {
			seen[strings.Join(c.Parts(), ".")] = true
		})
	}
	for _, want := range []string{"t.sel", "t.agg", "t.wh", "t.grp", "t.hav", "t.ord"} {
		if !seen[want] {
			t.Errorf("WalkColumns missed %q, got %v", want, seen)
		}
	}
}

func TestColumnRef_SetParts(t *testing.T) {
	tree := mustParse(t, "SELECT a.b.c FROM x")
	var ref *ColumnRef
	for _, stmt := range tree.Statements() {
		WalkColumns(stmt, func(c *ColumnRef) { ref = c })
	}
	if ref == nil {
		t.Fatal("no column found")
	}

	ref.SetParts("t", "new_col")
	out, err := tree.Deparse()
	if err != nil {
		t.Fatalf("deparse: %v", err)
	}
	if !strings.Contains(out, "t.new_col") {
		t.Errorf("mutation not reflected in deparse: %q", out)
	}
}

func TestColumnRef_Wildcard(t *testing.T) {
	tree := mustParse(t, "SELECT t.* FROM t")
	var ref *ColumnRef
	for _, stmt := range tree.Statements() {
		WalkColumns(stmt, func(c *ColumnRef) { ref = c })
	}
	if ref == nil {
		t.Fatal("no column found")
	}
	if !ref.IsWildcard() {
		t.Error("t.* should report IsWildcard")
	}
	parts := ref.Parts()
	if len(parts) != 2 || parts[1] != "*" {
		t.Errorf("Parts() = %v", parts)
	}
}

func TestTableRef_Mutation(t *testing.T) {
	tree := mustParse(t, "SELECT 1 FROM old_schema.old_table x")
	for _, stmt := range tree.Statements() {
		WalkTables(stmt, func(ref *TableRef) {
			ref.SetSchema("new_schema")
			ref.SetName("new_table")
			ref.SetCatalog("cat")
		})
	}
	out, err := tree.Deparse()
	if err != nil {
		t.Fatalf("deparse: %v", err)
	}
	if !strings.Contains(out, "cat.new_schema.new_table") {
		t.Errorf("table mutation not reflected: %q", out)
	}
	if !strings.Contains(out, " x") {
		t.Errorf("alias dropped by the rewrite: %q", out)
	}
}

func TestBranches(t *testing.T) {
	tree := mustParse(t, "SELECT a FROM t1 UNION SELECT b FROM t2 UNION SELECT c FROM t3")
	stmts := tree.Statements()
	if len(stmts) != 1 {
		t.Fatalf("statements = %d", len(stmts))
	}
	branches := Branches(stmts[0])
	if len(branches) != 2 {
		t.Fatalf("top-level union should yield two branches, got %d", len(branches))
	}
	// Left branch is itself a set operation with further branches.
	if nested := Branches(branches[0]); len(nested) != 2 {
		t.Errorf("nested union should yield two branches, got %d", len(nested))
	}
}

func TestCTEs_DocumentOrderIncludesNested(t *testing.T) {
	tree := mustParse(t, `
		WITH a AS (SELECT 1 AS x),
		     b AS (WITH inner_cte AS (SELECT 2 AS y) SELECT y FROM inner_cte)
		SELECT * FROM a, b`)
	stmts := tree.Statements()
	ctes := CTEs(stmts[0])

	var names []string
	for _, c := range ctes {
		names = append(names, c.Name)
	}
	want := []string{"a", "b", "inner_cte"}
	if len(names) != len(want) {
		t.Fatalf("CTE names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("CTE names = %v, want %v", names, want)
		}
	}
}

func TestCTE_Outputs(t *testing.T) {
	tree := mustParse(t, "WITH c AS (SELECT t.x AS renamed, t.y, upper(t.z) AS computed, * FROM t) SELECT 1 FROM c")
	ctes := CTEs(tree.Statements()[0])
	if len(ctes) != 1 {
		t.Fatalf("ctes = %d", len(ctes))
	}
	outs := ctes[0].Outputs()

	byName := map[string]Output{}
	for _, o := range outs {
		byName[o.Name] = o
	}
	if o, ok := byName["renamed"]; !ok || o.Column == nil {
		t.Errorf("renamed column output missing or not a column: %+v", outs)
	}
	if o, ok := byName["y"]; !ok || o.Column == nil {
		t.Errorf("bare column output should use its own name: %+v", outs)
	}
	if o, ok := byName["computed"]; !ok || o.Column != nil || o.Expr == nil {
		t.Errorf("computed output should carry the expression, not a column: %+v", outs)
	}
	if _, ok := byName["*"]; ok {
		t.Errorf("wildcard must not appear as an output: %+v", outs)
	}
}

func TestRenderExpr(t *testing.T) {
	tree := mustParse(t, "WITH c AS (SELECT upper(t.z) AS u FROM t) SELECT 1 FROM c")
	ctes := CTEs(tree.Statements()[0])
	outs := ctes[0].Outputs()
	if len(outs) != 1 || outs[0].Expr == nil {
		t.Fatalf("outputs = %+v", outs)
	}
	text, err := RenderExpr(outs[0].Expr)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(strings.ToLower(text), "upper(t.z)") {
		t.Errorf("rendered expression = %q", text)
	}
}
