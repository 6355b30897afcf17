// Package sqlast wraps the PostgreSQL parser (pg_query_go) behind the small
// surface the conversion engine needs: parsing, tree traversal over table and
// column references, component mutation, and deparsing back to SQL text.
package sqlast

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Dialect identifies the SQL grammar used to parse input queries.
type Dialect string

const (
	// DialectPostgres is the PostgreSQL grammar family.
	DialectPostgres Dialect = "postgres"
)

// ParseDialect normalizes a dialect tag. An empty tag defaults to postgres.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "postgres", "postgresql", "ansi":
		return DialectPostgres, nil
	default:
		return "", &DialectError{Tag: s}
	}
}

// DialectError reports an unsupported dialect tag.
type DialectError struct {
	Tag string
}

func (e *DialectError) Error() string {
	return fmt.Sprintf("unsupported dialect %q", e.Tag)
}

// ParseError reports that the input query could not be parsed.
type ParseError struct {
	Dialect Dialect
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse query (%s): %v", e.Dialect, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Tree is a parsed query owned by a single conversion call.
type Tree struct {
	result  *pg_query.ParseResult
	dialect Dialect
}

// Parse parses a query under the given dialect.
func Parse(sql string, dialect Dialect) (*Tree, error) {
	d, err := ParseDialect(string(dialect))
	if err != nil {
		return nil, err
	}
	result, err := pg_query.Parse(sql)
	if err != nil {
		return nil, &ParseError{Dialect: d, Err: err}
	}
	return &Tree{result: result, dialect: d}, nil
}

// Dialect returns the grammar the tree was parsed with.
func (t *Tree) Dialect() Dialect { return t.dialect }

// Deparse renders the (possibly mutated) tree back to SQL text.
func (t *Tree) Deparse() (string, error) {
	sql, err := pg_query.Deparse(t.result)
	if err != nil {
		return "", fmt.Errorf("deparse query: %w", err)
	}
	return sql, nil
}

// Statements returns the top-level statement nodes of the tree.
func (t *Tree) Statements() []*pg_query.Node {
	nodes := make([]*pg_query.Node, 0, len(t.result.Stmts))
	for _, raw := range t.result.Stmts {
		if raw.Stmt != nil {
			nodes = append(nodes, raw.Stmt)
		}
	}
	return nodes
}

// RenderExpr renders an arbitrary expression node as SQL text. The expression
// is wrapped in a synthetic single-target SELECT for deparsing, then unwrapped.
func RenderExpr(expr *pg_query.Node) (string, error) {
	sel := &pg_query.SelectStmt{
		TargetList: []*pg_query.Node{{
			Node: &pg_query.Node_ResTarget{ResTarget: &pg_query.ResTarget{Val: expr}},
		}},
	}
	sql, err := pg_query.Deparse(&pg_query.ParseResult{
		Stmts: []*pg_query.RawStmt{{
			Stmt: &pg_query.Node{Node: &pg_query.Node_SelectStmt{SelectStmt: sel}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("render expression: %w", err)
	}
	return strings.TrimSpace(strings.TrimPrefix(sql, "SELECT")), nil
}

func strNode(s string) *pg_query.Node {
	return &pg_query.Node{Node: &pg_query.Node_String_{String_: &pg_query.String{Sval: s}}}
}

func selectNode(sel *pg_query.SelectStmt) *pg_query.Node {
	return &pg_query.Node{Node: &pg_query.Node_SelectStmt{SelectStmt: sel}}
}
