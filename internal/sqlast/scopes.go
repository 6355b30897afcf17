package sqlast

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// CTE is a common table expression found anywhere in a statement.
type CTE struct {
	Name string
	Body *pg_query.Node // the CTE query
}

// Output is one output expression exposed by a CTE body.
// Column is non-nil when the expression is a bare column reference;
// otherwise Expr carries the raw expression node.
type Output struct {
	Name   string
	Column *ColumnRef
	Expr   *pg_query.Node
}

// CTEs returns every common table expression in the statement, in document
// order, including CTEs nested inside subqueries.
func CTEs(stmt *pg_query.Node) []*CTE {
	var ctes []*CTE
	walk(stmt, &visitor{cte: func(c *pg_query.CommonTableExpr) {
		ctes = append(ctes, &CTE{Name: c.Ctename, Body: c.Ctequery})
	}})
	return ctes
}

// Outputs lists the output expressions of the CTE body's select list. Bodies
// that are not plain selects (e.g. set operations) expose no outputs.
func (c *CTE) Outputs() []Output {
	sel := c.Body.GetSelectStmt()
	if sel == nil || sel.Op != pg_query.SetOperation_SETOP_NONE {
		return nil
	}

	var outputs []Output
	for _, target := range sel.TargetList {
		rt := target.GetResTarget()
		if rt == nil {
			continue
		}
		col := rt.Val.GetColumnRef()
		switch {
		case rt.Name != "" && col != nil:
			outputs = append(outputs, Output{Name: rt.Name, Column: &ColumnRef{ref: col}})
		case rt.Name != "":
			outputs = append(outputs, Output{Name: rt.Name, Expr: rt.Val})
		case col != nil:
			ref := &ColumnRef{ref: col}
			parts := ref.Parts()
			if len(parts) == 0 || parts[len(parts)-1] == "*" {
				continue
			}
			outputs = append(outputs, Output{Name: parts[len(parts)-1], Column: ref})
		}
	}
	return outputs
}
