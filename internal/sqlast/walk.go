package sqlast

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

type visitor struct {
	table  func(*TableRef)
	column func(*ColumnRef)
	cte    func(*pg_query.CommonTableExpr)
}

// WalkTables invokes fn for every table reference in the subtree.
func WalkTables(node *pg_query.Node, fn func(*TableRef)) {
	walk(node, &visitor{table: fn})
}

// WalkColumns invokes fn for every column reference in the subtree.
func WalkColumns(node *pg_query.Node, fn func(*ColumnRef)) {
	walk(node, &visitor{column: fn})
}

// Branches returns the two sides of a top-level set operation (UNION,
// INTERSECT, EXCEPT), or nil when the statement is not a set operation.
func Branches(stmt *pg_query.Node) []*pg_query.Node {
	sel := stmt.GetSelectStmt()
	if sel == nil || sel.Op == pg_query.SetOperation_SETOP_NONE {
		return nil
	}
	var branches []*pg_query.Node
	if sel.Larg != nil {
		branches = append(branches, selectNode(sel.Larg))
	}
	if sel.Rarg != nil {
		branches = append(branches, selectNode(sel.Rarg))
	}
	return branches
}

func walk(node *pg_query.Node, v *visitor) {
	if node == nil {
		return
	}

	switch n := node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		walkSelect(n.SelectStmt, v)
	case *pg_query.Node_InsertStmt:
		walkRangeVar(n.InsertStmt.Relation, v)
		walkAll(n.InsertStmt.Cols, v)
		walk(n.InsertStmt.SelectStmt, v)
		walkAll(n.InsertStmt.ReturningList, v)
		walkWith(n.InsertStmt.WithClause, v)
	case *pg_query.Node_UpdateStmt:
		walkRangeVar(n.UpdateStmt.Relation, v)
		walkAll(n.UpdateStmt.TargetList, v)
		walkAll(n.UpdateStmt.FromClause, v)
		walk(n.UpdateStmt.WhereClause, v)
		walkAll(n.UpdateStmt.ReturningList, v)
		walkWith(n.UpdateStmt.WithClause, v)
	case *pg_query.Node_DeleteStmt:
		walkRangeVar(n.DeleteStmt.Relation, v)
		walkAll(n.DeleteStmt.UsingClause, v)
		walk(n.DeleteStmt.WhereClause, v)
		walkAll(n.DeleteStmt.ReturningList, v)
		walkWith(n.DeleteStmt.WithClause, v)
	case *pg_query.Node_RangeVar:
		if v.table != nil {
			v.table(&TableRef{rv: n.RangeVar})
		}
	case *pg_query.Node_RangeSubselect:
		walk(n.RangeSubselect.Subquery, v)
	case *pg_query.Node_RangeFunction:
		walkAll(n.RangeFunction.Functions, v)
	case *pg_query.Node_JoinExpr:
		walk(n.JoinExpr.Larg, v)
		walk(n.JoinExpr.Rarg, v)
		walk(n.JoinExpr.Quals, v)
	case *pg_query.Node_CommonTableExpr:
		if v.cte != nil {
			v.cte(n.CommonTableExpr)
		}
		walk(n.CommonTableExpr.Ctequery, v)
	case *pg_query.Node_ColumnRef:
		if v.column != nil {
			v.column(&ColumnRef{ref: n.ColumnRef})
		}
	case *pg_query.Node_ResTarget:
		walk(n.ResTarget.Val, v)
	case *pg_query.Node_AExpr:
		walk(n.AExpr.Lexpr, v)
		walk(n.AExpr.Rexpr, v)
	case *pg_query.Node_BoolExpr:
		walkAll(n.BoolExpr.Args, v)
	case *pg_query.Node_SubLink:
		walk(n.SubLink.Testexpr, v)
		walk(n.SubLink.Subselect, v)
	case *pg_query.Node_FuncCall:
		walkAll(n.FuncCall.Args, v)
		walkAll(n.FuncCall.AggOrder, v)
		walk(n.FuncCall.AggFilter, v)
		if n.FuncCall.Over != nil {
			walkAll(n.FuncCall.Over.PartitionClause, v)
			walkAll(n.FuncCall.Over.OrderClause, v)
		}
	case *pg_query.Node_TypeCast:
		walk(n.TypeCast.Arg, v)
	case *pg_query.Node_CaseExpr:
		walk(n.CaseExpr.Arg, v)
		walkAll(n.CaseExpr.Args, v)
		walk(n.CaseExpr.Defresult, v)
	case *pg_query.Node_CaseWhen:
		walk(n.CaseWhen.Expr, v)
		walk(n.CaseWhen.Result, v)
	case *pg_query.Node_CoalesceExpr:
		walkAll(n.CoalesceExpr.Args, v)
	case *pg_query.Node_MinMaxExpr:
		walkAll(n.MinMaxExpr.Args, v)
	case *pg_query.Node_NullTest:
		walk(n.NullTest.Arg, v)
	case *pg_query.Node_BooleanTest:
		walk(n.BooleanTest.Arg, v)
	case *pg_query.Node_SortBy:
		walk(n.SortBy.Node, v)
	case *pg_query.Node_WindowDef:
		walkAll(n.WindowDef.PartitionClause, v)
		walkAll(n.WindowDef.OrderClause, v)
	case *pg_query.Node_AIndirection:
		walk(n.AIndirection.Arg, v)
	case *pg_query.Node_RowExpr:
		walkAll(n.RowExpr.Args, v)
	case *pg_query.Node_List:
		walkAll(n.List.Items, v)
	}
}

func walkSelect(sel *pg_query.SelectStmt, v *visitor) {
	if sel == nil {
		return
	}
	// Set operations
	walkSelect(sel.Larg, v)
	walkSelect(sel.Rarg, v)

	walkAll(sel.DistinctClause, v)
	walkAll(sel.TargetList, v)
	walkAll(sel.FromClause, v)
	walk(sel.WhereClause, v)
	walkAll(sel.GroupClause, v)
	walk(sel.HavingClause, v)
	walkAll(sel.WindowClause, v)
	walkAll(sel.SortClause, v)
	walk(sel.LimitOffset, v)
	walk(sel.LimitCount, v)
	walkAll(sel.ValuesLists, v)
	walkWith(sel.WithClause, v)
}

func walkWith(with *pg_query.WithClause, v *visitor) {
	if with == nil {
		return
	}
	walkAll(with.Ctes, v)
}

func walkRangeVar(rv *pg_query.RangeVar, v *visitor) {
	if rv == nil || v.table == nil {
		return
	}
	v.table(&TableRef{rv: rv})
}

func walkAll(nodes []*pg_query.Node, v *visitor) {
	for _, n := range nodes {
		walk(n, v)
	}
}
