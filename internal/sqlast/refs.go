package sqlast

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// TableRef is a live handle onto a table reference node. Mutations through
// the handle change the underlying tree.
type TableRef struct {
	rv *pg_query.RangeVar
}

// Name returns the table name with its original casing.
func (t *TableRef) Name() string { return t.rv.Relname }

// Schema returns the schema component, or "" when absent.
func (t *TableRef) Schema() string { return t.rv.Schemaname }

// Catalog returns the catalog (database) component, or "" when absent.
func (t *TableRef) Catalog() string { return t.rv.Catalogname }

// Alias returns the alias bound to this table reference, or "" when absent.
func (t *TableRef) Alias() string {
	if t.rv.Alias == nil {
		return ""
	}
	return t.rv.Alias.Aliasname
}

// SetName replaces the table name.
func (t *TableRef) SetName(name string) { t.rv.Relname = name }

// SetSchema replaces the schema component.
func (t *TableRef) SetSchema(schema string) { t.rv.Schemaname = schema }

// SetCatalog replaces the catalog component.
func (t *TableRef) SetCatalog(catalog string) { t.rv.Catalogname = catalog }

// ColumnRef is a live handle onto a column reference node.
type ColumnRef struct {
	ref *pg_query.ColumnRef
}

// Parts returns the dotted name components with their original casing.
// A wildcard field is reported as "*".
func (c *ColumnRef) Parts() []string {
	parts := make([]string, 0, len(c.ref.Fields))
	for _, f := range c.ref.Fields {
		switch fn := f.Node.(type) {
		case *pg_query.Node_String_:
			parts = append(parts, fn.String_.Sval)
		case *pg_query.Node_AStar:
			parts = append(parts, "*")
		}
	}
	return parts
}

// IsWildcard reports whether the reference ends in a * field.
func (c *ColumnRef) IsWildcard() bool {
	if len(c.ref.Fields) == 0 {
		return false
	}
	_, ok := c.ref.Fields[len(c.ref.Fields)-1].Node.(*pg_query.Node_AStar)
	return ok
}

// SetParts replaces the dotted name components. Empty parts are dropped.
func (c *ColumnRef) SetParts(parts ...string) {
	fields := make([]*pg_query.Node, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if p == "*" {
			fields = append(fields, &pg_query.Node{Node: &pg_query.Node_AStar{AStar: &pg_query.A_Star{}}})
			continue
		}
		fields = append(fields, strNode(p))
	}
	c.ref.Fields = fields
}
