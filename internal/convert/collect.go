package convert

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"cdlconv/internal/sqlast"
)

// Extract collects structural elements from a parsed query. Each CTE body and
// each branch of a top-level set operation is collected as its own scope
// before the whole-query pass, so that names bound inside a CTE or branch do
// not leak into sibling scopes; results are merged afterward. The forward map
// is then collapsed into ColumnAliases (base identifier → alias list).
func Extract(tree *sqlast.Tree) *Elements {
	acc := newElements()
	for _, stmt := range tree.Statements() {
		for _, cte := range sqlast.CTEs(stmt) {
			acc.merge(collectScope(cte.Body, cte))
		}
		for _, branch := range sqlast.Branches(stmt) {
			acc.merge(collectScope(branch, nil))
		}
		acc.merge(collectScope(stmt, nil))
	}
	acc.ColumnAliases = invertToBases(acc.forward)
	return acc
}

// collectScope gathers the facts of a single resolution scope. When the scope
// is a CTE, its exposed output columns are recorded as forward entries keyed
// "ctename.output".
func collectScope(node *pg_query.Node, cte *sqlast.CTE) *Elements {
	part := newElements()

	// Tables and aliases first: column qualification below depends on them.
	var fromTables []string
	sqlast.WalkTables(node, func(t *sqlast.TableRef) {
		var parts []string
		if c := strings.ToLower(t.Catalog()); c != "" {
			part.Databases[c] = true
			parts = append(parts, c)
		}
		if s := strings.ToLower(t.Schema()); s != "" {
			part.Schemas[s] = true
			parts = append(parts, s)
		}
		parts = append(parts, strings.ToLower(t.Name()))
		full := strings.Join(parts, ".")
		if !part.Tables[full] {
			part.Tables[full] = true
			fromTables = append(fromTables, full)
		}
		if a := strings.ToLower(t.Alias()); a != "" {
			part.TableAliases[a] = full
		}
	})

	sqlast.WalkColumns(node, func(c *sqlast.ColumnRef) {
		parts := lowerParts(c.Parts())
		if len(parts) == 0 || (len(parts) == 1 && parts[0] == "*") {
			return
		}
		raw := strings.Join(parts, ".")
		fq := qualifyColumn(parts, part.TableAliases, fromTables)
		if fq != raw {
			part.forward[raw] = fq
		}
		part.Columns[fq] = true
	})

	if cte != nil {
		cteName := strings.ToLower(cte.Name)
		for _, out := range cte.Outputs() {
			key := cteName + "." + strings.ToLower(out.Name)
			switch {
			case out.Column != nil:
				parts := lowerParts(out.Column.Parts())
				part.forward[key] = qualifyColumn(parts, part.TableAliases, fromTables)
			case out.Expr != nil:
				// Not a bare column: capture the rendered expression as an
				// opaque terminal.
				if text, err := sqlast.RenderExpr(out.Expr); err == nil {
					part.forward[key] = strings.ToLower(text)
				}
			}
		}
	}

	return part
}

// qualifyColumn normalizes a dotted column reference: a leading table alias
// is substituted with the table it designates, and an unqualified column in a
// single-table scope gets that table prepended.
func qualifyColumn(parts []string, aliases map[string]string, fromTables []string) string {
	if len(parts) > 1 {
		if full, ok := aliases[parts[0]]; ok {
			return full + "." + parts[len(parts)-1]
		}
	}
	if len(parts) == 1 && len(fromTables) == 1 {
		return fromTables[0] + "." + parts[0]
	}
	return strings.Join(parts, ".")
}

func lowerParts(parts []string) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.ToLower(p)
	}
	return out
}
