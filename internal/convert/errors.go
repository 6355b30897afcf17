package convert

import "strings"

// Error kinds.
const (
	KindColumn = "column"
	KindTable  = "table"
)

const (
	msgColumnNotFound = "Not found in the mapping file"
	msgTableNotFound  = "Table not found in the mapping file"
)

// Error is a structured failure record for one identifier. Errors are
// additive metadata: they never block production of a best-effort rewrite.
type Error struct {
	Kind       string `json:"error_type"`
	Message    string `json:"error"`
	Identifier string `json:"identifier"`
	Comment    string `json:"comment,omitempty"`
}

// buildColumnErrors reports every base identifier that was neither rewritten
// nor mapped, plus the unmapped records carried out of the matcher.
func buildColumnErrors(els *Elements, replaced map[string]bool, mappedKeys map[string]bool, unmapped []Unmapped) map[string]Error {
	errs := make(map[string]Error)
	for base := range els.ColumnAliases {
		if replaced[base] || mappedKeys[strings.ToLower(base)] {
			continue
		}
		errs[base] = Error{Kind: KindColumn, Message: msgColumnNotFound, Identifier: base}
	}
	for _, u := range unmapped {
		key := u.Identifier()
		if key == "" {
			continue
		}
		errs[key] = Error{Kind: KindColumn, Message: u.Reason, Identifier: key, Comment: u.Comment}
	}

	// Unqualified columns the qualifier could not disambiguate never reach
	// the matcher; report them rather than dropping them silently.
	resolved := make(map[string]bool, len(els.ColumnAliases))
	for base, aliases := range els.ColumnAliases {
		resolved[base] = true
		for _, a := range aliases {
			resolved[a] = true
		}
	}
	for col := range els.Columns {
		if strings.Contains(col, ".") || resolved[col] {
			continue
		}
		errs[col] = Error{Kind: KindColumn, Message: msgColumnNotFound, Identifier: col}
	}
	return errs
}

// buildTableErrors reports every detected table that the rewriter did not
// replace.
func buildTableErrors(els *Elements, replaced map[string]bool) map[string]Error {
	errs := make(map[string]Error)
	for tbl := range els.Tables {
		if replaced[tbl] {
			continue
		}
		errs[tbl] = Error{Kind: KindTable, Message: msgTableNotFound, Identifier: tbl}
	}
	return errs
}

// pruneStale drops error entries whose bare identifier no longer appears as a
// token in the rewritten query (boundary heuristic: preceded by a space, dot,
// open paren, or quote) or whose key was in fact mapped. Wildcard entries are
// always dropped.
func pruneStale(errs map[string]Error, query string, columnMapping map[string]string) map[string]Error {
	lowerQuery := strings.ToLower(query)
	mapped := make(map[string]bool, len(columnMapping))
	for k := range columnMapping {
		mapped[strings.ToLower(k)] = true
	}

	pruned := make(map[string]Error, len(errs))
	for key, e := range errs {
		parts := strings.Split(key, ".")
		name := strings.ToLower(parts[len(parts)-1])

		if strings.Contains(name, "*") || mapped[strings.ToLower(key)] {
			continue
		}
		if strings.Contains(lowerQuery, " "+name) ||
			strings.Contains(lowerQuery, "."+name) ||
			strings.Contains(lowerQuery, "("+name) ||
			strings.Contains(lowerQuery, `"`+name) {
			pruned[key] = e
		}
	}
	return pruned
}
