// Package report renders a conversion result as a standalone HTML page for
// human review of what was and was not renamed.
package report

import (
	"fmt"
	"io"
	"sort"

	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"cdlconv/internal/convert"
)

// Render writes the review page for one conversion.
func Render(w io.Writer, original string, resp *convert.Response) error {
	return page(original, resp).Render(w)
}

func page(original string, resp *convert.Response) Node {
	return HTML(
		Lang("en"),
		Head(
			Meta(Charset("utf-8")),
			TitleEl(Text("CDL conversion report")),
			StyleEl(Raw(pageCSS)),
		),
		Body(
			H1(Text("CDL conversion report")),
			section("Original query", Pre(Code(Text(original)))),
			section("Converted query", Pre(Code(Text(resp.Query)))),
			mappingTable("Column mapping", resp.ColumnMapping),
			mappingTable("Table mapping", resp.TableMapping),
			commentList(resp.Comments),
			errorTable(resp.Errors),
		),
	)
}

func section(title string, body Node) Node {
	return Div(Class("section"), H2(Text(title)), body)
}

func mappingTable(title string, mapping map[string]string) Node {
	if len(mapping) == 0 {
		return section(title, P(Class("empty"), Text("No identifiers renamed.")))
	}
	keys := sortedKeys(mapping)
	rows := make([]Node, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, Tr(Td(Code(Text(k))), Td(Code(Text(mapping[k])))))
	}
	return section(title, Table(
		THead(Tr(Th(Text("Legacy")), Th(Text("CDL")))),
		TBody(Group(rows)),
	))
}

func commentList(comments map[string]string) Node {
	if len(comments) == 0 {
		return Group(nil)
	}
	keys := sortedKeys(comments)
	items := make([]Node, 0, len(keys))
	for _, k := range keys {
		items = append(items, Li(Code(Text(k)), Text(": "+comments[k])))
	}
	return section("Mapping comments", Ul(Group(items)))
}

func errorTable(errs map[string]convert.Error) Node {
	if len(errs) == 0 {
		return section("Errors", P(Class("ok"), Text("All identifiers resolved.")))
	}
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]Node, 0, len(keys))
	for _, k := range keys {
		e := errs[k]
		rows = append(rows, Tr(Class("err"),
			Td(Code(Text(e.Identifier))),
			Td(Text(e.Kind)),
			Td(Text(e.Message)),
			Td(Text(e.Comment)),
		))
	}
	return section(fmt.Sprintf("Errors (%d)", len(keys)), Table(
		THead(Tr(Th(Text("Identifier")), Th(Text("Type")), Th(Text("Error")), Th(Text("Comment")))),
		TBody(Group(rows)),
	))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const pageCSS = `
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 60rem; color: #1a1a1a; }
h1 { font-size: 1.4rem; }
h2 { font-size: 1.1rem; margin-bottom: .4rem; }
.section { margin-bottom: 1.5rem; }
pre { background: #f6f6f6; padding: .8rem; border-radius: 4px; overflow-x: auto; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: .3rem .6rem; border-bottom: 1px solid #ddd; }
tr.err td { background: #fff5f5; }
.empty { color: #666; }
.ok { color: #2a7a2a; }
`
