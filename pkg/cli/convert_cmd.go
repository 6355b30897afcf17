package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"cdlconv/internal/convert"
	"cdlconv/internal/mapping"
	"cdlconv/internal/report"
	"cdlconv/internal/sqlast"
)

func newConvertCmd(opts *rootOptions) *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "convert [query-file]",
		Short: "Convert a legacy query to the CDL naming scheme",
		Long: "Reads a SQL query from the given file (or stdin when omitted), rewrites it " +
			"using the mapping table, and prints the result.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readQuery(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			table, err := loadMapping(opts)
			if err != nil {
				return err
			}
			catalog, err := buildCatalog(opts)
			if err != nil {
				return err
			}
			dialect, err := sqlast.ParseDialect(opts.dialect)
			if err != nil {
				return err
			}

			resp, err := convert.Convert(query, table, convert.Options{
				Dialect: dialect,
				Catalog: catalog,
				Logger:  opts.logger(),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close() //nolint:errcheck
				out = f
			}
			return writeResult(out, cmd.ErrOrStderr(), opts.output, query, resp)
		},
	}

	cmd.Flags().StringVar(&outFile, "out", "", "Write the result to a file instead of stdout")
	return cmd
}

// readQuery reads the query text from the file argument, or stdin when no
// argument is given.
func readQuery(stdin io.Reader, args []string) (string, error) {
	var (
		raw []byte
		err error
	)
	if len(args) == 1 && args[0] != "-" {
		raw, err = os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read query file: %w", err)
		}
	} else {
		raw, err = io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
	}
	query := strings.TrimSpace(string(raw))
	if query == "" {
		return "", fmt.Errorf("query is empty")
	}
	return query, nil
}

func loadMapping(opts *rootOptions) (*mapping.Table, error) {
	if opts.mappingPath == "" {
		return nil, fmt.Errorf("no mapping file: pass --mapping or set MAPPING_PATH")
	}
	return mapping.Load(opts.mappingPath)
}

func buildCatalog(opts *rootOptions) (convert.Catalog, error) {
	if opts.catalogMap != "" {
		lookup, err := convert.LoadCatalogLookup(opts.catalogMap)
		if err != nil {
			return convert.Catalog{}, err
		}
		return convert.Catalog{Lookup: lookup}, nil
	}
	return convert.Catalog{Name: opts.catalog}, nil
}

// writeResult renders the response in the requested format. Text output
// prints the converted query to out and a human-readable summary to errOut.
func writeResult(out, errOut io.Writer, format, original string, resp *convert.Response) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case "html":
		return report.Render(out, original, resp)
	default:
		fmt.Fprintln(out, resp.Query)
		printTextSummary(errOut, resp)
		return nil
	}
}

func printTextSummary(w io.Writer, resp *convert.Response) {
	if len(resp.ColumnMapping) > 0 {
		fmt.Fprintf(w, "renamed %d column(s), %d table(s)\n", len(resp.ColumnMapping), len(resp.TableMapping))
	}
	if len(resp.Comments) > 0 {
		for _, target := range sortedStringKeys(resp.Comments) {
			fmt.Fprintf(w, "note %s: %s\n", target, resp.Comments[target])
		}
	}
	if len(resp.Errors) > 0 {
		keys := make([]string, 0, len(resp.Errors))
		for k := range resp.Errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(w, "%d identifier(s) could not be renamed:\n", len(keys))
		for _, k := range keys {
			e := resp.Errors[k]
			fmt.Fprintf(w, "  - %s (%s): %s\n", e.Identifier, e.Kind, e.Message)
		}
	}
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
