package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cdlconv/internal/mapping"
)

func newMappingCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Inspect the mapping table",
	}
	cmd.AddCommand(newMappingValidateCmd(opts))
	return cmd
}

func newMappingValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [mapping-file]",
		Short: "Load a mapping file and report data-quality problems",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.mappingPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no mapping file: pass a path, --mapping, or set MAPPING_PATH")
			}

			table, err := mapping.Load(path)
			if err != nil {
				return err
			}

			placeholders := 0
			targets := map[string]string{}
			var conflicts []string
			for _, row := range table.Rows() {
				if !row.HasCDLColumn() {
					placeholders++
					continue
				}
				key := strings.ToLower(row.LegacyDB + "." + row.LegacySchema + "." + row.LegacyTable + "." + row.LegacyColumn)
				target := row.CDLSchema + "." + row.CDLTable + "." + row.CDLColumn
				if prev, ok := targets[key]; ok && prev != target {
					conflicts = append(conflicts, strings.Trim(key, "."))
					continue
				}
				targets[key] = target
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d row(s), %d without a target column\n", path, table.Len(), placeholders)
			if len(conflicts) > 0 {
				fmt.Fprintf(out, "%d legacy key(s) map to multiple distinct targets:\n", len(conflicts))
				for _, c := range conflicts {
					fmt.Fprintf(out, "  - %s\n", c)
				}
				return fmt.Errorf("mapping file has conflicting rows")
			}
			fmt.Fprintln(out, "No conflicts found.")
			return nil
		},
	}
}
