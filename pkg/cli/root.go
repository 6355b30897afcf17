// Package cli implements the cdlconv command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var version = "dev"

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// rootOptions holds the persistent flags shared by all subcommands.
type rootOptions struct {
	mappingPath string
	output      string
	dialect     string
	catalog     string
	catalogMap  string
	verbose     bool
}

func (o *rootOptions) logger() *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "cdlconv",
		Short:         "Legacy-to-CDL SQL query converter",
		Long:          "Rewrites legacy SQL queries to the CDL naming scheme using a mapping table.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("mapping") {
				if v := os.Getenv("MAPPING_PATH"); v != "" {
					opts.mappingPath = v
				}
			}
			switch opts.output {
			case "text", "json", "html":
			default:
				return fmt.Errorf("unsupported output format %q: use 'text', 'json' or 'html'", opts.output)
			}
			if opts.catalog != "" && opts.catalogMap != "" {
				return fmt.Errorf("--catalog and --catalog-map are mutually exclusive")
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.mappingPath, "mapping", "m", "", "Path to the mapping file (.xlsx or .csv); defaults to $MAPPING_PATH")
	pf.StringVarP(&opts.output, "output", "o", "text", "Output format (text, json, html)")
	pf.StringVar(&opts.dialect, "dialect", "", "SQL dialect of the input query (default postgres)")
	pf.StringVar(&opts.catalog, "catalog", "", "Fixed target catalog name")
	pf.StringVar(&opts.catalogMap, "catalog-map", "", "YAML file mapping legacy catalog names to targets")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	// Accept underscore spellings of multi-word flags.
	pf.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.AddCommand(newConvertCmd(opts))
	rootCmd.AddCommand(newMappingCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cdlconv version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "cdlconv "+version)
		},
	}
}
