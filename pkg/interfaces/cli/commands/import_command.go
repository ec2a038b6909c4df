package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vsinha/mfgplan/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/mfgplan/pkg/interfaces/cli/output"
)

func newImportCommand(opts *rootOptions) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "import <dir | file>",
		Short: "Import master data, demand and issue lines from CSV",
		Long: `Without --kind, every <dataset>.csv found in the directory is loaded in
dependency order in one transaction. With --kind, a single file is loaded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			importer := csv.NewImporter(opts.app.Store, opts.app.Logger)
			order := make([]string, len(csv.Kinds))
			for i, k := range csv.Kinds {
				order[i] = string(k)
			}

			counts := make(map[string]int)
			if kind == "" {
				byKind, err := importer.ImportDir(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for k, n := range byKind {
					counts[string(k)] = n
				}
			} else {
				k, err := csv.ParseKind(kind)
				if err != nil {
					return err
				}
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				n, err := importer.Import(cmd.Context(), k, f)
				if err != nil {
					return err
				}
				counts[string(k)] = n
			}
			return opts.emit("import", counts, output.ImportTable(counts, order))
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Dataset of a single file (units, items, bom_lines, issues, ...)")
	return cmd
}
