package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pennwright/saga/internal/application/handlers"
)

func newImportCmd() *cobra.Command {
	var flags struct {
		format string
		dryRun bool
	}

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import seed facts from a JSON or CSV file",
		Long:  "Commits initial cast, factions, locations, ranks and the story calendar as chapter-zero facts.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				result, err := d.Import.Handle(cmd.Context(), args[0], handlers.ImportOptions{
					Format: flags.format,
					DryRun: flags.dryRun,
				})
				if err != nil {
					return err
				}

				for _, e := range result.Errors {
					fmt.Printf("  line %d: %s\n", e.LineNum, e.Detail)
				}
				if flags.dryRun {
					fmt.Printf("Dry run: %d valid seed fact(s), %d skipped\n", result.Imported, result.Skipped)
					return nil
				}
				fmt.Printf("Imported %d seed fact(s), %d skipped\n", result.Imported, result.Skipped)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "auto", "Input format (json, csv, auto)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Validate without committing")

	return cmd
}
