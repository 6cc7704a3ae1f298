package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var flags struct {
		format string
		output string
	}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the committed ledger",
		Long:  "Exports the fact ledger as a markdown setting manual, or as raw JSON or CSV records.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) (err error) {
				var w io.Writer = os.Stdout
				if flags.output != "" {
					f, ferr := os.OpenFile(flags.output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
					if ferr != nil {
						return fmt.Errorf("creating file: %w", ferr)
					}
					defer func() {
						if cerr := f.Close(); cerr != nil && err == nil {
							err = fmt.Errorf("closing file: %w", cerr)
						}
					}()
					w = f
				}

				if err := d.Export.Handle(cmd.Context(), w, flags.format); err != nil {
					return err
				}
				if flags.output != "" {
					fmt.Printf("Exported ledger to %s\n", flags.output)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "markdown", "Output format (markdown, json, csv)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}
