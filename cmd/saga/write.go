package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pennwright/saga/internal/domain/entities"
)

func newWriteCmd() *cobra.Command {
	var flags struct {
		outline string
		chapter int
		output  string
	}

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Generate, check and commit the next chapter",
		Long:  "Runs the workflow gate: generate a draft, validate it against committed history, and commit its facts. Blocking violations trigger regeneration with feedback; a spent retry budget escalates to a human.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outline := ""
			if flags.outline != "" {
				data, err := os.ReadFile(flags.outline)
				if err != nil {
					return fmt.Errorf("reading outline: %w", err)
				}
				outline = string(data)
			}

			return withDeps(func(d *Deps) error {
				result, err := d.Write.Handle(cmd.Context(), flags.chapter, outline)
				if err != nil {
					return err
				}

				printReport(result.Report)
				switch result.Status {
				case entities.StatusCommitted:
					fmt.Printf("Chapter %d committed after %d attempt(s)\n", result.ChapterIndex, result.Attempts)
				case entities.StatusEscalated:
					fmt.Printf("Chapter %d escalated after %d attempt(s); nothing committed. Revise by hand and run 'saga check --commit'.\n",
						result.ChapterIndex, result.Attempts)
				}

				if flags.output != "" && result.Text != "" {
					if err := os.WriteFile(flags.output, []byte(result.Text), 0644); err != nil {
						return fmt.Errorf("writing chapter text: %w", err)
					}
					fmt.Printf("Chapter text written to %s\n", flags.output)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&flags.outline, "outline", "o", "", "Chapter outline file")
	cmd.Flags().IntVarP(&flags.chapter, "chapter", "c", 0, "Chapter index (default: next)")
	cmd.Flags().StringVar(&flags.output, "output", "", "Write the final draft to this file")

	return cmd
}
