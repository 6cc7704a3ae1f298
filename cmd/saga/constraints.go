package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConstraintsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "constraints",
		Short: "Print the continuity constraints for the next chapter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				next, err := d.Write.NextChapter(cmd.Context())
				if err != nil {
					return err
				}

				set, err := d.Constraints.Constraints(cmd.Context(), next)
				if err != nil {
					return err
				}
				if set.Empty() {
					fmt.Printf("Chapter %d: no constraints yet (empty ledger)\n", next)
					return nil
				}

				fmt.Print(set.PromptText())
				return nil
			})
		},
	}
}
