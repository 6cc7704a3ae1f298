package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show chapter workflow and ledger state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				result, err := d.Status.Handle(cmd.Context())
				if err != nil {
					return err
				}

				fmt.Printf("Chapters committed: %d. Story day: %d.\n", result.HighestChapter, result.CurrentDay)

				if len(result.FactCounts) > 0 {
					fmt.Println("\nFacts:")
					for kind, n := range result.FactCounts {
						fmt.Printf("  %-14s %d\n", kind, n)
					}
				}

				if len(result.Chapters) == 0 {
					return nil
				}
				fmt.Printf("\n%-8s %-20s %-9s %s\n", "CHAPTER", "STATUS", "ATTEMPTS", "UPDATED")
				for _, ch := range result.Chapters {
					updated := ""
					if !ch.UpdatedAt.IsZero() {
						updated = ch.UpdatedAt.Format("2006-01-02 15:04")
					}
					fmt.Printf("%-8d %-20s %-9d %s\n", ch.Index, ch.Status, ch.Attempts, updated)
				}
				return nil
			})
		},
	}
}
