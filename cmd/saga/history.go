package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history KIND [KEY]",
		Short: "Show entity history from the ledger",
		Long:  "With a key, shows every committed record for that entity. Without one, shows the current record of every entity of the kind.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) > 1 {
				key = args[1]
			}

			return withDeps(func(d *Deps) error {
				records, err := d.History.Handle(cmd.Context(), args[0], key)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Println("No records found.")
					return nil
				}

				fmt.Printf("%-8s %-20s %-30s %s\n", "CHAPTER", "ENTITY", "VALUE", "TAGS")
				for _, r := range records {
					tags := ""
					for i, t := range r.Tags {
						if i > 0 {
							tags += ","
						}
						tags += string(t)
					}
					fmt.Printf("%-8d %-20s %-30s %s\n", r.ChapterIndex, r.EntityKey, r.Value, tags)
				}
				return nil
			})
		},
	}
}
