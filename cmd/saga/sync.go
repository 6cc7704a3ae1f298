package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pennwright/saga/internal/application/handlers"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Rebuild the semantic alias index from the ledger",
		Long:  "Embeds every committed surface name and indexes it in Qdrant. Needed before 'saga similar' and for the semantic similarity mode.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIndexHandler(func(h *handlers.IndexHandler) error {
				indexed, err := h.Sync(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("Indexed %d name(s)\n", indexed)
				return nil
			})
		},
	}
}

func newSimilarCmd() *cobra.Command {
	var flags struct {
		kind  string
		limit int
	}

	cmd := &cobra.Command{
		Use:   "similar NAME",
		Short: "Find indexed names semantically close to a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIndexHandler(func(h *handlers.IndexHandler) error {
				hits, err := h.Similar(cmd.Context(), flags.kind, args[0], flags.limit)
				if err != nil {
					return err
				}
				if len(hits) == 0 {
					fmt.Println("No indexed names found. Run 'saga sync' first.")
					return nil
				}

				fmt.Printf("%-8s %-25s %s\n", "SCORE", "NAME", "ENTITY")
				for _, hit := range hits {
					fmt.Printf("%-8.3f %-25s %s\n", hit.Score, hit.Name, hit.EntityKey)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&flags.kind, "kind", "k", "character", "Entity kind (character, faction, location, item)")
	cmd.Flags().IntVarP(&flags.limit, "limit", "l", 5, "Maximum number of results")

	return cmd
}
