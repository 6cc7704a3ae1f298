package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pennwright/saga/internal/application/handlers"
)

func newCheckCmd() *cobra.Command {
	var flags struct {
		chapter int
		commit  bool
	}

	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Validate externally written prose against the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.chapter < 1 {
				return errors.New("--chapter is required and must be positive")
			}

			return withDeps(func(d *Deps) error {
				result, err := d.Check.Handle(cmd.Context(), args[0], flags.chapter, handlers.CheckOptions{
					Commit: flags.commit,
				})
				if err != nil {
					return err
				}

				printReport(result.Report)
				if result.Committed {
					fmt.Printf("Chapter %d committed\n", flags.chapter)
				} else if flags.commit {
					fmt.Printf("Chapter %d not committed: blocking violations present\n", flags.chapter)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&flags.chapter, "chapter", "c", 0, "Chapter index the file represents (required)")
	cmd.Flags().BoolVar(&flags.commit, "commit", false, "Commit proposed facts when nothing blocks")

	return cmd
}
