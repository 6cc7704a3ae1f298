// Package main provides the entry point for the saga CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version       = "0.1.0-dev"
	globalProject string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:     "saga",
		Short:   "A narrative consistency engine for serialized fiction",
		Version: version,
	}

	rootCmd.PersistentFlags().StringVarP(&globalProject, "project", "p", "", "Novel project to operate on (required)")

	rootCmd.AddCommand(
		newProjectsCmd(),
		newImportCmd(),
		newWriteCmd(),
		newCheckCmd(),
		newConstraintsCmd(),
		newHistoryCmd(),
		newStatusCmd(),
		newExportCmd(),
		newSyncCmd(),
		newSimilarCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}
