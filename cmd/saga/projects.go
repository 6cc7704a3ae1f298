package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/infrastructure/aliasindex/qdrant"
	"github.com/pennwright/saga/internal/infrastructure/config"
	embedder "github.com/pennwright/saga/internal/infrastructure/embedder/openai"
	"github.com/pennwright/saga/internal/infrastructure/ledger/sqlite"
)

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage novel projects",
		RunE:  runProjectsList,
	}

	cmd.AddCommand(
		newProjectsListCmd(),
		newProjectsCreateCmd(),
		newProjectsDeleteCmd(),
	)

	return cmd
}

func newProjectsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all projects",
		RunE:  runProjectsList,
	}
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	projects, err := config.LoadProjects(cwd)
	if err != nil {
		return fmt.Errorf("loading projects: %w", err)
	}

	if len(projects.Projects) == 0 {
		fmt.Println("No projects configured.")
		fmt.Println("Use 'saga projects create NAME' to create a project.")
		return nil
	}

	fmt.Printf("%-20s %-25s %-12s %s\n", "NAME", "COLLECTION", "GENRE", "DESCRIPTION")
	fmt.Printf("%-20s %-25s %-12s %s\n", "----", "----------", "-----", "-----------")

	for name, project := range projects.Projects {
		fmt.Printf("%-20s %-25s %-12s %s\n", name, project.Collection, project.Genre, project.Description)
	}

	return nil
}

func newProjectsCreateCmd() *cobra.Command {
	var genre, description string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectsCreate(cmd, args[0], genre, description)
		},
	}

	cmd.Flags().StringVarP(&genre, "genre", "g", "xianxia", "Project genre (selects the default rank vocabulary)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Project description")

	return cmd
}

func runProjectsCreate(cmd *cobra.Command, name, genre, description string) error {
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	if !config.Exists(cwd) {
		if err := config.WriteDefault(cwd); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}
		fmt.Printf("Initialized saga in %s\n", config.ConfigDir(cwd))
	}

	projects, err := config.LoadProjects(cwd)
	if err != nil {
		return fmt.Errorf("loading projects: %w", err)
	}
	if projects.Exists(name) {
		return fmt.Errorf("project %q already exists", name)
	}

	collection := config.GenerateCollectionName(name)
	projects.Add(name, config.ProjectEntry{
		Collection:  collection,
		Genre:       genre,
		Description: description,
	})
	if err := projects.Save(cwd); err != nil {
		return fmt.Errorf("saving projects: %w", err)
	}

	// Write the default rulebook so users can tune thresholds and the rank
	// vocabulary per project.
	if err := config.SaveRules(cwd, name, entities.DefaultRules()); err != nil {
		return fmt.Errorf("writing default rules: %w", err)
	}

	ledger, err := sqlite.NewRepository(config.SQLiteConfig{
		Path: config.SQLitePathForProject(cwd, name),
	})
	if err != nil {
		return fmt.Errorf("creating sqlite ledger: %w", err)
	}
	defer ledger.Close()
	if err := ledger.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	// The alias index is only needed for semantic similarity, so a missing
	// Qdrant is a warning here, not an error.
	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := createCollection(ctx, cfg, collection); err != nil {
		fmt.Printf("Warning: could not create alias collection %q: %v\n", collection, err)
	}

	fmt.Printf("Created project %q with collection %q\n", name, collection)

	return nil
}

func newProjectsDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectsDelete(cmd, args[0], force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Delete even if the ledger contains facts")

	return cmd
}

func runProjectsDelete(cmd *cobra.Command, name string, force bool) error {
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	projects, err := config.LoadProjects(cwd)
	if err != nil {
		return fmt.Errorf("loading projects: %w", err)
	}
	entry, err := projects.Get(name)
	if err != nil {
		return err
	}

	if !force {
		count, err := ledgerFactCount(ctx, cwd, name)
		if err == nil && count > 0 {
			return fmt.Errorf("project %q contains %d facts, use --force to delete", name, count)
		}
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := deleteCollection(ctx, cfg, entry.Collection); err != nil {
		fmt.Printf("Warning: could not delete collection %q: %v\n", entry.Collection, err)
	}

	if err := os.RemoveAll(config.ProjectDir(cwd, name)); err != nil {
		return fmt.Errorf("removing project directory: %w", err)
	}

	projects.Remove(name)
	if err := projects.Save(cwd); err != nil {
		return fmt.Errorf("saving projects: %w", err)
	}

	fmt.Printf("Deleted project %q\n", name)

	return nil
}

func ledgerFactCount(ctx context.Context, basePath, name string) (int, error) {
	path := config.SQLitePathForProject(basePath, name)
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}

	ledger, err := sqlite.NewRepository(config.SQLiteConfig{Path: path})
	if err != nil {
		return 0, err
	}
	defer ledger.Close()
	if err := ledger.EnsureSchema(ctx); err != nil {
		return 0, err
	}

	facts, err := ledger.ListFacts(ctx)
	if err != nil {
		return 0, err
	}
	return len(facts), nil
}

func createCollection(ctx context.Context, cfg *config.Config, collection string) error {
	qdrantCfg := cfg.Qdrant
	qdrantCfg.Collection = collection

	repo, err := qdrant.NewRepository(qdrantCfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	return repo.EnsureCollection(ctx, embedder.VectorSize)
}

func deleteCollection(ctx context.Context, cfg *config.Config, collection string) error {
	qdrantCfg := cfg.Qdrant
	qdrantCfg.Collection = collection

	repo, err := qdrant.NewRepository(qdrantCfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	return repo.DeleteCollection(ctx)
}
