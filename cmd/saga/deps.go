package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pennwright/saga/internal/application/handlers"
	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/ports"
	"github.com/pennwright/saga/internal/domain/services"
	"github.com/pennwright/saga/internal/infrastructure/aliasindex/qdrant"
	"github.com/pennwright/saga/internal/infrastructure/config"
	embedder "github.com/pennwright/saga/internal/infrastructure/embedder/openai"
	"github.com/pennwright/saga/internal/infrastructure/ledger/sqlite"
	llm "github.com/pennwright/saga/internal/infrastructure/llm/openai"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	Config      *config.Config
	Projects    *config.ProjectsConfig
	Rules       entities.Rules
	Import      *handlers.ImportHandler
	Write       *handlers.WriteHandler
	Check       *handlers.CheckHandler
	Status      *handlers.StatusHandler
	History     *handlers.HistoryHandler
	Export      *handlers.ExportHandler
	Constraints *services.ConstraintService
}

// internalDeps holds all dependencies including low-level components.
type internalDeps struct {
	Deps
	ledger *sqlite.Repository
}

// withDeps loads config and builds dependencies, then calls the provided
// function. It handles session locking and cleanup automatically.
func withDeps(fn func(*Deps) error) error {
	return withInternalDeps(func(d *internalDeps) error {
		return fn(&d.Deps)
	})
}

// withInternalDeps provides access to all dependencies including low-level
// components.
func withInternalDeps(fn func(*internalDeps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	projects, err := config.LoadProjects(cwd)
	if err != nil {
		return fmt.Errorf("loading projects: %w", err)
	}

	if globalProject == "" {
		return errors.New("project is required (use --project flag)")
	}
	if _, err := projects.Get(globalProject); err != nil {
		return err
	}

	rules, err := config.LoadRules(cwd, globalProject)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	sqlitePath := cfg.SQLite.Path
	if sqlitePath == "" {
		sqlitePath = config.SQLitePathForProject(cwd, globalProject)
	}
	ledger, err := sqlite.NewRepository(config.SQLiteConfig{Path: sqlitePath})
	if err != nil {
		return fmt.Errorf("creating sqlite ledger: %w", err)
	}
	defer ledger.Close()

	ctx := context.Background()
	if err := ledger.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	// One writer per project at a time. The lock is advisory and scoped to
	// this process's lifetime.
	holder := sessionHolder()
	if err := ledger.AcquireSession(ctx, holder); err != nil {
		return fmt.Errorf("acquiring session for project %q: %w", globalProject, err)
	}
	defer ledger.ReleaseSession(ctx, holder)

	scorer, err := buildScorer(cfg, rules)
	if err != nil {
		return err
	}

	var generator ports.ChapterGenerator
	if writer, werr := llm.NewWriter(cfg.Writer); werr != nil {
		generator = unavailableGenerator{err: werr}
	} else {
		generator = writer
	}

	constraints := services.NewConstraintService(ledger, rules)
	extractor := services.NewExtractor(rules)
	checker := services.NewChecker(scorer, rules)
	gate := services.NewGate(generator, ledger, constraints, extractor, checker, rules)

	deps := &internalDeps{
		Deps: Deps{
			Config:      cfg,
			Projects:    projects,
			Rules:       rules,
			Import:      handlers.NewImportHandler(ledger, rules),
			Write:       handlers.NewWriteHandler(gate, ledger),
			Check:       handlers.NewCheckHandler(gate, rules),
			Status:      handlers.NewStatusHandler(ledger),
			History:     handlers.NewHistoryHandler(ledger),
			Export:      handlers.NewExportHandler(ledger),
			Constraints: constraints,
		},
		ledger: ledger,
	}

	return fn(deps)
}

// withIndexHandler provides access to the semantic alias index. Unlike the
// scorer, this always needs the embedder and Qdrant.
func withIndexHandler(fn func(*handlers.IndexHandler) error) error {
	return withInternalDeps(func(d *internalDeps) error {
		emb, err := embedder.NewEmbedder(d.Config.Embedder)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}

		collection, err := d.Projects.GetCollection(globalProject)
		if err != nil {
			return err
		}
		qdrantCfg := d.Config.Qdrant
		qdrantCfg.Collection = collection

		index, err := qdrant.NewRepository(qdrantCfg)
		if err != nil {
			return fmt.Errorf("creating qdrant alias index: %w", err)
		}
		defer index.Close()

		if err := index.EnsureCollection(context.Background(), embedder.VectorSize); err != nil {
			return fmt.Errorf("ensuring alias collection: %w", err)
		}

		return fn(handlers.NewIndexHandler(d.ledger, emb, index))
	})
}

// buildScorer picks the name scorer the rulebook asks for.
func buildScorer(cfg *config.Config, rules entities.Rules) (ports.NameScorer, error) {
	switch rules.Similarity.Algorithm {
	case "", "lexical":
		return services.NewLexicalScorer(), nil
	case "semantic":
		emb, err := embedder.NewEmbedder(cfg.Embedder)
		if err != nil {
			return nil, fmt.Errorf("creating embedder for semantic similarity: %w", err)
		}
		return services.NewSemanticScorer(emb), nil
	default:
		return nil, fmt.Errorf("unknown similarity algorithm %q", rules.Similarity.Algorithm)
	}
}

// unavailableGenerator defers a writer construction error until a command
// actually tries to generate, so read-only commands work without an API key.
type unavailableGenerator struct {
	err error
}

func (g unavailableGenerator) GenerateChapter(context.Context, ports.GenerationRequest) (string, error) {
	return "", fmt.Errorf("chapter writer unavailable: %w", g.err)
}

func sessionHolder() string {
	host, err := os.Hostname()
	if err != nil {
		host = "saga"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
