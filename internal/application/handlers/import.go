// Package handlers wires CLI commands to domain services.
package handlers

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/ports"
	"github.com/pennwright/saga/internal/infrastructure/parsers"
)

// ImportHandler commits seed files as chapter-zero facts.
type ImportHandler struct {
	ledger ports.Ledger
	rules  entities.Rules
}

// NewImportHandler creates a new import handler.
func NewImportHandler(ledger ports.Ledger, rules entities.Rules) *ImportHandler {
	return &ImportHandler{
		ledger: ledger,
		rules:  rules,
	}
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	Format string // "json", "csv", or "auto"
	DryRun bool   // Validate without committing
}

// ImportError reports one rejected seed row.
type ImportError struct {
	LineNum int
	Detail  string
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []ImportError
}

// Handle imports seed facts from a file. Bad rows are skipped and reported;
// the remaining rows are committed in one atomic batch.
func (h *ImportHandler) Handle(ctx context.Context, filePath string, opts ImportOptions) (*ImportResult, error) {
	var parser parsers.Parser
	if opts.Format == "" || opts.Format == "auto" {
		parser = parsers.ForFile(filePath)
	} else {
		parser = parsers.ForFormat(opts.Format)
	}
	if parser == nil {
		return nil, fmt.Errorf("unsupported format for file: %s", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	seeds, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}

	result := &ImportResult{}
	var records []entities.FactRecord
	for _, seed := range seeds {
		record, err := h.toRecord(seed)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, ImportError{
				LineNum: seed.LineNum,
				Detail:  err.Error(),
			})
			continue
		}
		records = append(records, record)
	}

	if opts.DryRun || len(records) == 0 {
		result.Imported = len(records)
		return result, nil
	}

	if err := h.ledger.CommitFacts(ctx, 0, records); err != nil {
		return nil, fmt.Errorf("committing seed facts: %w", err)
	}
	result.Imported = len(records)
	return result, nil
}

// toRecord validates one seed row and converts it to a chapter-zero fact.
func (h *ImportHandler) toRecord(seed parsers.SeedFact) (entities.FactRecord, error) {
	kind := entities.EntityKind(strings.ToLower(strings.TrimSpace(seed.Kind)))
	if !kind.Valid() {
		return entities.FactRecord{}, fmt.Errorf("unknown kind %q", seed.Kind)
	}

	record := entities.FactRecord{
		ID:           uuid.New().String(),
		Kind:         kind,
		ChapterIndex: 0,
		Tags:         []entities.FactTag{entities.TagSeed},
		CreatedAt:    time.Now(),
	}

	switch kind {
	case entities.KindStoryTime:
		if seed.Day < 1 {
			return entities.FactRecord{}, fmt.Errorf("story_time seed needs a day")
		}
		record.EntityKey = "story"
		record.Value = fmt.Sprintf("day %d", seed.Day)
		record.Day = seed.Day
		return record, nil

	case entities.KindPowerLevel:
		if seed.Name == "" {
			return entities.FactRecord{}, fmt.Errorf("power_level seed needs a character name")
		}
		rank, err := h.parseRank(seed.Value)
		if err != nil {
			return entities.FactRecord{}, err
		}
		record.EntityKey = entities.EntityKeyFor(seed.Name)
		record.Value = rank.String()
		record.Rank = &rank
		return record, nil

	case entities.KindConstitution:
		if seed.Name == "" || seed.Value == "" {
			return entities.FactRecord{}, fmt.Errorf("constitution seed needs a character name and a value")
		}
		record.EntityKey = entities.EntityKeyFor(seed.Name)
		record.Value = seed.Value
		return record, nil
	}

	// named kinds: the value is the canonical surface name
	if seed.Name == "" {
		return entities.FactRecord{}, fmt.Errorf("%s seed needs a name", kind)
	}
	record.EntityKey = entities.EntityKeyFor(seed.Name)
	record.Value = seed.Name
	record.AliasesSeen = append([]string{seed.Name}, seed.Aliases...)
	return record, nil
}

// parseRank reads a rank the way chapters spell it, e.g.
// "Qi-Gathering, layer 3" or a bare tier label.
func (h *ImportHandler) parseRank(value string) (entities.Rank, error) {
	label := strings.TrimSpace(value)
	layer := 0
	if idx := strings.LastIndex(strings.ToLower(label), ", layer "); idx >= 0 {
		n, err := strconv.Atoi(strings.TrimSpace(label[idx+len(", layer "):]))
		if err != nil {
			return entities.Rank{}, fmt.Errorf("invalid rank %q", value)
		}
		layer = n
		label = strings.TrimSpace(label[:idx])
	}
	rank, ok := h.rules.RankScale.Rank(label, layer)
	if !ok {
		return entities.Rank{}, fmt.Errorf("unknown tier %q", label)
	}
	return rank, nil
}
