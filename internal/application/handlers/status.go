package handlers

import (
	"context"
	"fmt"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/ports"
	"github.com/pennwright/saga/internal/domain/services"
)

// StatusHandler reports ledger and chapter workflow state.
type StatusHandler struct {
	ledger ports.Ledger
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(ledger ports.Ledger) *StatusHandler {
	return &StatusHandler{ledger: ledger}
}

// StatusResult is an overview of the project's narrative state.
// HighestChapter counts committed chapters, zero-fact ones included, and is
// 0 for a fresh project.
type StatusResult struct {
	Chapters       []entities.ChapterRecord
	HighestChapter int
	CurrentDay     int
	FactCounts     map[entities.EntityKind]int
}

// Handle collects the chapter state machine view plus fact counts per kind.
func (h *StatusHandler) Handle(ctx context.Context) (*StatusResult, error) {
	chapters, err := h.ledger.ListChapters(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing chapters: %w", err)
	}

	highest, err := services.HighestCommitted(ctx, h.ledger)
	if err != nil {
		return nil, err
	}

	day, err := h.ledger.CurrentDay(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading current day: %w", err)
	}

	counts := make(map[entities.EntityKind]int)
	facts, err := h.ledger.ListFacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing facts: %w", err)
	}
	for _, f := range facts {
		counts[f.Kind]++
	}

	return &StatusResult{
		Chapters:       chapters,
		HighestChapter: highest,
		CurrentDay:     day,
		FactCounts:     counts,
	}, nil
}
