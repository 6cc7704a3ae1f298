package handlers

import (
	"context"

	"github.com/pennwright/saga/internal/domain/ports"
	"github.com/pennwright/saga/internal/domain/services"
)

// WriteHandler runs the workflow gate for one chapter.
type WriteHandler struct {
	gate   *services.Gate
	ledger ports.Ledger
}

// NewWriteHandler creates a new write handler.
func NewWriteHandler(gate *services.Gate, ledger ports.Ledger) *WriteHandler {
	return &WriteHandler{
		gate:   gate,
		ledger: ledger,
	}
}

// Handle generates, checks and commits the given chapter. Chapter 0 means
// "the next chapter after the highest committed one".
func (h *WriteHandler) Handle(ctx context.Context, chapter int, outline string) (*services.GateResult, error) {
	if chapter == 0 {
		next, err := h.NextChapter(ctx)
		if err != nil {
			return nil, err
		}
		chapter = next
	}
	return h.gate.RunChapter(ctx, chapter, outline)
}

// NextChapter returns the index the gate will accept next. Chapters that
// committed zero facts count, so the sequence never sticks on a quiet
// chapter.
func (h *WriteHandler) NextChapter(ctx context.Context) (int, error) {
	highest, err := services.HighestCommitted(ctx, h.ledger)
	if err != nil {
		return 0, err
	}
	return highest + 1, nil
}
