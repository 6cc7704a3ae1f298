package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/ports"
)

// HistoryHandler reads entity history from the ledger.
type HistoryHandler struct {
	ledger ports.Ledger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(ledger ports.Ledger) *HistoryHandler {
	return &HistoryHandler{ledger: ledger}
}

// Handle returns an entity's full history, or the current record of every
// entity of the kind when key is empty.
func (h *HistoryHandler) Handle(ctx context.Context, kindStr, key string) ([]entities.FactRecord, error) {
	kind := entities.EntityKind(strings.ToLower(strings.TrimSpace(kindStr)))
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown kind %q (valid: %s)", kindStr, kindList())
	}

	if key == "" {
		return h.ledger.CurrentByKind(ctx, kind)
	}
	return h.ledger.History(ctx, kind, entities.NormalizeName(key))
}

func kindList() string {
	names := make([]string, len(entities.Kinds))
	for i, k := range entities.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
