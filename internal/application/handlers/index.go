package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/ports"
)

// IndexHandler maintains the semantic alias index over committed surface
// names. The lexical similarity mode never needs it.
type IndexHandler struct {
	ledger   ports.Ledger
	embedder ports.Embedder
	index    ports.AliasIndex
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(ledger ports.Ledger, embedder ports.Embedder, index ports.AliasIndex) *IndexHandler {
	return &IndexHandler{
		ledger:   ledger,
		embedder: embedder,
		index:    index,
	}
}

// Sync indexes every committed surface name of every named kind. Existing
// entries for an entity are replaced. Returns the number of names indexed.
func (h *IndexHandler) Sync(ctx context.Context) (int, error) {
	indexed := 0
	for _, kind := range entities.NamedKinds {
		aliases, err := h.ledger.AllAliases(ctx, kind)
		if err != nil {
			return indexed, fmt.Errorf("loading %s aliases: %w", kind, err)
		}
		for key, names := range aliases {
			if err := h.index.Delete(ctx, key); err != nil {
				return indexed, fmt.Errorf("clearing index for %s: %w", key, err)
			}
			vectors, err := h.embedder.EmbedBatch(ctx, names)
			if err != nil {
				return indexed, fmt.Errorf("embedding names for %s: %w", key, err)
			}
			if len(vectors) != len(names) {
				return indexed, fmt.Errorf("embedding names for %s: got %d vectors for %d names", key, len(vectors), len(names))
			}
			for i, name := range names {
				if err := h.index.Save(ctx, kind, key, name, vectors[i]); err != nil {
					return indexed, fmt.Errorf("indexing %q: %w", name, err)
				}
				indexed++
			}
		}
	}
	return indexed, nil
}

// Similar returns the indexed names closest to a query name.
func (h *IndexHandler) Similar(ctx context.Context, kindStr, name string, limit int) ([]ports.AliasHit, error) {
	kind := entities.EntityKind(strings.ToLower(strings.TrimSpace(kindStr)))
	if !kind.Named() {
		return nil, fmt.Errorf("kind %q has no alias index", kindStr)
	}
	if limit < 1 {
		limit = 5
	}

	vector, err := h.embedder.Embed(ctx, entities.NormalizeName(name))
	if err != nil {
		return nil, fmt.Errorf("embedding query name: %w", err)
	}
	return h.index.Nearest(ctx, kind, vector, limit)
}
