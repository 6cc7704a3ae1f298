package ports

import (
	"context"

	"github.com/pennwright/saga/internal/domain/entities"
)

// AliasHit is one indexed name close to a query name.
type AliasHit struct {
	EntityKey string  `json:"entity_key"`
	Name      string  `json:"name"`
	Score     float64 `json:"score"` // cosine similarity, 0.0-1.0
}

// AliasIndex defines the interface for semantic nearest-name lookup. It
// backs the optional embedding-based similarity mode; the lexical mode
// never touches it.
type AliasIndex interface {
	// Save indexes one surface name for an entity.
	Save(ctx context.Context, kind entities.EntityKind, entityKey, name string, embedding []float32) error

	// Nearest returns the closest indexed names of a kind.
	Nearest(ctx context.Context, kind entities.EntityKind, embedding []float32, limit int) ([]AliasHit, error)

	// Delete removes every indexed name for an entity.
	Delete(ctx context.Context, entityKey string) error
}

// CollectionManager handles vector collection lifecycle operations,
// separate from AliasIndex so data operations stay implementation-neutral.
type CollectionManager interface {
	// EnsureCollection creates the collection if it doesn't exist.
	EnsureCollection(ctx context.Context, vectorSize uint64) error

	// DeleteCollection removes the collection and all its data.
	DeleteCollection(ctx context.Context) error
}
