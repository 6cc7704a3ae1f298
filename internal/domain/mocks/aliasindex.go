package mocks

import (
	"context"
	"math"
	"sort"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/ports"
)

type indexedName struct {
	kind      entities.EntityKind
	entityKey string
	name      string
	vector    []float32
}

// AliasIndex is a mock implementation of ports.AliasIndex using brute-force
// cosine similarity.
type AliasIndex struct {
	Err error

	names []indexedName
}

// NewAliasIndex creates a new mock AliasIndex.
func NewAliasIndex() *AliasIndex {
	return &AliasIndex{}
}

// Save indexes one surface name for an entity.
func (m *AliasIndex) Save(_ context.Context, kind entities.EntityKind, entityKey, name string, embedding []float32) error {
	if m.Err != nil {
		return m.Err
	}
	m.names = append(m.names, indexedName{kind: kind, entityKey: entityKey, name: name, vector: embedding})
	return nil
}

// Nearest returns the closest indexed names of a kind.
func (m *AliasIndex) Nearest(_ context.Context, kind entities.EntityKind, embedding []float32, limit int) ([]ports.AliasHit, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var hits []ports.AliasHit
	for _, n := range m.names {
		if n.kind != kind {
			continue
		}
		hits = append(hits, ports.AliasHit{
			EntityKey: n.entityKey,
			Name:      n.name,
			Score:     cosine(embedding, n.vector),
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Delete removes every indexed name for an entity.
func (m *AliasIndex) Delete(_ context.Context, entityKey string) error {
	if m.Err != nil {
		return m.Err
	}
	kept := m.names[:0]
	for _, n := range m.names {
		if n.entityKey != entityKey {
			kept = append(kept, n)
		}
	}
	m.names = kept
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
