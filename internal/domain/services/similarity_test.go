package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennwright/saga/internal/domain/mocks"
)

func TestLexicalScorer_Score(t *testing.T) {
	scorer := NewLexicalScorer()
	ctx := context.Background()

	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{name: "identical", a: "Lin Feng", b: "Lin Feng", min: 1, max: 1},
		{name: "case and spacing", a: "  lin feng ", b: "Lin Feng", min: 1, max: 1},
		{name: "translated given name", a: "Lin Wind", b: "Lin Feng", min: 0.55, max: 0.85},
		{name: "swapped faction word", a: "Azure Blade Sect", b: "Azure Sword Sect", min: 0.55, max: 0.85},
		{name: "unrelated", a: "Lin Feng", b: "Azure Sword Sect", min: 0, max: 0.4},
		{name: "empty", a: "", b: "Lin Feng", min: 0, max: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scorer.Score(ctx, tt.a, tt.b)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestLexicalScorer_Symmetric(t *testing.T) {
	scorer := NewLexicalScorer()
	ctx := context.Background()

	ab, err := scorer.Score(ctx, "Lin Wind", "Lin Feng")
	require.NoError(t, err)
	ba, err := scorer.Score(ctx, "Lin Feng", "Lin Wind")
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
}

func TestSemanticScorer_Score(t *testing.T) {
	embedder := mocks.NewEmbedder()
	embedder.Vectors["lin feng"] = []float32{1, 0, 0}
	embedder.Vectors["lin wind"] = []float32{0.9, 0.1, 0}
	embedder.Vectors["azure sword sect"] = []float32{0, 1, 0}

	scorer := NewSemanticScorer(embedder)
	ctx := context.Background()

	same, err := scorer.Score(ctx, "Lin Feng", "Lin Feng")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, same, 1e-9)

	near, err := scorer.Score(ctx, "Lin Feng", "Lin Wind")
	require.NoError(t, err)
	assert.Greater(t, near, 0.9)

	far, err := scorer.Score(ctx, "Lin Feng", "Azure Sword Sect")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, far, 1e-9)
}

func TestSemanticScorer_EmbedderError(t *testing.T) {
	embedder := mocks.NewEmbedder()
	embedder.Err = assert.AnError

	scorer := NewSemanticScorer(embedder)
	_, err := scorer.Score(context.Background(), "a", "b")
	require.Error(t, err)
}
