package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/ports"
	"github.com/pennwright/saga/internal/infrastructure/config"
)

func TestBuildScorer(t *testing.T) {
	cfg := config.Default()

	for _, algorithm := range []string{"", "lexical"} {
		rules := entities.DefaultRules()
		rules.Similarity.Algorithm = algorithm
		scorer, err := buildScorer(cfg, rules)
		require.NoError(t, err)
		assert.NotNil(t, scorer)
	}

	rules := entities.DefaultRules()
	rules.Similarity.Algorithm = "semantic"
	_, err := buildScorer(cfg, rules) // no embedder API key configured
	require.Error(t, err)

	rules.Similarity.Algorithm = "phonetic"
	_, err = buildScorer(cfg, rules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown similarity algorithm")
}

func TestUnavailableGenerator(t *testing.T) {
	gen := unavailableGenerator{err: errors.New("no API key")}

	_, err := gen.GenerateChapter(context.Background(), ports.GenerationRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chapter writer unavailable")
}

func TestSessionHolder(t *testing.T) {
	holder := sessionHolder()
	assert.NotEmpty(t, holder)
	assert.Equal(t, holder, sessionHolder())
}
