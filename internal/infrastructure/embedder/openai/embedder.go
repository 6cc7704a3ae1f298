// Package openai embeds entity surface names for the semantic alias index.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/infrastructure/config"
)

// VectorSize is the dimension of text-embedding-3-small vectors.
const VectorSize = 1536

// maxBatch caps names per embeddings request; a full alias sync over a long
// serial can exceed what one request accepts.
const maxBatch = 128

// Embedder turns surface names into vectors. Names are normalized before
// embedding so index lookups are insensitive to case and spacing, matching
// the lexical scorer.
type Embedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewEmbedder creates a new OpenAI name embedder.
func NewEmbedder(cfg config.EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	model := openai.SmallEmbedding3
	if cfg.Model != "" {
		model = openai.EmbeddingModel(cfg.Model)
	}

	return &Embedder{
		client: openai.NewClient(cfg.APIKey),
		model:  model,
	}, nil
}

// Embed generates a vector for one surface name.
func (e *Embedder) Embed(ctx context.Context, name string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{name})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates vectors for a list of surface names, preserving
// order. Requests are chunked so one call can cover every alias in the
// ledger.
func (e *Embedder) EmbedBatch(ctx context.Context, names []string) ([][]float32, error) {
	normalized, err := normalizeNames(names)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(normalized))
	for start := 0; start < len(normalized); start += maxBatch {
		end := start + maxBatch
		if end > len(normalized) {
			end = len(normalized)
		}
		batch := normalized[start:end]

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: e.model,
			Input: batch,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding %d name(s): %w", len(batch), err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("embedding response has %d vector(s) for %d name(s)",
				len(resp.Data), len(batch))
		}
		for _, data := range resp.Data {
			out = append(out, data.Embedding)
		}
	}
	return out, nil
}

// normalizeNames lowercases and trims each name. A blank name would embed
// to a meaningless vector, so it is rejected outright.
func normalizeNames(names []string) ([]string, error) {
	out := make([]string, len(names))
	for i, name := range names {
		n := entities.NormalizeName(name)
		if n == "" {
			return nil, fmt.Errorf("name %d is empty", i)
		}
		out[i] = n
	}
	return out, nil
}
