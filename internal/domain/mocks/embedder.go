package mocks

import "context"

// Embedder is a mock implementation of ports.Embedder. It returns a fixed
// vector per text, falling back to Default.
type Embedder struct {
	Vectors map[string][]float32
	Default []float32
	Err     error
}

// NewEmbedder creates a new mock Embedder.
func NewEmbedder() *Embedder {
	return &Embedder{
		Vectors: make(map[string][]float32),
		Default: []float32{0.1, 0.2, 0.3},
	}
}

// Embed generates a vector embedding for the given text.
func (m *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if v, ok := m.Vectors[text]; ok {
		return v, nil
	}
	return m.Default, nil
}

// EmbedBatch generates vector embeddings for multiple texts.
func (m *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
