package ports

import "context"

// NameScorer defines the interface for name-similarity scoring used by
// fuzzy-match detection. Scores are in [0, 1], 1 meaning identical.
type NameScorer interface {
	// Score compares two surface names.
	Score(ctx context.Context, a, b string) (float64, error)
}
