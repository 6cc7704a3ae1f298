// Package services contains domain business logic.
package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/ports"
)

// LexicalScorer scores name similarity without external services. The score
// is the better of a normalized edit-distance ratio and a token-overlap
// ratio, so both respellings ("Azure Blade Sect" for "Azure Sword Sect")
// and reorderings score high.
type LexicalScorer struct{}

// NewLexicalScorer creates a new lexical name scorer.
func NewLexicalScorer() *LexicalScorer {
	return &LexicalScorer{}
}

// Score compares two surface names.
func (s *LexicalScorer) Score(_ context.Context, a, b string) (float64, error) {
	na, nb := entities.NormalizeName(a), entities.NormalizeName(b)
	if na == "" || nb == "" {
		return 0, nil
	}
	if na == nb {
		return 1, nil
	}
	edit := editRatio(na, nb)
	overlap := tokenOverlap(na, nb)
	return math.Max(edit, overlap), nil
}

// editRatio is 1 - levenshtein/maxlen over runes.
func editRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// tokenOverlap is the Jaccard ratio over whitespace-split tokens.
func tokenOverlap(a, b string) float64 {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	shared := 0
	union := len(set)
	for _, t := range tb {
		if set[t] {
			shared++
		} else {
			union++
		}
	}
	return float64(shared) / float64(union)
}

// SemanticScorer scores name similarity by embedding both names and taking
// cosine similarity. It is the "semantic" similarity algorithm and needs a
// live embedding service.
type SemanticScorer struct {
	embedder ports.Embedder
}

// NewSemanticScorer creates a new embedding-backed name scorer.
func NewSemanticScorer(embedder ports.Embedder) *SemanticScorer {
	return &SemanticScorer{embedder: embedder}
}

// Score compares two surface names.
func (s *SemanticScorer) Score(ctx context.Context, a, b string) (float64, error) {
	vecs, err := s.embedder.EmbedBatch(ctx, []string{entities.NormalizeName(a), entities.NormalizeName(b)})
	if err != nil {
		return 0, fmt.Errorf("embedding names: %w", err)
	}
	if len(vecs) != 2 {
		return 0, fmt.Errorf("embedding names: expected 2 vectors, got %d", len(vecs))
	}
	return cosine(vecs[0], vecs[1]), nil
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
