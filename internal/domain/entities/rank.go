package entities

import "fmt"

// Rank is a position on the ordered power progression scale: a major tier
// plus a numeric layer within it.
type Rank struct {
	Tier  int    `json:"tier"`
	Layer int    `json:"layer"`
	Label string `json:"label"` // tier label from the configured vocabulary
}

// Steps converts the rank to an absolute index on the scale, so that rank
// deltas can be compared against the configured maximum step.
func (r Rank) Steps(layersPerTier int) int {
	if layersPerTier < 1 {
		layersPerTier = 1
	}
	return r.Tier*layersPerTier + r.Layer
}

// String renders the rank the way chapters spell it, e.g.
// "Qi-Gathering, layer 3".
func (r Rank) String() string {
	if r.Layer == 0 {
		return r.Label
	}
	return fmt.Sprintf("%s, layer %d", r.Label, r.Layer)
}

// RankScale is the per-genre ordered vocabulary of progression tiers.
type RankScale struct {
	Tiers         []string `yaml:"tiers" json:"tiers"`
	LayersPerTier int      `yaml:"layers_per_tier" json:"layers_per_tier"`
}

// TierIndex returns the position of a tier label on the scale,
// case-insensitively. The second return is false for unknown labels.
func (s RankScale) TierIndex(label string) (int, bool) {
	norm := NormalizeName(label)
	for i, t := range s.Tiers {
		if NormalizeName(t) == norm {
			return i, true
		}
	}
	return 0, false
}

// Rank builds a Rank from a tier label and layer number. Layer 0 means the
// chapter named only the tier.
func (s RankScale) Rank(label string, layer int) (Rank, bool) {
	tier, ok := s.TierIndex(label)
	if !ok {
		return Rank{}, false
	}
	return Rank{Tier: tier, Layer: layer, Label: s.Tiers[tier]}, true
}

// StepsBetween returns how many absolute steps separate two ranks
// (positive when b is above a).
func (s RankScale) StepsBetween(a, b Rank) int {
	return b.Steps(s.LayersPerTier) - a.Steps(s.LayersPerTier)
}
