package entities

import (
	"strings"
	"time"
)

// FactTag marks a committed record as narratively justified where the rules
// would otherwise flag it. The marker vocabulary that produces these tags is
// configuration, not code.
type FactTag string

const (
	// TagCostJustified marks a power regression (injury, seal, sacrifice)
	// that the chapter text explicitly paid for.
	TagCostJustified FactTag = "cost_justified"
	// TagJustifiedChange marks an explicit, foreshadowed constitution change.
	TagJustifiedChange FactTag = "justified_change"
	// TagSeed marks records imported from project seed files (chapter 0).
	TagSeed FactTag = "seed"
)

// FactRecord is the atomic unit of narrative history: one committed
// observation of an entity's state at a given chapter. Records are
// append-only; corrections reference the superseded record via CorrectionOf
// rather than mutating it.
type FactRecord struct {
	ID           string     `json:"id"`
	Kind         EntityKind `json:"kind"`
	EntityKey    string     `json:"entity_key"`
	Value        string     `json:"value"`
	Rank         *Rank      `json:"rank,omitempty"` // set for KindPowerLevel
	Day          int        `json:"day,omitempty"`  // set for KindStoryTime
	ChapterIndex int        `json:"chapter_index"`
	AliasesSeen  []string   `json:"aliases_seen,omitempty"`
	Tags         []FactTag  `json:"tags,omitempty"`
	CorrectionOf string     `json:"correction_of,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// HasTag reports whether the record carries the given tag.
func (f *FactRecord) HasTag(tag FactTag) bool {
	for _, t := range f.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// EntityKeyFor derives the canonical entity key from a first-seen surface
// name. Keys are assigned once and never change for the entity's lifetime.
func EntityKeyFor(name string) string {
	return NormalizeName(name)
}

// NormalizeName lowercases and trims a surface name for matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Span locates a piece of evidence inside chapter text.
type Span struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Excerpt string `json:"excerpt,omitempty"`
}

// CandidateFact is an extracted, uncommitted observation. Only the Workflow
// Gate turns candidates into committed FactRecords.
type CandidateFact struct {
	FactRecord
	Confidence float64 `json:"confidence"` // pattern exactness, 0.0-1.0
	Evidence   Span    `json:"evidence"`
	NewEntity  bool    `json:"new_entity"` // no existing entity matched
}
