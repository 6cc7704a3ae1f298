package entities

import "time"

// ChapterStatus is a chapter's position in the generation workflow.
type ChapterStatus string

const (
	StatusPending           ChapterStatus = "pending"
	StatusGenerating        ChapterStatus = "generating"
	StatusChecking          ChapterStatus = "checking"
	StatusCommitted         ChapterStatus = "committed"
	StatusRevisionRequested ChapterStatus = "revision_requested"
	// StatusEscalated means the retry budget ran out with blocking
	// violations still present. The chapter is parked for a human.
	StatusEscalated ChapterStatus = "revision_needed"
)

// transitions is the full workflow state machine. Committed and Escalated
// are terminal except that an escalated chapter can be retried from pending.
var transitions = map[ChapterStatus][]ChapterStatus{
	StatusPending:           {StatusGenerating},
	StatusGenerating:        {StatusChecking},
	StatusChecking:          {StatusCommitted, StatusRevisionRequested, StatusEscalated},
	StatusRevisionRequested: {StatusGenerating},
	StatusEscalated:         {StatusPending},
	StatusCommitted:         {},
}

// CanTransition reports whether the workflow allows moving from one status
// to another.
func CanTransition(from, to ChapterStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends the automated workflow.
func (s ChapterStatus) Terminal() bool {
	return s == StatusCommitted || s == StatusEscalated
}

// ChapterRecord tracks one chapter's workflow state and its latest
// validation outcome. Index 0 is reserved for imported seed facts.
type ChapterRecord struct {
	Index     int               `json:"index"`
	Status    ChapterStatus     `json:"status"`
	Attempts  int               `json:"attempts"`
	Report    *ValidationReport `json:"report,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}
