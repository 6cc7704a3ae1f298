package ports

import "context"

// GenerationRequest carries everything the writer model needs for one
// chapter attempt. Feedback is empty on the first attempt and holds the
// prior attempt's violation callouts on retries.
type GenerationRequest struct {
	ChapterIndex int      `json:"chapter_index"`
	Outline      string   `json:"outline"`
	Constraints  string   `json:"constraints,omitempty"`
	Feedback     []string `json:"feedback,omitempty"`
}

// ChapterGenerator defines the interface for producing chapter prose.
type ChapterGenerator interface {
	// GenerateChapter produces the chapter text for one attempt.
	GenerateChapter(ctx context.Context, req GenerationRequest) (string, error)
}
