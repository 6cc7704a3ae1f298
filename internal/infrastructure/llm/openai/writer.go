// Package openai provides a ChapterGenerator implementation using OpenAI.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/pennwright/saga/internal/domain/ports"
	"github.com/pennwright/saga/internal/infrastructure/config"
)

const writerPrompt = `You are a serial fiction writer for a long-running eastern-fantasy web novel.
Write the requested chapter in third person past tense, roughly 800-1500 words.

Rules:
- Follow the chapter outline.
- Obey every continuity constraint exactly: established names, ranks,
  constitutions and the story calendar are canon and must not change.
- Include a "Day N" timestamp for the story calendar.
- When a character loses power or changes in nature, state the cause in the text.

Return only the chapter prose, no headings or commentary.`

// Writer implements the ChapterGenerator interface using OpenAI.
type Writer struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewWriter creates a new OpenAI chapter writer.
func NewWriter(cfg config.WriterConfig) (*Writer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	client := openai.NewClient(cfg.APIKey)

	model := "gpt-4o-mini"
	if cfg.Model != "" {
		model = cfg.Model
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.8
	}

	return &Writer{
		client:      client,
		model:       model,
		temperature: temperature,
	}, nil
}

// GenerateChapter produces the chapter text for one attempt.
func (w *Writer) GenerateChapter(ctx context.Context, req ports.GenerationRequest) (string, error) {
	resp, err := w.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: w.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: writerPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildUserPrompt(req),
			},
		},
		Temperature: w.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("calling OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// BuildUserPrompt assembles the per-attempt prompt: outline, constraint
// block, and any violation feedback from the previous attempt.
func BuildUserPrompt(req ports.GenerationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write chapter %d.\n\n## Outline\n%s\n", req.ChapterIndex, req.Outline)

	if req.Constraints != "" {
		b.WriteString("\n")
		b.WriteString(req.Constraints)
	}
	if len(req.Feedback) > 0 {
		b.WriteString("\n## Revision notes\n")
		b.WriteString("Your previous draft was rejected. Fix every item below:\n")
		for _, f := range req.Feedback {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String()
}
