package mocks

import (
	"context"

	"github.com/pennwright/saga/internal/domain/ports"
)

// Generator is a mock implementation of ports.ChapterGenerator. Each call
// returns the next scripted output, repeating the last one when the script
// runs out.
type Generator struct {
	Outputs  []string
	Requests []ports.GenerationRequest
	Err      error

	calls int
}

// NewGenerator creates a new mock Generator.
func NewGenerator(outputs ...string) *Generator {
	return &Generator{Outputs: outputs}
}

// GenerateChapter produces the chapter text for one attempt.
func (m *Generator) GenerateChapter(_ context.Context, req ports.GenerationRequest) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.Requests = append(m.Requests, req)
	if len(m.Outputs) == 0 {
		return "", nil
	}
	i := m.calls
	if i >= len(m.Outputs) {
		i = len(m.Outputs) - 1
	}
	m.calls++
	return m.Outputs[i], nil
}

// Calls returns how many times GenerateChapter was invoked.
func (m *Generator) Calls() int {
	return m.calls
}
