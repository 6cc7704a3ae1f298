package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/services"
)

// CheckHandler validates externally written prose against the ledger.
type CheckHandler struct {
	gate  *services.Gate
	rules entities.Rules
}

// NewCheckHandler creates a new check handler.
func NewCheckHandler(gate *services.Gate, rules entities.Rules) *CheckHandler {
	return &CheckHandler{
		gate:  gate,
		rules: rules,
	}
}

// CheckOptions controls check behavior.
type CheckOptions struct {
	Commit bool // Commit the proposed facts when nothing blocks
}

// CheckResult contains the result of checking one file.
type CheckResult struct {
	Report    *entities.ValidationReport
	Committed bool
}

// Handle checks a chapter file. With Commit set, a clean report's facts are
// committed exactly as the gate would commit them.
func (h *CheckHandler) Handle(ctx context.Context, filePath string, chapter int, opts CheckOptions) (*CheckResult, error) {
	text, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	report, err := h.gate.CheckText(ctx, chapter, string(text))
	if err != nil {
		return nil, err
	}

	result := &CheckResult{Report: report}
	if !opts.Commit {
		return result, nil
	}
	if report.Blocking(h.rules.BlockingSeverity()) {
		return result, nil
	}

	if err := h.gate.CommitReport(ctx, chapter, report); err != nil {
		return nil, err
	}
	result.Committed = true
	return result, nil
}
