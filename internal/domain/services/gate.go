package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/ports"
)

// Gate runs the generate-check-commit workflow for one chapter. It is the
// only component that writes facts: the extractor and checker propose, the
// gate disposes.
type Gate struct {
	generator   ports.ChapterGenerator
	ledger      ports.Ledger
	constraints *ConstraintService
	extractor   *Extractor
	checker     *Checker
	rules       entities.Rules
}

// NewGate creates a new workflow gate.
func NewGate(generator ports.ChapterGenerator, ledger ports.Ledger, constraints *ConstraintService, extractor *Extractor, checker *Checker, rules entities.Rules) *Gate {
	return &Gate{
		generator:   generator,
		ledger:      ledger,
		constraints: constraints,
		extractor:   extractor,
		checker:     checker,
		rules:       rules,
	}
}

// GateResult is the outcome of one chapter run.
type GateResult struct {
	ChapterIndex int                        `json:"chapter_index"`
	Status       entities.ChapterStatus     `json:"status"`
	Attempts     int                        `json:"attempts"`
	Report       *entities.ValidationReport `json:"report,omitempty"`
	Text         string                     `json:"text,omitempty"`
}

// RunChapter drives one chapter through the workflow: generate, check, and
// either commit, retry with violation feedback, or escalate when the retry
// budget runs out. Escalation is an outcome, not an error.
func (g *Gate) RunChapter(ctx context.Context, index int, outline string) (*GateResult, error) {
	if err := g.checkOrder(ctx, index); err != nil {
		return nil, err
	}

	record := &entities.ChapterRecord{Index: index, Status: entities.StatusPending}
	if prev, err := g.ledger.GetChapter(ctx, index); err != nil {
		return nil, fmt.Errorf("loading chapter %d: %w", index, err)
	} else if prev != nil {
		if prev.Status != entities.StatusEscalated {
			return nil, fmt.Errorf("chapter %d already %s", index, prev.Status)
		}
		// Escalated chapters may be retried from scratch.
		record = prev
		if err := g.setStatus(ctx, record, entities.StatusPending, "retrying escalated chapter"); err != nil {
			return nil, err
		}
		record.Attempts = 0
	}

	set, err := g.constraints.Constraints(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("deriving constraints: %w", err)
	}
	snap, err := g.constraints.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	threshold := g.rules.BlockingSeverity()
	var feedback []string
	var lastReport *entities.ValidationReport
	var lastText string

	for attempt := 1; attempt <= g.rules.Gate.MaxRetries; attempt++ {
		record.Attempts = attempt
		if err := g.setStatus(ctx, record, entities.StatusGenerating,
			fmt.Sprintf("attempt %d of %d", attempt, g.rules.Gate.MaxRetries)); err != nil {
			return nil, err
		}

		text, err := g.generator.GenerateChapter(ctx, ports.GenerationRequest{
			ChapterIndex: index,
			Outline:      outline,
			Constraints:  set.PromptText(),
			Feedback:     feedback,
		})
		if err != nil {
			return nil, fmt.Errorf("generating chapter %d: %w", index, err)
		}
		lastText = text

		if err := g.setStatus(ctx, record, entities.StatusChecking, ""); err != nil {
			return nil, err
		}
		ext := g.extractor.Extract(text, index, snap.Known())
		report, err := g.checker.Check(ctx, index, ext, snap)
		if err != nil {
			return nil, fmt.Errorf("checking chapter %d: %w", index, err)
		}
		record.Report = report
		lastReport = report

		if !report.Blocking(threshold) {
			if err := g.commit(ctx, index, report); err != nil {
				return nil, err
			}
			if err := g.setStatus(ctx, record, entities.StatusCommitted,
				fmt.Sprintf("%d fact(s) committed", len(report.Proposed))); err != nil {
				return nil, err
			}
			return &GateResult{
				ChapterIndex: index,
				Status:       entities.StatusCommitted,
				Attempts:     attempt,
				Report:       report,
				Text:         text,
			}, nil
		}

		blocking := report.BlockingViolations(threshold)
		feedback = feedback[:0]
		for _, v := range blocking {
			feedback = append(feedback, v.ConstraintCallout())
		}
		if attempt < g.rules.Gate.MaxRetries {
			if err := g.setStatus(ctx, record, entities.StatusRevisionRequested,
				fmt.Sprintf("%d blocking violation(s)", len(blocking))); err != nil {
				return nil, err
			}
		}
	}

	// Retry budget exhausted with blocking violations still present.
	// Nothing is committed; a human takes over.
	if err := g.setStatus(ctx, record, entities.StatusEscalated,
		fmt.Sprintf("escalated after %d attempt(s)", record.Attempts)); err != nil {
		return nil, err
	}
	return &GateResult{
		ChapterIndex: index,
		Status:       entities.StatusEscalated,
		Attempts:     record.Attempts,
		Report:       lastReport,
		Text:         lastText,
	}, nil
}

// CheckText validates externally written prose against committed history
// without generating or committing anything.
func (g *Gate) CheckText(ctx context.Context, index int, text string) (*entities.ValidationReport, error) {
	snap, err := g.constraints.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	ext := g.extractor.Extract(text, index, snap.Known())
	return g.checker.Check(ctx, index, ext, snap)
}

// CommitReport commits a previously produced report's facts, for accepting
// hand-checked prose.
func (g *Gate) CommitReport(ctx context.Context, index int, report *entities.ValidationReport) error {
	if err := g.checkOrder(ctx, index); err != nil {
		return err
	}
	if err := g.commit(ctx, index, report); err != nil {
		return err
	}
	record := &entities.ChapterRecord{
		Index:     index,
		Status:    entities.StatusCommitted,
		Attempts:  1,
		Report:    report,
		UpdatedAt: time.Now(),
	}
	if err := g.ledger.SaveChapter(ctx, record); err != nil {
		return fmt.Errorf("saving chapter %d: %w", index, err)
	}
	return g.audit(ctx, index, "committed", fmt.Sprintf("%d fact(s) committed", len(report.Proposed)))
}

func (g *Gate) commit(ctx context.Context, index int, report *entities.ValidationReport) error {
	if err := g.ledger.CommitFacts(ctx, index, report.Proposed); err != nil {
		return fmt.Errorf("committing chapter %d: %w", index, err)
	}
	for _, link := range report.Identities {
		if err := g.ledger.SaveIdentity(ctx, link.CanonicalKey, link.OtherKey, index); err != nil {
			return fmt.Errorf("saving identity %s=%s: %w", link.CanonicalKey, link.OtherKey, err)
		}
	}
	return nil
}

func (g *Gate) checkOrder(ctx context.Context, index int) error {
	highest, err := HighestCommitted(ctx, g.ledger)
	if err != nil {
		return err
	}
	if index != highest+1 {
		return &entities.OrderingError{ChapterIndex: index, HighestIndex: highest}
	}
	return nil
}

// HighestCommitted returns the highest chapter that has landed. The facts
// table alone is not enough: a chapter whose report proposed no facts is
// still committed and still advances the sequence.
func HighestCommitted(ctx context.Context, ledger ports.Ledger) (int, error) {
	highest, err := ledger.HighestChapter(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading highest chapter: %w", err)
	}
	if highest < 0 {
		highest = 0
	}
	chapters, err := ledger.ListChapters(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading chapters: %w", err)
	}
	for _, ch := range chapters {
		if ch.Status == entities.StatusCommitted && ch.Index > highest {
			highest = ch.Index
		}
	}
	return highest, nil
}

func (g *Gate) setStatus(ctx context.Context, record *entities.ChapterRecord, to entities.ChapterStatus, detail string) error {
	if record.Status != to && !entities.CanTransition(record.Status, to) {
		return fmt.Errorf("chapter %d: illegal transition %s -> %s", record.Index, record.Status, to)
	}
	record.Status = to
	record.UpdatedAt = time.Now()
	if err := g.ledger.SaveChapter(ctx, record); err != nil {
		return fmt.Errorf("saving chapter %d: %w", record.Index, err)
	}
	return g.audit(ctx, record.Index, string(to), detail)
}

func (g *Gate) audit(ctx context.Context, index int, action, detail string) error {
	if err := g.ledger.LogAction(ctx, &ports.AuditEntry{
		ID:           uuid.New().String(),
		ChapterIndex: index,
		Action:       action,
		Detail:       detail,
		CreatedAt:    time.Now(),
	}); err != nil {
		return fmt.Errorf("logging %s for chapter %d: %w", action, index, err)
	}
	return nil
}
