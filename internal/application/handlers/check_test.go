package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/mocks"
	"github.com/pennwright/saga/internal/domain/ports"
	"github.com/pennwright/saga/internal/domain/services"
)

func newTestGate(ledger ports.Ledger, gen ports.ChapterGenerator, rules entities.Rules) *services.Gate {
	constraints := services.NewConstraintService(ledger, rules)
	extractor := services.NewExtractor(rules)
	checker := services.NewChecker(services.NewLexicalScorer(), rules)
	return services.NewGate(gen, ledger, constraints, extractor, checker, rules)
}

func TestCheckHandler_ReportsWithoutCommitting(t *testing.T) {
	ledger := mocks.NewLedger()
	rules := entities.DefaultRules()
	handler := NewCheckHandler(newTestGate(ledger, mocks.NewGenerator(), rules), rules)

	path := writeSeedFile(t, "chapter.md", "Day 1. Lin Feng trained quietly in the Azure Sword Sect.")

	result, err := handler.Handle(context.Background(), path, 1, CheckOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Report.Violations)
	assert.NotEmpty(t, result.Report.Proposed)
	assert.False(t, result.Committed)
	assert.Empty(t, ledger.Facts)
}

func TestCheckHandler_CommitsCleanReport(t *testing.T) {
	ledger := mocks.NewLedger()
	rules := entities.DefaultRules()
	handler := NewCheckHandler(newTestGate(ledger, mocks.NewGenerator(), rules), rules)

	path := writeSeedFile(t, "chapter.md", "Day 1. Lin Feng trained quietly in the Azure Sword Sect.")

	result, err := handler.Handle(context.Background(), path, 1, CheckOptions{Commit: true})
	require.NoError(t, err)
	assert.True(t, result.Committed)
	assert.NotEmpty(t, ledger.Facts)
}

func TestCheckHandler_BlockingReportIsNeverCommitted(t *testing.T) {
	ledger := mocks.NewLedger()
	rules := entities.DefaultRules()
	require.NoError(t, ledger.CommitFacts(context.Background(), 1, []entities.FactRecord{{
		ID:           "f-1",
		Kind:         entities.KindCharacter,
		EntityKey:    "lin feng",
		Value:        "Lin Feng",
		ChapterIndex: 1,
		AliasesSeen:  []string{"Lin Feng"},
	}}))
	handler := NewCheckHandler(newTestGate(ledger, mocks.NewGenerator(), rules), rules)

	path := writeSeedFile(t, "chapter.md", "Day 2. Lin Wind drew his sword and smiled.")

	result, err := handler.Handle(context.Background(), path, 2, CheckOptions{Commit: true})
	require.NoError(t, err)
	require.NotEmpty(t, result.Report.Violations)
	assert.Equal(t, entities.CategoryCharacterName, result.Report.Violations[0].Category)
	assert.False(t, result.Committed)
	assert.Len(t, ledger.Facts, 1)
}

func TestCheckHandler_MissingFile(t *testing.T) {
	rules := entities.DefaultRules()
	handler := NewCheckHandler(newTestGate(mocks.NewLedger(), mocks.NewGenerator(), rules), rules)

	_, err := handler.Handle(context.Background(), "/nonexistent/chapter.md", 1, CheckOptions{})
	require.Error(t, err)
}
