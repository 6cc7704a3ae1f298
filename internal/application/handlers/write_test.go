package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/mocks"
)

func TestWriteHandler_RunsNextChapter(t *testing.T) {
	ledger := mocks.NewLedger()
	rules := entities.DefaultRules()
	gen := mocks.NewGenerator("Day 1. Lin Feng trained quietly in the Azure Sword Sect.")
	handler := NewWriteHandler(newTestGate(ledger, gen, rules), ledger)

	// chapter 0 means "whatever comes next", here the first chapter
	result, err := handler.Handle(context.Background(), 0, "Lin Feng joins the sect.")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChapterIndex)
	assert.Equal(t, entities.StatusCommitted, result.Status)
	assert.NotEmpty(t, ledger.Facts)
}

func TestWriteHandler_NextChapterAfterCommit(t *testing.T) {
	ledger := mocks.NewLedger()
	require.NoError(t, ledger.CommitFacts(context.Background(), 3, []entities.FactRecord{{
		ID:           "f-1",
		Kind:         entities.KindCharacter,
		EntityKey:    "lin feng",
		Value:        "Lin Feng",
		ChapterIndex: 3,
	}}))
	handler := NewWriteHandler(nil, ledger)

	next, err := handler.NextChapter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, next)
}

// A committed chapter with zero facts still moves the next-chapter cursor.
func TestWriteHandler_NextChapterAfterQuietCommit(t *testing.T) {
	ctx := context.Background()
	ledger := mocks.NewLedger()
	require.NoError(t, ledger.CommitFacts(ctx, 1, []entities.FactRecord{{
		ID:           "f-1",
		Kind:         entities.KindCharacter,
		EntityKey:    "lin feng",
		Value:        "Lin Feng",
		ChapterIndex: 1,
	}}))
	require.NoError(t, ledger.SaveChapter(ctx, &entities.ChapterRecord{
		Index:  2,
		Status: entities.StatusCommitted,
	}))
	handler := NewWriteHandler(nil, ledger)

	next, err := handler.NextChapter(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, next)
}

func TestWriteHandler_ExplicitChapterOutOfOrder(t *testing.T) {
	ledger := mocks.NewLedger()
	rules := entities.DefaultRules()
	handler := NewWriteHandler(newTestGate(ledger, mocks.NewGenerator("x"), rules), ledger)

	_, err := handler.Handle(context.Background(), 5, "outline")
	var ordErr *entities.OrderingError
	require.ErrorAs(t, err, &ordErr)
}
