package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/mocks"
)

func seededHistoryLedger(t *testing.T) *mocks.Ledger {
	t.Helper()
	ledger := mocks.NewLedger()
	ctx := context.Background()

	require.NoError(t, ledger.CommitFacts(ctx, 1, []entities.FactRecord{
		{ID: "f-1", Kind: entities.KindCharacter, EntityKey: "lin feng", Value: "Lin Feng", ChapterIndex: 1},
		{ID: "f-2", Kind: entities.KindCharacter, EntityKey: "su yan", Value: "Su Yan", ChapterIndex: 1},
	}))
	require.NoError(t, ledger.CommitFacts(ctx, 2, []entities.FactRecord{
		{ID: "f-3", Kind: entities.KindCharacter, EntityKey: "lin feng", Value: "Lin Feng", ChapterIndex: 2},
	}))
	return ledger
}

func TestHistoryHandler_EntityHistory(t *testing.T) {
	handler := NewHistoryHandler(seededHistoryLedger(t))

	// keys are matched case-insensitively
	history, err := handler.Handle(context.Background(), "character", "Lin Feng")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].ChapterIndex)
	assert.Equal(t, 2, history[1].ChapterIndex)
}

func TestHistoryHandler_KindOverview(t *testing.T) {
	handler := NewHistoryHandler(seededHistoryLedger(t))

	current, err := handler.Handle(context.Background(), "character", "")
	require.NoError(t, err)
	require.Len(t, current, 2)
	assert.Equal(t, "lin feng", current[0].EntityKey)
	assert.Equal(t, 2, current[0].ChapterIndex)
}

func TestHistoryHandler_UnknownKind(t *testing.T) {
	handler := NewHistoryHandler(mocks.NewLedger())

	_, err := handler.Handle(context.Background(), "dragon", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}
