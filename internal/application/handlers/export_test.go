package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/mocks"
)

func seededExportLedger(t *testing.T) *mocks.Ledger {
	t.Helper()
	ledger := mocks.NewLedger()
	require.NoError(t, ledger.CommitFacts(context.Background(), 1, []entities.FactRecord{
		{
			ID: "f-1", Kind: entities.KindCharacter, EntityKey: "lin feng",
			Value: "Lin Feng", ChapterIndex: 1, AliasesSeen: []string{"Lin Feng", "Brother Lin"},
		},
		{
			ID: "f-2", Kind: entities.KindStoryTime, EntityKey: "story",
			Value: "day 5", Day: 5, ChapterIndex: 1,
		},
	}))
	return ledger
}

func TestExportHandler_Markdown(t *testing.T) {
	handler := NewExportHandler(seededExportLedger(t))

	var buf bytes.Buffer
	require.NoError(t, handler.Handle(context.Background(), &buf, "markdown"))

	out := buf.String()
	assert.Contains(t, out, "# Setting Manual")
	assert.Contains(t, out, "Story day: 5")
	assert.Contains(t, out, "## Characters")
	assert.Contains(t, out, "Lin Feng, Brother Lin")
	assert.Contains(t, out, "## Story Calendar")
}

func TestExportHandler_JSON(t *testing.T) {
	handler := NewExportHandler(seededExportLedger(t))

	var buf bytes.Buffer
	require.NoError(t, handler.Handle(context.Background(), &buf, "json"))

	var facts []entities.FactRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &facts))
	require.Len(t, facts, 2)
	assert.Equal(t, "lin feng", facts[0].EntityKey)
}

func TestExportHandler_CSV(t *testing.T) {
	handler := NewExportHandler(seededExportLedger(t))

	var buf bytes.Buffer
	require.NoError(t, handler.Handle(context.Background(), &buf, "csv"))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + two facts
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "Lin Feng|Brother Lin", rows[1][6])
}

func TestExportHandler_EmptyLedger(t *testing.T) {
	handler := NewExportHandler(mocks.NewLedger())

	var buf bytes.Buffer
	err := handler.Handle(context.Background(), &buf, "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no facts")
}

func TestExportHandler_InvalidFormat(t *testing.T) {
	handler := NewExportHandler(seededExportLedger(t))

	var buf bytes.Buffer
	err := handler.Handle(context.Background(), &buf, "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
