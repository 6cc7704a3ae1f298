package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/mocks"
)

func writeSeedFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestImportHandler_CommitsSeedFacts(t *testing.T) {
	ledger := mocks.NewLedger()
	handler := NewImportHandler(ledger, entities.DefaultRules())

	path := writeSeedFile(t, "seeds.json", `[
		{"kind": "character", "name": "Lin Feng", "aliases": ["Brother Lin"]},
		{"kind": "faction", "name": "Azure Sword Sect"},
		{"kind": "power_level", "name": "Lin Feng", "value": "Qi-Gathering, layer 3"},
		{"kind": "constitution", "name": "Lin Feng", "value": "Frost Jade Physique"},
		{"kind": "story_time", "day": 5}
	]`)

	result, err := handler.Handle(context.Background(), path, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Imported)
	assert.Zero(t, result.Skipped)
	require.Len(t, ledger.Facts, 5)

	char := ledger.Facts[0]
	assert.Equal(t, entities.KindCharacter, char.Kind)
	assert.Equal(t, "lin feng", char.EntityKey)
	assert.Equal(t, 0, char.ChapterIndex)
	assert.True(t, char.HasTag(entities.TagSeed))
	assert.Equal(t, []string{"Lin Feng", "Brother Lin"}, char.AliasesSeen)

	power := ledger.Facts[2]
	require.NotNil(t, power.Rank)
	assert.Equal(t, entities.Rank{Tier: 0, Layer: 3, Label: "Qi-Gathering"}, *power.Rank)

	day := ledger.Facts[4]
	assert.Equal(t, "story", day.EntityKey)
	assert.Equal(t, 5, day.Day)
}

func TestImportHandler_SkipsBadRows(t *testing.T) {
	ledger := mocks.NewLedger()
	handler := NewImportHandler(ledger, entities.DefaultRules())

	path := writeSeedFile(t, "seeds.json", `[
		{"kind": "character", "name": "Lin Feng"},
		{"kind": "dragon", "name": "Smaug"},
		{"kind": "power_level", "name": "Su Yan", "value": "Immortal Emperor, layer 1"},
		{"kind": "character"}
	]`)

	result, err := handler.Handle(context.Background(), path, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 3, result.Skipped)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0].Detail, "unknown kind")
	assert.Contains(t, result.Errors[1].Detail, "unknown tier")
	assert.Len(t, ledger.Facts, 1)
}

func TestImportHandler_DryRunCommitsNothing(t *testing.T) {
	ledger := mocks.NewLedger()
	handler := NewImportHandler(ledger, entities.DefaultRules())

	path := writeSeedFile(t, "seeds.csv", "kind,name\ncharacter,Lin Feng\n")

	result, err := handler.Handle(context.Background(), path, ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Empty(t, ledger.Facts)
}

func TestImportHandler_UnsupportedFormat(t *testing.T) {
	handler := NewImportHandler(mocks.NewLedger(), entities.DefaultRules())

	path := writeSeedFile(t, "seeds.txt", "Lin Feng")
	_, err := handler.Handle(context.Background(), path, ImportOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestImportHandler_ExplicitFormatOverridesExtension(t *testing.T) {
	ledger := mocks.NewLedger()
	handler := NewImportHandler(ledger, entities.DefaultRules())

	path := writeSeedFile(t, "seeds.txt", `[{"kind": "location", "name": "Misty Peak"}]`)

	result, err := handler.Handle(context.Background(), path, ImportOptions{Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
}
