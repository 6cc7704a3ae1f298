package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/mocks"
)

func seedFact(kind entities.EntityKind, key, value string, chapter int) entities.FactRecord {
	return entities.FactRecord{
		ID:           uuid.New().String(),
		Kind:         kind,
		EntityKey:    key,
		Value:        value,
		ChapterIndex: chapter,
		CreatedAt:    time.Now(),
	}
}

func seededLedger(t *testing.T) *mocks.Ledger {
	t.Helper()
	ledger := mocks.NewLedger()
	ctx := context.Background()

	rank := entities.Rank{Tier: 0, Layer: 3, Label: "Qi-Gathering"}
	power := seedFact(entities.KindPowerLevel, "lin feng", rank.String(), 1)
	power.Rank = &rank

	day := seedFact(entities.KindStoryTime, "story", "day 5", 1)
	day.Day = 5

	facts := []entities.FactRecord{
		seedFact(entities.KindCharacter, "lin feng", "Lin Feng", 1),
		seedFact(entities.KindFaction, "azure sword sect", "Azure Sword Sect", 1),
		seedFact(entities.KindConstitution, "lin feng", "Frost Jade Physique", 1),
		power,
		day,
	}
	require.NoError(t, ledger.CommitFacts(ctx, 1, facts))
	return ledger
}

func TestConstraintService_Snapshot(t *testing.T) {
	ledger := seededLedger(t)
	svc := NewConstraintService(ledger, entities.DefaultRules())

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Lin Feng"}, snap.Aliases[entities.KindCharacter]["lin feng"])
	assert.Equal(t, "Azure Sword Sect", snap.Canonical[entities.KindFaction]["azure sword sect"])
	assert.Equal(t, entities.Rank{Tier: 0, Layer: 3, Label: "Qi-Gathering"}, snap.Ranks["lin feng"])
	assert.Equal(t, 5, snap.RankDay["lin feng"])
	assert.Equal(t, "Frost Jade Physique", snap.Constitutions["lin feng"])
	assert.Equal(t, 5, snap.CurrentDay)
	assert.Equal(t, 1, snap.HighestChap)
	assert.Equal(t, 1, snap.LastSeen["lin feng"])
}

func TestConstraintService_Constraints(t *testing.T) {
	ledger := seededLedger(t)
	svc := NewConstraintService(ledger, entities.DefaultRules())

	set, err := svc.Constraints(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, 2, set.ChapterIndex)
	assert.Equal(t, "Lin Feng", set.LockedNames[entities.KindCharacter]["lin feng"])
	assert.Equal(t, "Azure Sword Sect", set.LockedNames[entities.KindFaction]["azure sword sect"])
	assert.Equal(t, 3, set.PowerCeilings["Lin Feng"].Layer)
	assert.Equal(t, "Frost Jade Physique", set.Constitutions["Lin Feng"])
	assert.Equal(t, 5, set.CurrentDay)
	assert.Equal(t, 10, set.MaxDayJump)
	assert.Empty(t, set.Forbidden)
}

// Deriving constraints twice for the same history yields the same prompt.
func TestConstraintService_Idempotent(t *testing.T) {
	ledger := seededLedger(t)
	svc := NewConstraintService(ledger, entities.DefaultRules())
	ctx := context.Background()

	first, err := svc.Constraints(ctx, 2)
	require.NoError(t, err)
	second, err := svc.Constraints(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, first.PromptText(), second.PromptText())
}

// Blocking violations of escalated chapters surface as forbidden lines.
func TestConstraintService_EscalatedChapterForbids(t *testing.T) {
	ledger := seededLedger(t)
	ctx := context.Background()

	report := &entities.ValidationReport{ChapterIndex: 2}
	report.Add(entities.Violation{
		Category: entities.CategoryFactionName,
		Severity: entities.SeverityHigh,
		Detail:   `faction "Azure Sword Sect" appeared as "Azure Blade Sect"`,
	})
	require.NoError(t, ledger.SaveChapter(ctx, &entities.ChapterRecord{
		Index:  2,
		Status: entities.StatusEscalated,
		Report: report,
	}))

	svc := NewConstraintService(ledger, entities.DefaultRules())
	set, err := svc.Constraints(ctx, 2)
	require.NoError(t, err)

	require.Len(t, set.Forbidden, 1)
	assert.Contains(t, set.Forbidden[0], "Azure Blade Sect")
	assert.Contains(t, set.PromptText(), "Forbidden transitions")
}

func TestConstraintService_EmptyLedger(t *testing.T) {
	svc := NewConstraintService(mocks.NewLedger(), entities.DefaultRules())

	set, err := svc.Constraints(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, set.Empty())
	assert.Equal(t, "", set.PromptText())
}
