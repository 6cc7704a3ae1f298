package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/ports"
	"github.com/pennwright/saga/internal/infrastructure/config"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(config.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "saga.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func fact(kind entities.EntityKind, key, value string, chapter int) entities.FactRecord {
	return entities.FactRecord{
		ID:           uuid.New().String(),
		Kind:         kind,
		EntityKey:    key,
		Value:        value,
		ChapterIndex: chapter,
		CreatedAt:    time.Now(),
	}
}

func TestRepository_RequiresPath(t *testing.T) {
	_, err := NewRepository(config.SQLiteConfig{})
	require.Error(t, err)
}

func TestRepository_CommitAndHistory(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	rank := entities.Rank{Tier: 0, Layer: 1, Label: "Qi-Gathering"}
	power := fact(entities.KindPowerLevel, "lin feng", rank.String(), 1)
	power.Rank = &rank
	power.Tags = []entities.FactTag{entities.TagSeed}

	char := fact(entities.KindCharacter, "lin feng", "Lin Feng", 1)
	char.AliasesSeen = []string{"Lin Feng", "Brother Lin"}

	require.NoError(t, repo.CommitFacts(ctx, 1, []entities.FactRecord{char, power}))

	history, err := repo.History(ctx, entities.KindCharacter, "lin feng")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Lin Feng", history[0].Value)
	assert.Equal(t, []string{"Lin Feng", "Brother Lin"}, history[0].AliasesSeen)

	current, err := repo.Current(ctx, entities.KindPowerLevel, "lin feng")
	require.NoError(t, err)
	require.NotNil(t, current)
	require.NotNil(t, current.Rank)
	assert.Equal(t, rank, *current.Rank)
	assert.True(t, current.HasTag(entities.TagSeed))
}

func TestRepository_CommitIsAtomic(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	good := fact(entities.KindCharacter, "lin feng", "Lin Feng", 1)
	bad := fact("dragon", "x", "y", 1)

	err := repo.CommitFacts(ctx, 1, []entities.FactRecord{good, bad})
	require.ErrorIs(t, err, entities.ErrUnknownKind)

	// nothing from the failed batch may be visible
	facts, err := repo.ListFacts(ctx)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestRepository_RejectsChapterReplay(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.CommitFacts(ctx, 1,
		[]entities.FactRecord{fact(entities.KindCharacter, "lin feng", "Lin Feng", 1)}))

	err := repo.CommitFacts(ctx, 1,
		[]entities.FactRecord{fact(entities.KindCharacter, "su yan", "Su Yan", 1)})

	var ordErr *entities.OrderingError
	require.ErrorAs(t, err, &ordErr)
	assert.Equal(t, 1, ordErr.ChapterIndex)
	assert.Equal(t, 1, ordErr.HighestIndex)
}

func TestRepository_SeedChapterZeroAllowedAfterImportOnly(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	// chapter 0 (seed) commits are exempt from the replay check
	require.NoError(t, repo.CommitFacts(ctx, 0,
		[]entities.FactRecord{fact(entities.KindCharacter, "lin feng", "Lin Feng", 0)}))
	require.NoError(t, repo.CommitFacts(ctx, 0,
		[]entities.FactRecord{fact(entities.KindFaction, "azure sword sect", "Azure Sword Sect", 0)}))

	highest, err := repo.HighestChapter(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, highest)
}

func TestRepository_RejectsStoryTimeRegression(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	day5 := fact(entities.KindStoryTime, "story", "day 5", 1)
	day5.Day = 5
	require.NoError(t, repo.CommitFacts(ctx, 1, []entities.FactRecord{day5}))

	day3 := fact(entities.KindStoryTime, "story", "day 3", 2)
	day3.Day = 3
	err := repo.CommitFacts(ctx, 2, []entities.FactRecord{day3})

	var ordErr *entities.OrderingError
	require.ErrorAs(t, err, &ordErr)
	assert.Equal(t, entities.KindStoryTime, ordErr.Kind)

	day, err := repo.CurrentDay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, day)
}

func TestRepository_CorrectionsSupersede(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	original := fact(entities.KindConstitution, "lin feng", "Frost Jade Physique", 1)
	require.NoError(t, repo.CommitFacts(ctx, 1, []entities.FactRecord{original}))

	correction := fact(entities.KindConstitution, "lin feng", "Frost Jade Body", 2)
	correction.CorrectionOf = original.ID
	require.NoError(t, repo.CommitFacts(ctx, 2, []entities.FactRecord{correction}))

	current, err := repo.Current(ctx, entities.KindConstitution, "lin feng")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "Frost Jade Body", current.Value)
	assert.Equal(t, original.ID, current.CorrectionOf)

	// the superseded record stays in history
	history, err := repo.History(ctx, entities.KindConstitution, "lin feng")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRepository_CurrentByKindAndAliases(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	lin := fact(entities.KindCharacter, "lin feng", "Lin Feng", 1)
	lin.AliasesSeen = []string{"Lin Feng"}
	su := fact(entities.KindCharacter, "su yan", "Su Yan", 1)
	require.NoError(t, repo.CommitFacts(ctx, 1, []entities.FactRecord{lin, su}))

	lin2 := fact(entities.KindCharacter, "lin feng", "Lin Feng", 2)
	lin2.AliasesSeen = []string{"Brother Lin"}
	require.NoError(t, repo.CommitFacts(ctx, 2, []entities.FactRecord{lin2}))

	current, err := repo.CurrentByKind(ctx, entities.KindCharacter)
	require.NoError(t, err)
	require.Len(t, current, 2)
	assert.Equal(t, "lin feng", current[0].EntityKey)
	assert.Equal(t, 2, current[0].ChapterIndex)
	assert.Equal(t, "su yan", current[1].EntityKey)

	aliases, err := repo.AllAliases(ctx, entities.KindCharacter)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Lin Feng", "Brother Lin"}, aliases["lin feng"])
	assert.Equal(t, []string{"Su Yan"}, aliases["su yan"])

	lastSeen, err := repo.LastSeen(ctx, entities.KindCharacter)
	require.NoError(t, err)
	assert.Equal(t, 2, lastSeen["lin feng"])
	assert.Equal(t, 1, lastSeen["su yan"])
}

func TestRepository_HighestChapterEmpty(t *testing.T) {
	repo := newTestRepository(t)

	highest, err := repo.HighestChapter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1, highest)
}

func TestRepository_ChapterRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	missing, err := repo.GetChapter(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	report := &entities.ValidationReport{ChapterIndex: 1}
	report.Add(entities.Violation{
		Category: entities.CategoryFactionName,
		Severity: entities.SeverityHigh,
		Detail:   "faction renamed",
	})
	require.NoError(t, repo.SaveChapter(ctx, &entities.ChapterRecord{
		Index:    1,
		Status:   entities.StatusEscalated,
		Attempts: 3,
		Report:   report,
	}))

	ch, err := repo.GetChapter(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, entities.StatusEscalated, ch.Status)
	assert.Equal(t, 3, ch.Attempts)
	require.NotNil(t, ch.Report)
	require.Len(t, ch.Report.Violations, 1)
	assert.Equal(t, entities.SeverityHigh, ch.Report.Violations[0].Severity)

	// upsert moves the chapter forward
	require.NoError(t, repo.SaveChapter(ctx, &entities.ChapterRecord{
		Index:  1,
		Status: entities.StatusCommitted,
	}))
	chapters, err := repo.ListChapters(ctx)
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Equal(t, entities.StatusCommitted, chapters[0].Status)
}

func TestRepository_Identities(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveIdentity(ctx, "mo tian", "masked elder", 4))
	require.NoError(t, repo.SaveIdentity(ctx, "mo tian", "black-robed man", 6))

	links, err := repo.Identities(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"masked elder":    "mo tian",
		"black-robed man": "mo tian",
	}, links)
}

func TestRepository_AuditLog(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, action := range []string{"generating", "checking", "committed"} {
		require.NoError(t, repo.LogAction(ctx, &ports.AuditEntry{
			ID:           uuid.New().String(),
			ChapterIndex: 2,
			Action:       action,
		}))
	}

	entries, err := repo.ListAudit(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "generating", entries[0].Action)
	assert.Equal(t, "committed", entries[2].Action)

	other, err := repo.ListAudit(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRepository_SessionLock(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.AcquireSession(ctx, "writer-a"))
	// re-acquiring by the same holder is fine
	require.NoError(t, repo.AcquireSession(ctx, "writer-a"))

	err := repo.AcquireSession(ctx, "writer-b")
	require.ErrorIs(t, err, entities.ErrSessionHeld)

	// releasing by a non-holder is a no-op
	require.NoError(t, repo.ReleaseSession(ctx, "writer-b"))
	err = repo.AcquireSession(ctx, "writer-b")
	require.ErrorIs(t, err, entities.ErrSessionHeld)

	require.NoError(t, repo.ReleaseSession(ctx, "writer-a"))
	require.NoError(t, repo.AcquireSession(ctx, "writer-b"))
}

// A lock left behind by a crashed process goes stale and can be taken over.
func TestRepository_StaleSessionTakeover(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	base := time.Now()
	timeNow = func() time.Time { return base }
	defer func() { timeNow = time.Now }()

	require.NoError(t, repo.AcquireSession(ctx, "writer-a"))

	// still within the TTL: the lock holds
	timeNow = func() time.Time { return base.Add(sessionTTL - time.Minute) }
	err := repo.AcquireSession(ctx, "writer-b")
	require.ErrorIs(t, err, entities.ErrSessionHeld)

	// past the TTL: writer-b takes over and the lock is fresh again
	timeNow = func() time.Time { return base.Add(sessionTTL + time.Minute) }
	require.NoError(t, repo.AcquireSession(ctx, "writer-b"))
	err = repo.AcquireSession(ctx, "writer-a")
	require.ErrorIs(t, err, entities.ErrSessionHeld)
}
