// Package ports defines interfaces for external service communication.
package ports

import (
	"context"
	"time"

	"github.com/pennwright/saga/internal/domain/entities"
)

// Ledger defines the interface for the append-only narrative state store.
// Records are never updated or deleted; corrections are new records that
// reference the superseded one.
type Ledger interface {
	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// Session operations

	// AcquireSession takes the single-writer lock for this project.
	// Returns entities.ErrSessionHeld when another holder is live.
	AcquireSession(ctx context.Context, holder string) error

	// ReleaseSession releases the single-writer lock.
	ReleaseSession(ctx context.Context, holder string) error

	// Fact operations

	// CommitFacts atomically appends all records for one chapter. Either
	// every record lands or none does. Returns *entities.OrderingError when
	// the chapter index or a story-time record would move history backwards.
	CommitFacts(ctx context.Context, chapterIndex int, facts []entities.FactRecord) error

	// History returns every committed record for an entity in commit order,
	// including corrected ones.
	History(ctx context.Context, kind entities.EntityKind, entityKey string) ([]entities.FactRecord, error)

	// Current returns the latest uncorrected record for an entity, or nil
	// when the entity has no committed history.
	Current(ctx context.Context, kind entities.EntityKind, entityKey string) (*entities.FactRecord, error)

	// CurrentByKind returns the latest uncorrected record per entity of the
	// given kind.
	CurrentByKind(ctx context.Context, kind entities.EntityKind) ([]entities.FactRecord, error)

	// AllAliases returns every surface form ever seen per entity key for the
	// given kind, canonical value included.
	AllAliases(ctx context.Context, kind entities.EntityKind) (map[string][]string, error)

	// LastSeen returns the highest chapter index each entity of a kind
	// appeared in.
	LastSeen(ctx context.Context, kind entities.EntityKind) (map[string]int, error)

	// HighestChapter returns the highest chapter index in the facts table,
	// 0 when only seed facts exist, -1 when the ledger is empty. Chapters
	// that committed zero facts are invisible here; sequence tracking
	// combines this with ListChapters.
	HighestChapter(ctx context.Context) (int, error)

	// CurrentDay returns the latest committed story day, 0 when untracked.
	CurrentDay(ctx context.Context) (int, error)

	// ListFacts returns all committed records in commit order, for export.
	ListFacts(ctx context.Context) ([]entities.FactRecord, error)

	// Chapter workflow operations

	// SaveChapter upserts a chapter's workflow record.
	SaveChapter(ctx context.Context, ch *entities.ChapterRecord) error

	// GetChapter returns a chapter record, or nil when unknown.
	GetChapter(ctx context.Context, index int) (*entities.ChapterRecord, error)

	// ListChapters returns all chapter records ordered by index.
	ListChapters(ctx context.Context) ([]entities.ChapterRecord, error)

	// Identity operations

	// SaveIdentity records that two entity keys are the same in-story
	// person, e.g. after a masked-figure reveal.
	SaveIdentity(ctx context.Context, canonicalKey, otherKey string, chapterIndex int) error

	// Identities returns the identity mapping: other key -> canonical key.
	Identities(ctx context.Context) (map[string]string, error)

	// Audit operations

	// LogAction records a workflow event for later inspection.
	LogAction(ctx context.Context, entry *AuditEntry) error

	// ListAudit returns audit entries for a chapter in time order.
	ListAudit(ctx context.Context, chapterIndex int) ([]AuditEntry, error)
}

// AuditEntry is one recorded workflow event.
type AuditEntry struct {
	ID           string    `json:"id"`
	ChapterIndex int       `json:"chapter_index"`
	Action       string    `json:"action"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
