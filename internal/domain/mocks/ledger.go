// Package mocks contains hand-written in-memory test doubles for the
// domain ports.
package mocks

import (
	"context"
	"sort"
	"time"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/ports"
)

// Ledger is a mock implementation of ports.Ledger. It enforces the same
// append-only and ordering semantics as the real store so workflow tests
// exercise real failure paths.
type Ledger struct {
	Facts     []entities.FactRecord
	Chapters  map[int]*entities.ChapterRecord
	Links     map[string]string // other key -> canonical key
	Audit     []ports.AuditEntry
	Holder    string
	Err       error
	CommitErr error
}

// NewLedger creates a new mock Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		Chapters: make(map[int]*entities.ChapterRecord),
		Links:    make(map[string]string),
	}
}

// EnsureSchema creates the database schema if it doesn't exist.
func (m *Ledger) EnsureSchema(_ context.Context) error {
	return m.Err
}

// Close closes the database connection.
func (m *Ledger) Close() error {
	return nil
}

// AcquireSession takes the single-writer lock.
func (m *Ledger) AcquireSession(_ context.Context, holder string) error {
	if m.Err != nil {
		return m.Err
	}
	if m.Holder != "" && m.Holder != holder {
		return entities.ErrSessionHeld
	}
	m.Holder = holder
	return nil
}

// ReleaseSession releases the single-writer lock.
func (m *Ledger) ReleaseSession(_ context.Context, holder string) error {
	if m.Holder == holder {
		m.Holder = ""
	}
	return nil
}

// CommitFacts atomically appends all records for one chapter.
func (m *Ledger) CommitFacts(ctx context.Context, chapterIndex int, facts []entities.FactRecord) error {
	if m.Err != nil {
		return m.Err
	}
	if m.CommitErr != nil {
		return m.CommitErr
	}
	highest, _ := m.HighestChapter(ctx)
	if chapterIndex <= highest && chapterIndex != 0 {
		return &entities.OrderingError{ChapterIndex: chapterIndex, HighestIndex: highest}
	}
	day, _ := m.CurrentDay(ctx)
	for _, f := range facts {
		if f.Kind == entities.KindStoryTime && f.Day < day {
			return &entities.OrderingError{
				Kind:         entities.KindStoryTime,
				ChapterIndex: chapterIndex,
				HighestIndex: day,
			}
		}
	}
	m.Facts = append(m.Facts, facts...)
	return nil
}

// History returns every committed record for an entity in commit order.
func (m *Ledger) History(_ context.Context, kind entities.EntityKind, entityKey string) ([]entities.FactRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []entities.FactRecord
	for _, f := range m.Facts {
		if f.Kind == kind && f.EntityKey == entityKey {
			out = append(out, f)
		}
	}
	return out, nil
}

// Current returns the latest uncorrected record for an entity.
func (m *Ledger) Current(_ context.Context, kind entities.EntityKind, entityKey string) (*entities.FactRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	corrected := m.correctedIDs()
	for i := len(m.Facts) - 1; i >= 0; i-- {
		f := m.Facts[i]
		if f.Kind == kind && f.EntityKey == entityKey && !corrected[f.ID] {
			return &f, nil
		}
	}
	return nil, nil
}

// CurrentByKind returns the latest uncorrected record per entity of a kind.
func (m *Ledger) CurrentByKind(_ context.Context, kind entities.EntityKind) ([]entities.FactRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	corrected := m.correctedIDs()
	latest := make(map[string]entities.FactRecord)
	for _, f := range m.Facts {
		if f.Kind == kind && !corrected[f.ID] {
			latest[f.EntityKey] = f
		}
	}
	keys := make([]string, 0, len(latest))
	for k := range latest {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]entities.FactRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, latest[k])
	}
	return out, nil
}

// AllAliases returns every surface form ever seen per entity key.
func (m *Ledger) AllAliases(_ context.Context, kind entities.EntityKind) (map[string][]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	seen := make(map[string]map[string]bool)
	for _, f := range m.Facts {
		if f.Kind != kind {
			continue
		}
		if seen[f.EntityKey] == nil {
			seen[f.EntityKey] = make(map[string]bool)
		}
		seen[f.EntityKey][f.Value] = true
		for _, a := range f.AliasesSeen {
			seen[f.EntityKey][a] = true
		}
	}
	out := make(map[string][]string, len(seen))
	for key, names := range seen {
		for n := range names {
			out[key] = append(out[key], n)
		}
		sort.Strings(out[key])
	}
	return out, nil
}

// LastSeen returns the highest chapter index each entity appeared in.
func (m *Ledger) LastSeen(_ context.Context, kind entities.EntityKind) (map[string]int, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]int)
	for _, f := range m.Facts {
		if f.Kind == kind && f.ChapterIndex > out[f.EntityKey] {
			out[f.EntityKey] = f.ChapterIndex
		}
	}
	return out, nil
}

// HighestChapter returns the highest chapter index in the facts table.
func (m *Ledger) HighestChapter(_ context.Context) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	if len(m.Facts) == 0 {
		return -1, nil
	}
	highest := 0
	for _, f := range m.Facts {
		if f.ChapterIndex > highest {
			highest = f.ChapterIndex
		}
	}
	return highest, nil
}

// CurrentDay returns the latest committed story day.
func (m *Ledger) CurrentDay(_ context.Context) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	day := 0
	for _, f := range m.Facts {
		if f.Kind == entities.KindStoryTime && f.Day > day {
			day = f.Day
		}
	}
	return day, nil
}

// ListFacts returns all committed records in commit order.
func (m *Ledger) ListFacts(_ context.Context) ([]entities.FactRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]entities.FactRecord, len(m.Facts))
	copy(out, m.Facts)
	return out, nil
}

// SaveChapter upserts a chapter's workflow record.
func (m *Ledger) SaveChapter(_ context.Context, ch *entities.ChapterRecord) error {
	if m.Err != nil {
		return m.Err
	}
	cp := *ch
	m.Chapters[ch.Index] = &cp
	return nil
}

// GetChapter returns a chapter record, or nil when unknown.
func (m *Ledger) GetChapter(_ context.Context, index int) (*entities.ChapterRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Chapters[index], nil
}

// ListChapters returns all chapter records ordered by index.
func (m *Ledger) ListChapters(_ context.Context) ([]entities.ChapterRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	idxs := make([]int, 0, len(m.Chapters))
	for i := range m.Chapters {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	out := make([]entities.ChapterRecord, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, *m.Chapters[i])
	}
	return out, nil
}

// SaveIdentity records that two entity keys are the same person.
func (m *Ledger) SaveIdentity(_ context.Context, canonicalKey, otherKey string, _ int) error {
	if m.Err != nil {
		return m.Err
	}
	m.Links[otherKey] = canonicalKey
	return nil
}

// Identities returns the identity mapping.
func (m *Ledger) Identities(_ context.Context) (map[string]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]string, len(m.Links))
	for k, v := range m.Links {
		out[k] = v
	}
	return out, nil
}

// LogAction records a workflow event.
func (m *Ledger) LogAction(_ context.Context, entry *ports.AuditEntry) error {
	if m.Err != nil {
		return m.Err
	}
	e := *entry
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.Audit = append(m.Audit, e)
	return nil
}

// ListAudit returns audit entries for a chapter in time order.
func (m *Ledger) ListAudit(_ context.Context, chapterIndex int) ([]ports.AuditEntry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []ports.AuditEntry
	for _, e := range m.Audit {
		if e.ChapterIndex == chapterIndex {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Ledger) correctedIDs() map[string]bool {
	out := make(map[string]bool)
	for _, f := range m.Facts {
		if f.CorrectionOf != "" {
			out[f.CorrectionOf] = true
		}
	}
	return out
}
