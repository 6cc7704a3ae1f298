// Package sqlite provides a SQLite implementation of the Ledger interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/ports"
	"github.com/pennwright/saga/internal/infrastructure/config"
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// sessionTTL bounds how long a crashed process can pin the writer lock.
// A lock older than this is treated as abandoned and taken over.
const sessionTTL = time.Hour

// Repository implements ports.Ledger using SQLite. The facts table is
// append-only: nothing ever issues UPDATE or DELETE against it.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite ledger repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Enable foreign keys for referential integrity
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Fact records (append-only narrative history)
	CREATE TABLE IF NOT EXISTS facts (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		entity_key TEXT NOT NULL,
		value TEXT NOT NULL,
		rank_json TEXT,
		day INTEGER NOT NULL DEFAULT 0,
		chapter_index INTEGER NOT NULL,
		aliases_seen TEXT,
		tags TEXT,
		correction_of TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_facts_entity ON facts(kind, entity_key);
	CREATE INDEX IF NOT EXISTS idx_facts_chapter ON facts(chapter_index);

	-- Chapter workflow state
	CREATE TABLE IF NOT EXISTS chapters (
		chapter_index INTEGER PRIMARY KEY,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		report TEXT,
		updated_at TIMESTAMP NOT NULL
	);

	-- Identity links (reveals: two keys, one person)
	CREATE TABLE IF NOT EXISTS identities (
		other_key TEXT PRIMARY KEY,
		canonical_key TEXT NOT NULL,
		chapter_index INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	-- Audit log (tracks all workflow actions)
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		chapter_index INTEGER NOT NULL,
		action TEXT NOT NULL,
		detail TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_chapter ON audit_log(chapter_index);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);

	-- Single-writer session lock
	CREATE TABLE IF NOT EXISTS session_lock (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		holder TEXT NOT NULL,
		acquired_at TIMESTAMP NOT NULL
	);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// AcquireSession takes the single-writer lock for this project.
func (r *Repository) AcquireSession(ctx context.Context, holder string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	var acquiredAt time.Time
	err = tx.QueryRowContext(ctx,
		"SELECT holder, acquired_at FROM session_lock WHERE id = 1").Scan(&current, &acquiredAt)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO session_lock (id, holder, acquired_at) VALUES (1, ?, ?)",
			holder, timeNow()); err != nil {
			return fmt.Errorf("acquiring session: %w", err)
		}
	case err != nil:
		return fmt.Errorf("checking session: %w", err)
	case current != holder && timeNow().Sub(acquiredAt) < sessionTTL:
		return entities.ErrSessionHeld
	default:
		// Same holder re-acquiring, or a stale lock left by a dead process.
		if _, err := tx.ExecContext(ctx,
			"UPDATE session_lock SET holder = ?, acquired_at = ? WHERE id = 1",
			holder, timeNow()); err != nil {
			return fmt.Errorf("acquiring session: %w", err)
		}
	}

	return tx.Commit()
}

// ReleaseSession releases the single-writer lock.
func (r *Repository) ReleaseSession(ctx context.Context, holder string) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM session_lock WHERE id = 1 AND holder = ?", holder); err != nil {
		return fmt.Errorf("releasing session: %w", err)
	}
	return nil
}

// CommitFacts atomically appends all records for one chapter.
func (r *Repository) CommitFacts(ctx context.Context, chapterIndex int, facts []entities.FactRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var highest int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(chapter_index), -1) FROM facts").Scan(&highest); err != nil {
		return fmt.Errorf("checking highest chapter: %w", err)
	}
	if chapterIndex != 0 && chapterIndex <= highest {
		return &entities.OrderingError{ChapterIndex: chapterIndex, HighestIndex: highest}
	}

	var day int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(day), 0) FROM facts WHERE kind = ?",
		string(entities.KindStoryTime)).Scan(&day); err != nil {
		return fmt.Errorf("checking current day: %w", err)
	}

	insert := `
		INSERT INTO facts (id, kind, entity_key, value, rank_json, day, chapter_index,
			aliases_seen, tags, correction_of, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, f := range facts {
		if !f.Kind.Valid() {
			return fmt.Errorf("fact %s: %w: %q", f.ID, entities.ErrUnknownKind, f.Kind)
		}
		if f.Kind == entities.KindStoryTime && f.Day < day {
			return &entities.OrderingError{
				Kind:         entities.KindStoryTime,
				ChapterIndex: chapterIndex,
				HighestIndex: day,
			}
		}

		rank, err := marshalNullable(f.Rank)
		if err != nil {
			return fmt.Errorf("marshaling rank for fact %s: %w", f.ID, err)
		}
		aliases, err := marshalNullable(f.AliasesSeen)
		if err != nil {
			return fmt.Errorf("marshaling aliases for fact %s: %w", f.ID, err)
		}
		tags, err := marshalNullable(f.Tags)
		if err != nil {
			return fmt.Errorf("marshaling tags for fact %s: %w", f.ID, err)
		}

		createdAt := f.CreatedAt
		if createdAt.IsZero() {
			createdAt = timeNow()
		}
		if _, err := tx.ExecContext(ctx, insert,
			f.ID,
			string(f.Kind),
			f.EntityKey,
			f.Value,
			rank,
			f.Day,
			chapterIndex,
			aliases,
			tags,
			nullString(f.CorrectionOf),
			createdAt,
		); err != nil {
			return fmt.Errorf("inserting fact %s: %w", f.ID, err)
		}
	}

	return tx.Commit()
}

const factColumns = `id, kind, entity_key, value, rank_json, day, chapter_index,
	aliases_seen, tags, correction_of, created_at`

// History returns every committed record for an entity in commit order.
func (r *Repository) History(ctx context.Context, kind entities.EntityKind, entityKey string) ([]entities.FactRecord, error) {
	query := `
		SELECT ` + factColumns + `
		FROM facts
		WHERE kind = ? AND entity_key = ?
		ORDER BY rowid ASC
	`
	return r.queryFacts(ctx, query, string(kind), entityKey)
}

// Current returns the latest uncorrected record for an entity.
func (r *Repository) Current(ctx context.Context, kind entities.EntityKind, entityKey string) (*entities.FactRecord, error) {
	query := `
		SELECT ` + factColumns + `
		FROM facts
		WHERE kind = ? AND entity_key = ?
			AND id NOT IN (SELECT correction_of FROM facts WHERE correction_of IS NOT NULL)
		ORDER BY rowid DESC
		LIMIT 1
	`
	facts, err := r.queryFacts(ctx, query, string(kind), entityKey)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		return nil, nil
	}
	return &facts[0], nil
}

// CurrentByKind returns the latest uncorrected record per entity of a kind.
func (r *Repository) CurrentByKind(ctx context.Context, kind entities.EntityKind) ([]entities.FactRecord, error) {
	query := `
		SELECT ` + factColumns + `
		FROM facts
		WHERE kind = ?
			AND id NOT IN (SELECT correction_of FROM facts WHERE correction_of IS NOT NULL)
			AND rowid IN (
				SELECT MAX(rowid) FROM facts
				WHERE kind = ?
					AND id NOT IN (SELECT correction_of FROM facts WHERE correction_of IS NOT NULL)
				GROUP BY entity_key
			)
		ORDER BY entity_key ASC
	`
	return r.queryFacts(ctx, query, string(kind), string(kind))
}

// AllAliases returns every surface form ever seen per entity key.
func (r *Repository) AllAliases(ctx context.Context, kind entities.EntityKind) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT entity_key, value, aliases_seen FROM facts WHERE kind = ? ORDER BY rowid ASC",
		string(kind))
	if err != nil {
		return nil, fmt.Errorf("querying aliases: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]map[string]bool)
	ordered := make(map[string][]string)
	add := func(key, name string) {
		if name == "" {
			return
		}
		if seen[key] == nil {
			seen[key] = make(map[string]bool)
		}
		if !seen[key][name] {
			seen[key][name] = true
			ordered[key] = append(ordered[key], name)
		}
	}

	for rows.Next() {
		var key, value string
		var aliasesJSON sql.NullString
		if err := rows.Scan(&key, &value, &aliasesJSON); err != nil {
			return nil, fmt.Errorf("scanning aliases: %w", err)
		}
		add(key, value)
		if aliasesJSON.Valid {
			var aliases []string
			if err := json.Unmarshal([]byte(aliasesJSON.String), &aliases); err != nil {
				return nil, fmt.Errorf("parsing aliases for %s: %w", key, err)
			}
			for _, a := range aliases {
				add(key, a)
			}
		}
	}
	return ordered, rows.Err()
}

// LastSeen returns the highest chapter index each entity appeared in.
func (r *Repository) LastSeen(ctx context.Context, kind entities.EntityKind) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT entity_key, MAX(chapter_index) FROM facts WHERE kind = ? GROUP BY entity_key",
		string(kind))
	if err != nil {
		return nil, fmt.Errorf("querying last seen: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var chapter int
		if err := rows.Scan(&key, &chapter); err != nil {
			return nil, fmt.Errorf("scanning last seen: %w", err)
		}
		out[key] = chapter
	}
	return out, rows.Err()
}

// HighestChapter returns the highest chapter index in the facts table, -1
// when the ledger is empty.
func (r *Repository) HighestChapter(ctx context.Context) (int, error) {
	var highest int
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(chapter_index), -1) FROM facts").Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("querying highest chapter: %w", err)
	}
	return highest, nil
}

// CurrentDay returns the latest committed story day.
func (r *Repository) CurrentDay(ctx context.Context) (int, error) {
	var day int
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(day), 0) FROM facts WHERE kind = ?",
		string(entities.KindStoryTime)).Scan(&day)
	if err != nil {
		return 0, fmt.Errorf("querying current day: %w", err)
	}
	return day, nil
}

// ListFacts returns all committed records in commit order.
func (r *Repository) ListFacts(ctx context.Context) ([]entities.FactRecord, error) {
	query := `
		SELECT ` + factColumns + `
		FROM facts
		ORDER BY rowid ASC
	`
	return r.queryFacts(ctx, query)
}

// SaveChapter upserts a chapter's workflow record.
func (r *Repository) SaveChapter(ctx context.Context, ch *entities.ChapterRecord) error {
	var report any
	if ch.Report != nil {
		data, err := json.Marshal(ch.Report)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		report = string(data)
	}

	updatedAt := ch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = timeNow()
	}

	query := `
		INSERT INTO chapters (chapter_index, status, attempts, report, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chapter_index) DO UPDATE SET
			status = excluded.status,
			attempts = excluded.attempts,
			report = excluded.report,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query,
		ch.Index, string(ch.Status), ch.Attempts, report, updatedAt); err != nil {
		return fmt.Errorf("saving chapter %d: %w", ch.Index, err)
	}
	return nil
}

// GetChapter returns a chapter record, or nil when unknown.
func (r *Repository) GetChapter(ctx context.Context, index int) (*entities.ChapterRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT chapter_index, status, attempts, report, updated_at FROM chapters WHERE chapter_index = ?",
		index)

	ch, err := scanChapter(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning chapter %d: %w", index, err)
	}
	return ch, nil
}

// ListChapters returns all chapter records ordered by index.
func (r *Repository) ListChapters(ctx context.Context) ([]entities.ChapterRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT chapter_index, status, attempts, report, updated_at FROM chapters ORDER BY chapter_index ASC")
	if err != nil {
		return nil, fmt.Errorf("querying chapters: %w", err)
	}
	defer rows.Close()

	var out []entities.ChapterRecord
	for rows.Next() {
		ch, err := scanChapter(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning chapter: %w", err)
		}
		out = append(out, *ch)
	}
	return out, rows.Err()
}

// SaveIdentity records that two entity keys are the same in-story person.
func (r *Repository) SaveIdentity(ctx context.Context, canonicalKey, otherKey string, chapterIndex int) error {
	query := `
		INSERT INTO identities (other_key, canonical_key, chapter_index, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(other_key) DO UPDATE SET
			canonical_key = excluded.canonical_key
	`
	if _, err := r.db.ExecContext(ctx, query,
		otherKey, canonicalKey, chapterIndex, timeNow()); err != nil {
		return fmt.Errorf("saving identity %s=%s: %w", canonicalKey, otherKey, err)
	}
	return nil
}

// Identities returns the identity mapping: other key -> canonical key.
func (r *Repository) Identities(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT other_key, canonical_key FROM identities")
	if err != nil {
		return nil, fmt.Errorf("querying identities: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var other, canonical string
		if err := rows.Scan(&other, &canonical); err != nil {
			return nil, fmt.Errorf("scanning identity: %w", err)
		}
		out[other] = canonical
	}
	return out, rows.Err()
}

// LogAction records a workflow event.
func (r *Repository) LogAction(ctx context.Context, entry *ports.AuditEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = timeNow()
	}
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO audit_log (id, chapter_index, action, detail, created_at) VALUES (?, ?, ?, ?, ?)",
		entry.ID, entry.ChapterIndex, entry.Action, entry.Detail, createdAt); err != nil {
		return fmt.Errorf("logging action %s: %w", entry.Action, err)
	}
	return nil
}

// ListAudit returns audit entries for a chapter in time order.
func (r *Repository) ListAudit(ctx context.Context, chapterIndex int) ([]ports.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, chapter_index, action, detail, created_at FROM audit_log WHERE chapter_index = ? ORDER BY rowid ASC",
		chapterIndex)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var out []ports.AuditEntry
	for rows.Next() {
		var e ports.AuditEntry
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.ChapterIndex, &e.Action, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Detail = detail.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) queryFacts(ctx context.Context, query string, args ...any) ([]entities.FactRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	var out []entities.FactRecord
	for rows.Next() {
		var f entities.FactRecord
		var kind string
		var rank, aliases, tags, correctionOf sql.NullString
		if err := rows.Scan(
			&f.ID,
			&kind,
			&f.EntityKey,
			&f.Value,
			&rank,
			&f.Day,
			&f.ChapterIndex,
			&aliases,
			&tags,
			&correctionOf,
			&f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		f.Kind = entities.EntityKind(kind)
		f.CorrectionOf = correctionOf.String
		if rank.Valid {
			f.Rank = &entities.Rank{}
			if err := json.Unmarshal([]byte(rank.String), f.Rank); err != nil {
				return nil, fmt.Errorf("parsing rank for fact %s: %w", f.ID, err)
			}
		}
		if aliases.Valid {
			if err := json.Unmarshal([]byte(aliases.String), &f.AliasesSeen); err != nil {
				return nil, fmt.Errorf("parsing aliases for fact %s: %w", f.ID, err)
			}
		}
		if tags.Valid {
			if err := json.Unmarshal([]byte(tags.String), &f.Tags); err != nil {
				return nil, fmt.Errorf("parsing tags for fact %s: %w", f.ID, err)
			}
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanChapter(scan func(...any) error) (*entities.ChapterRecord, error) {
	var ch entities.ChapterRecord
	var status string
	var report sql.NullString
	if err := scan(&ch.Index, &status, &ch.Attempts, &report, &ch.UpdatedAt); err != nil {
		return nil, err
	}
	ch.Status = entities.ChapterStatus(status)
	if report.Valid {
		ch.Report = &entities.ValidationReport{}
		if err := json.Unmarshal([]byte(report.String), ch.Report); err != nil {
			return nil, fmt.Errorf("parsing report: %w", err)
		}
	}
	return &ch, nil
}

// marshalNullable marshals a value to JSON, returning nil for empty input.
func marshalNullable(v any) (any, error) {
	switch val := v.(type) {
	case *entities.Rank:
		if val == nil {
			return nil, nil
		}
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	case []entities.FactTag:
		if len(val) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
