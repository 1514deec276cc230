/*
Package sqlite provides the SQLite-backed implementation of the acta
storage interfaces.

PURPOSE:
  Implements acta.Repository and acta.AuditLog on a single SQLite
  database. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  actas:        One row per composite reference; grading data and
                metrics are stored as JSON columns.
  audit_events: Insert-only. No UPDATE or DELETE statements exist for
                this table; the filter/paging the admin viewer needs is
                pushed down to SQL.

CONCURRENCY:
  The repository is deliberately a dumb keyed store: Put overwrites
  unconditionally and the lifecycle service performs the version
  comparison. sync.RWMutex guards the connection; SQLite runs in WAL
  mode so readers do not block.

USAGE:
  st, err := sqlite.New("./data/actas.db")
  if err != nil { ... }
  defer st.Close()
  svc := acta.NewService(st, st, rules, nil)

SEE ALSO:
  - acta/repository.go: interface contracts
  - acta/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/acta-engine/acta"
)

// Store implements acta.Repository and acta.AuditLog using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the
// schema. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS actas (
		ref TEXT PRIMARY KEY,
		year INTEGER NOT NULL,
		section_id TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		term TEXT NOT NULL,
		level TEXT NOT NULL,
		grade TEXT NOT NULL,
		section TEXT NOT NULL,
		subject_name TEXT NOT NULL,
		teacher_id TEXT NOT NULL,
		teacher_name TEXT NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL,
		items_json TEXT NOT NULL,
		entries_json TEXT NOT NULL,
		metrics_json TEXT NOT NULL,
		last_modified_at TEXT NOT NULL,
		last_modified_by TEXT NOT NULL,
		locked_at TEXT,
		locked_by TEXT,
		published_at TEXT,
		published_by TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_actas_year_term
		ON actas(year, term);
	CREATE INDEX IF NOT EXISTS idx_actas_section
		ON actas(section_id);
	CREATE INDEX IF NOT EXISTS idx_actas_teacher
		ON actas(teacher_id);
	CREATE INDEX IF NOT EXISTS idx_actas_status
		ON actas(status);

	-- Audit trail (insert-only)
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		ts TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		actor_name TEXT NOT NULL,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_ref TEXT NOT NULL,
		before_snapshot TEXT,
		after_snapshot TEXT,
		metadata TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_action
		ON audit_events(action);
	CREATE INDEX IF NOT EXISTS idx_audit_target
		ON audit_events(target_ref);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REPOSITORY (acta.Repository interface)
// =============================================================================

// Get returns the Acta for ref, or acta.ErrNotFound.
func (s *Store) Get(ctx context.Context, ref acta.Ref) (*acta.Acta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectActa+" WHERE ref = ?", ref.String())
	a, err := scanActa(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", acta.ErrNotFound, ref)
	}
	return a, err
}

// Put overwrites the stored row for a.Ref. No version checking here;
// that is the lifecycle service's job.
func (s *Store) Put(ctx context.Context, a *acta.Acta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	itemsJSON, _ := json.Marshal(a.Items)
	entriesJSON, _ := json.Marshal(a.Entries)
	metricsJSON, _ := json.Marshal(a.Metrics)

	query := `
		INSERT INTO actas
		(ref, year, section_id, subject_id, term, level, grade, section,
		 subject_name, teacher_id, teacher_name, status, version,
		 items_json, entries_json, metrics_json,
		 last_modified_at, last_modified_by,
		 locked_at, locked_by, published_at, published_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ref) DO UPDATE SET
			level = excluded.level,
			grade = excluded.grade,
			section = excluded.section,
			subject_name = excluded.subject_name,
			teacher_id = excluded.teacher_id,
			teacher_name = excluded.teacher_name,
			status = excluded.status,
			version = excluded.version,
			items_json = excluded.items_json,
			entries_json = excluded.entries_json,
			metrics_json = excluded.metrics_json,
			last_modified_at = excluded.last_modified_at,
			last_modified_by = excluded.last_modified_by,
			locked_at = excluded.locked_at,
			locked_by = excluded.locked_by,
			published_at = excluded.published_at,
			published_by = excluded.published_by
	`

	_, err := s.db.ExecContext(ctx, query,
		a.Ref.String(), a.Ref.Year, a.Ref.SectionID, a.Ref.SubjectID, a.Ref.Term,
		a.Level, a.Grade, a.Section, a.SubjectName, a.TeacherID, a.TeacherName,
		string(a.Status), a.Version,
		string(itemsJSON), string(entriesJSON), string(metricsJSON),
		a.LastModifiedAt.UTC().Format(time.RFC3339Nano), a.LastModifiedBy,
		nullTime(a.LockedAt), nullString(a.LockedBy),
		nullTime(a.PublishedAt), nullString(a.PublishedBy),
	)
	if err != nil {
		return fmt.Errorf("failed to put acta %s: %w", a.Ref, err)
	}
	return nil
}

// List returns actas matching the filter, ordered by reference string.
func (s *Store) List(ctx context.Context, f acta.ListFilter) ([]*acta.Acta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectActa + " WHERE 1=1"
	var args []any
	if f.Year != 0 {
		query += " AND year = ?"
		args = append(args, f.Year)
	}
	if f.Level != "" {
		query += " AND level = ?"
		args = append(args, f.Level)
	}
	if f.Grade != "" {
		query += " AND grade = ?"
		args = append(args, f.Grade)
	}
	if f.Section != "" {
		query += " AND section_id = ?"
		args = append(args, f.Section)
	}
	if f.SubjectID != "" {
		query += " AND subject_id = ?"
		args = append(args, f.SubjectID)
	}
	if f.TeacherID != "" {
		query += " AND teacher_id = ?"
		args = append(args, f.TeacherID)
	}
	if f.Term != "" {
		query += " AND term = ?"
		args = append(args, f.Term)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, string(f.Status))
	}
	query += " ORDER BY ref ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list actas: %w", err)
	}
	defer rows.Close()

	var actas []*acta.Acta
	for rows.Next() {
		a, err := scanActa(rows)
		if err != nil {
			return nil, err
		}
		actas = append(actas, a)
	}
	return actas, rows.Err()
}

const selectActa = `
	SELECT ref, year, section_id, subject_id, term, level, grade, section,
	       subject_name, teacher_id, teacher_name, status, version,
	       items_json, entries_json, metrics_json,
	       last_modified_at, last_modified_by,
	       locked_at, locked_by, published_at, published_by
	FROM actas`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActa(row rowScanner) (*acta.Acta, error) {
	var (
		a            acta.Acta
		refStr       string
		year         int
		sectionID    string
		subjectID    string
		term         string
		status       string
		itemsJSON    string
		entriesJSON  string
		metricsJSON  string
		lastModified string
		lockedAt     sql.NullString
		lockedBy     sql.NullString
		publishedAt  sql.NullString
		publishedBy  sql.NullString
	)

	err := row.Scan(
		&refStr, &year, &sectionID, &subjectID, &term,
		&a.Level, &a.Grade, &a.Section, &a.SubjectName, &a.TeacherID, &a.TeacherName,
		&status, &a.Version,
		&itemsJSON, &entriesJSON, &metricsJSON,
		&lastModified, &a.LastModifiedBy,
		&lockedAt, &lockedBy, &publishedAt, &publishedBy,
	)
	if err != nil {
		return nil, err
	}

	a.Ref = acta.Ref{Year: year, SectionID: sectionID, SubjectID: subjectID, Term: term}
	a.Status = acta.Status(status)
	if err := json.Unmarshal([]byte(itemsJSON), &a.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items for %s: %w", refStr, err)
	}
	if err := json.Unmarshal([]byte(entriesJSON), &a.Entries); err != nil {
		return nil, fmt.Errorf("failed to decode entries for %s: %w", refStr, err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &a.Metrics); err != nil {
		return nil, fmt.Errorf("failed to decode metrics for %s: %w", refStr, err)
	}
	a.LastModifiedAt, _ = time.Parse(time.RFC3339Nano, lastModified)
	a.LockedAt = parseNullTime(lockedAt)
	a.LockedBy = lockedBy.String
	a.PublishedAt = parseNullTime(publishedAt)
	a.PublishedBy = publishedBy.String

	return &a, nil
}

// =============================================================================
// AUDIT LOG (acta.AuditLog interface)
// =============================================================================

// Append inserts an audit event. The table is insert-only.
func (s *Store) Append(ctx context.Context, ev acta.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO audit_events
		(id, ts, actor_id, actor_name, action, target_type, target_ref,
		 before_snapshot, after_snapshot, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		ev.ID,
		ev.Timestamp.UTC().Format(time.RFC3339Nano),
		ev.ActorID, ev.ActorName,
		string(ev.Action), ev.TargetType, ev.TargetRef,
		nullString(ev.BeforeSnapshot), nullString(ev.AfterSnapshot),
		nullString(ev.Metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// Query returns events newest-first, filtered by free-text search over
// action and metadata, paged at the storage layer.
func (s *Store) Query(ctx context.Context, f acta.AuditFilter) ([]acta.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, ts, actor_id, actor_name, action, target_type, target_ref,
		       before_snapshot, after_snapshot, metadata
		FROM audit_events
	`
	var args []any
	if f.Search != "" {
		query += " WHERE action LIKE ? OR metadata LIKE ?"
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern)
	}
	query += " ORDER BY ts DESC, rowid DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []acta.AuditEvent
	for rows.Next() {
		var (
			ev            acta.AuditEvent
			ts            string
			action        string
			before, after sql.NullString
			metadata      sql.NullString
		)
		if err := rows.Scan(
			&ev.ID, &ts, &ev.ActorID, &ev.ActorName, &action,
			&ev.TargetType, &ev.TargetRef, &before, &after, &metadata,
		); err != nil {
			return nil, err
		}
		ev.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		ev.Action = acta.AuditAction(action)
		ev.BeforeSnapshot = before.String
		ev.AfterSnapshot = after.String
		ev.Metadata = metadata.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}
