/*
repository.go - Persistence interfaces for actas and audit events

PURPOSE:
  Defines the boundary between the engine and storage. The Repository
  is a dumb keyed store: it overwrites whatever it is given and never
  inspects versions - the optimistic-concurrency comparison lives in
  the lifecycle service, which is the only writer.

AUDIT CONTRACT:
  The AuditLog is append-only. No update, no delete. Every mutating
  lifecycle call appends exactly one event after its state write has
  been accepted, so a committed transition is never observable without
  its audit record and a failed transition never leaves a phantom one.

IMPLEMENTATIONS:
  - acta/store: in-memory (tests, dev)
  - store/sqlite: SQLite-backed (production path)
*/
package acta

import (
	"context"
	"time"
)

// =============================================================================
// REPOSITORY - Keyed Acta storage
// =============================================================================

// Repository stores actas keyed by their composite reference.
// Implementations must hand out deep copies: a returned *Acta is the
// caller's to mutate.
type Repository interface {
	// Get returns the Acta for ref, or ErrNotFound.
	Get(ctx context.Context, ref Ref) (*Acta, error)

	// Put overwrites the stored Acta for a.Ref. Idempotent; performs no
	// version checking of its own.
	Put(ctx context.Context, a *Acta) error

	// List returns actas matching the filter. Ordering is lexicographic
	// by reference string: stable within a snapshot, no duplicates, no
	// omissions.
	List(ctx context.Context, f ListFilter) ([]*Acta, error)
}

// ListFilter is a conjunction: a zero field means "any".
type ListFilter struct {
	Year      int
	Level     string
	Grade     string
	Section   string
	SubjectID string
	TeacherID string
	Term      string
	Status    Status
}

// Matches reports whether a satisfies every set field of the filter.
func (f ListFilter) Matches(a *Acta) bool {
	if f.Year != 0 && a.Ref.Year != f.Year {
		return false
	}
	if f.Level != "" && a.Level != f.Level {
		return false
	}
	if f.Grade != "" && a.Grade != f.Grade {
		return false
	}
	if f.Section != "" && a.Ref.SectionID != f.Section {
		return false
	}
	if f.SubjectID != "" && a.Ref.SubjectID != f.SubjectID {
		return false
	}
	if f.TeacherID != "" && a.TeacherID != f.TeacherID {
		return false
	}
	if f.Term != "" && a.Ref.Term != f.Term {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}

// =============================================================================
// AUDIT LOG - Append-only record of every mutating action
// =============================================================================

type AuditAction string

const (
	AuditActaCreated     AuditAction = "acta_created"
	AuditActaSaved       AuditAction = "acta_saved"
	AuditActaValidated   AuditAction = "acta_validated"
	AuditActaLocked      AuditAction = "acta_locked"
	AuditActaUnlocked    AuditAction = "acta_unlocked"
	AuditActaPublished   AuditAction = "acta_published"
	AuditActaUnpublished AuditAction = "acta_unpublished"
	AuditExportRun       AuditAction = "export_run"
)

// AuditEvent records who did what to which acta, with optional JSON
// before/after snapshots. Events are never mutated after creation.
type AuditEvent struct {
	ID         string
	Timestamp  time.Time
	ActorID    string
	ActorName  string
	Action     AuditAction
	TargetType string
	TargetRef  string

	// BeforeSnapshot/AfterSnapshot hold JSON-serialized acta state.
	// Empty for actions with no before (create) or no target state
	// change (export).
	BeforeSnapshot string
	AfterSnapshot  string

	// Metadata carries action-specific detail (export row counts,
	// ref patterns).
	Metadata string
}

// AuditLog stores audit events. Append-only.
type AuditLog interface {
	Append(ctx context.Context, ev AuditEvent) error

	// Query returns events newest-first. Search is a free-text match
	// over action and metadata; Limit <= 0 means no limit.
	Query(ctx context.Context, f AuditFilter) ([]AuditEvent, error)
}

// AuditFilter supports the administrative audit viewer: free-text
// search plus paging at the storage layer.
type AuditFilter struct {
	Search string
	Limit  int
	Offset int
}
