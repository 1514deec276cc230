/*
lifecycle.go - The Acta state machine

PURPOSE:
  Orchestrates every state transition an Acta can undergo:

    Create -> DRAFT
    Save/Validate      (DRAFT stays DRAFT; Validate works in any state)
    Lock:      DRAFT -> LOCKED      (requires clean metrics)
    Unlock:    LOCKED -> DRAFT
    Publish:   LOCKED -> PUBLISHED  (requires clean metrics)
    Unpublish: PUBLISHED -> LOCKED

  No transition skips a state in either direction.

ALWAYS RE-VALIDATE:
  Lock and Publish never trust the metrics stored on the Acta. Data may
  have been edited after the last explicit Validate call, so both
  recompute metrics from current data under current rules and refuse
  the transition if the fresh result is not clean.

CONCURRENCY:
  Every operation re-reads the Acta, mutates a copy, and writes it back
  with the version counter advanced by exactly 1. Save additionally
  compares the version the caller presented against the stored one and
  fails with StaleVersion on mismatch. No blocking, no queueing: the
  loser re-reads and retries or surfaces the conflict.

AUDIT ORDERING:
  The state write happens first, the audit append second. A failed
  transition therefore never produces a phantom audit entry; a
  committed one is immediately followed by its event.

SEE ALSO:
  - validate.go: metrics computation invoked on every save/validate
  - bulk.go: batch variants of validate/lock/publish
  - export.go: PUBLISHED-only extracts
*/
package acta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service is the lifecycle orchestrator. It combines the validation
// engine, the repository and the audit log; it holds no acta state of
// its own.
type Service struct {
	repo  Repository
	audit AuditLog
	rules RulesProvider
	now   func() time.Time
}

// NewService wires a lifecycle service. The now function may be nil, in
// which case time.Now is used (tests inject a fixed clock).
func NewService(repo Repository, audit AuditLog, rules RulesProvider, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, audit: audit, rules: rules, now: now}
}

// Get reads a single Acta.
func (s *Service) Get(ctx context.Context, ref Ref) (*Acta, error) {
	return s.repo.Get(ctx, ref)
}

// List queries actas by conjunctive filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*Acta, error) {
	return s.repo.List(ctx, f)
}

// AuditEvents exposes the audit trail read-only for the admin viewer.
func (s *Service) AuditEvents(ctx context.Context, f AuditFilter) ([]AuditEvent, error) {
	return s.audit.Query(ctx, f)
}

// =============================================================================
// CREATE
// =============================================================================

// Create seeds a new DRAFT Acta from a class assignment. The assignment
// is the evidence that the (year, section, subject, term) key is a real
// class; Create refuses keys that already have an Acta.
func (s *Service) Create(ctx context.Context, actor Actor, assignment ClassAssignment, term string) (*Acta, error) {
	ref := assignment.Ref(term)

	existing, err := s.repo.Get(ctx, ref)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("create %s: %w", ref, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrConflict, ref)
	}

	rules, _ := s.lookupRules(assignment.Level)

	a := &Acta{
		Ref:            ref,
		Level:          assignment.Level,
		Grade:          assignment.Grade,
		Section:        assignment.Section,
		SubjectName:    assignment.SubjectName,
		TeacherID:      assignment.TeacherID,
		TeacherName:    assignment.TeacherName,
		Status:         StatusDraft,
		Version:        1,
		LastModifiedAt: s.now(),
		LastModifiedBy: actor.ID,
	}
	a.Metrics = ComputeMetrics(a, rules)

	if err := s.repo.Put(ctx, a); err != nil {
		return nil, fmt.Errorf("create %s: %w", ref, err)
	}
	if err := s.appendAudit(ctx, actor, AuditActaCreated, ref, "", snapshotJSON(a), ""); err != nil {
		return nil, err
	}
	return a, nil
}

// =============================================================================
// SAVE / VALIDATE
// =============================================================================

// Save replaces the grading data (items and entries) of a DRAFT Acta.
// The incoming Acta must present the version the caller last read;
// metrics are recomputed and the version advances by 1.
func (s *Service) Save(ctx context.Context, actor Actor, incoming *Acta) (*Acta, error) {
	stored, err := s.repo.Get(ctx, incoming.Ref)
	if err != nil {
		return nil, err
	}
	if !stored.Status.Editable() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotEditable, stored.Ref, stored.Status)
	}
	if incoming.Version != stored.Version {
		return nil, &StaleVersionError{Ref: stored.Ref, Expected: incoming.Version, Actual: stored.Version}
	}

	before := snapshotJSON(stored)
	rules, _ := s.lookupRules(stored.Level)

	updated := stored.Clone()
	updated.Items = append([]EvaluationItem(nil), incoming.Items...)
	updated.Entries = append([]GradeEntry(nil), incoming.Entries...)
	updated.Metrics = ComputeMetrics(updated, rules)
	updated.Version = stored.Version + 1
	updated.LastModifiedAt = s.now()
	updated.LastModifiedBy = actor.ID

	if err := s.repo.Put(ctx, updated); err != nil {
		return nil, fmt.Errorf("save %s: %w", stored.Ref, err)
	}
	if err := s.appendAudit(ctx, actor, AuditActaSaved, stored.Ref, before, snapshotJSON(updated), ""); err != nil {
		return nil, err
	}
	return updated, nil
}

// Validate recomputes metrics against current data and rules. The data
// itself does not change but the write is a real one: the version
// advances and the recomputation is audited. Works in any status.
func (s *Service) Validate(ctx context.Context, actor Actor, ref Ref) (*Acta, error) {
	stored, err := s.repo.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	rules, err := s.requireRules(stored.Level)
	if err != nil {
		return nil, err
	}

	before := snapshotJSON(stored)
	updated := stored.Clone()
	updated.Metrics = ComputeMetrics(updated, rules)
	updated.Version = stored.Version + 1
	updated.LastModifiedAt = s.now()
	updated.LastModifiedBy = actor.ID

	if err := s.repo.Put(ctx, updated); err != nil {
		return nil, fmt.Errorf("validate %s: %w", ref, err)
	}
	if err := s.appendAudit(ctx, actor, AuditActaValidated, ref, before, snapshotJSON(updated), ""); err != nil {
		return nil, err
	}
	return updated, nil
}

// =============================================================================
// LOCK / UNLOCK
// =============================================================================

// Lock freezes a DRAFT Acta against further edits. The transition is
// gated on freshly computed metrics being clean: weights exactly 100
// and zero validation errors.
func (s *Service) Lock(ctx context.Context, actor Actor, ref Ref) (*Acta, error) {
	return s.transition(ctx, actor, ref, "lock", StatusDraft, true, func(a *Acta, at time.Time) {
		a.Status = StatusLocked
		a.LockedAt = &at
		a.LockedBy = actor.ID
	}, AuditActaLocked)
}

// Unlock reopens a LOCKED Acta for editing.
func (s *Service) Unlock(ctx context.Context, actor Actor, ref Ref) (*Acta, error) {
	return s.transition(ctx, actor, ref, "unlock", StatusLocked, false, func(a *Acta, _ time.Time) {
		a.Status = StatusDraft
		a.LockedAt = nil
		a.LockedBy = ""
	}, AuditActaUnlocked)
}

// =============================================================================
// PUBLISH / UNPUBLISH
// =============================================================================

// Publish releases a LOCKED Acta's grades for downstream consumption.
// Like Lock, it re-validates freshly and refuses dirty metrics.
func (s *Service) Publish(ctx context.Context, actor Actor, ref Ref) (*Acta, error) {
	return s.transition(ctx, actor, ref, "publish", StatusLocked, true, func(a *Acta, at time.Time) {
		a.Status = StatusPublished
		a.PublishedAt = &at
		a.PublishedBy = actor.ID
	}, AuditActaPublished)
}

// Unpublish withdraws a PUBLISHED Acta back to LOCKED. The lock
// attribution from the original Lock is retained.
func (s *Service) Unpublish(ctx context.Context, actor Actor, ref Ref) (*Acta, error) {
	return s.transition(ctx, actor, ref, "unpublish", StatusPublished, false, func(a *Acta, _ time.Time) {
		a.Status = StatusLocked
		a.PublishedAt = nil
		a.PublishedBy = ""
	}, AuditActaUnpublished)
}

// transition is the shared edge walker: read, check the from-status,
// optionally re-validate, apply, write, audit. Refusals happen before
// the Put, so stored state is untouched on failure.
func (s *Service) transition(
	ctx context.Context,
	actor Actor,
	ref Ref,
	op string,
	from Status,
	revalidate bool,
	apply func(a *Acta, at time.Time),
	action AuditAction,
) (*Acta, error) {
	stored, err := s.repo.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if stored.Status != from {
		return nil, &InvalidTransitionError{Ref: ref, From: stored.Status, Op: op}
	}

	before := snapshotJSON(stored)
	at := s.now()
	updated := stored.Clone()

	if revalidate {
		rules, err := s.requireRules(stored.Level)
		if err != nil {
			return nil, err
		}
		fresh := ComputeMetrics(updated, rules)
		if !fresh.Clean() {
			return nil, &ValidationFailedError{Ref: ref, Metrics: fresh}
		}
		updated.Metrics = fresh
	}

	apply(updated, at)
	updated.Version = stored.Version + 1
	updated.LastModifiedAt = at
	updated.LastModifiedBy = actor.ID

	if err := s.repo.Put(ctx, updated); err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, ref, err)
	}
	if err := s.appendAudit(ctx, actor, action, ref, before, snapshotJSON(updated), ""); err != nil {
		return nil, err
	}
	return updated, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (s *Service) lookupRules(level string) (GradingRules, bool) {
	if s.rules == nil {
		return nil, false
	}
	return s.rules.RulesFor(level)
}

func (s *Service) requireRules(level string) (GradingRules, error) {
	rules, ok := s.lookupRules(level)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRulesUnavailable, level)
	}
	return rules, nil
}

func (s *Service) appendAudit(ctx context.Context, actor Actor, action AuditAction, ref Ref, before, after, metadata string) error {
	ev := AuditEvent{
		ID:             uuid.NewString(),
		Timestamp:      s.now(),
		ActorID:        actor.ID,
		ActorName:      actor.Name,
		Action:         action,
		TargetType:     "acta",
		TargetRef:      ref.String(),
		BeforeSnapshot: before,
		AfterSnapshot:  after,
		Metadata:       metadata,
	}
	if err := s.audit.Append(ctx, ev); err != nil {
		return fmt.Errorf("audit %s %s: %w", action, ref, err)
	}
	return nil
}

// snapshotJSON serializes an Acta for audit snapshots. Marshal failures
// cannot happen for this type; an empty snapshot would only ever come
// from a nil acta.
func snapshotJSON(a *Acta) string {
	b, err := json.Marshal(a)
	if err != nil {
		return ""
	}
	return string(b)
}
