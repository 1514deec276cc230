/*
Package acta implements the academic grade-record lifecycle engine.

PURPOSE:
  An Acta is a per-class grade record: one subject, one section, one
  grading term. This package owns everything that makes an Acta more
  than a row in a table: the DRAFT → LOCKED → PUBLISHED state machine,
  the validation rules that gate locking and publishing, optimistic
  concurrency on every write, and the append-only audit trail.

KEY CONCEPTS IN THIS FILE (types.go):
  - Ref: composite reference key {year, section, subject, term}
  - Acta: the central entity with status, version and grading data
  - EvaluationItem: a weighted grading category (homework, exam, ...)
  - GradeEntry: one student's grade, possibly not yet recorded
  - ValidationMetrics: derived completeness/consistency data
  - Actor: audit attribution for every mutating call

DESIGN PRINCIPLES:
  1. Statuses, not deletes: an Acta is never physically removed,
     transitions are the only way to end editability.
  2. Precision: decimal.Decimal for scores and weights, so the
     "weights sum to exactly 100" check is exact.
  3. Copy semantics: the repository owns the record; services read a
     copy, mutate it, and write it back with a version bump.

SEE ALSO:
  - validate.go: metrics computation
  - lifecycle.go: the state machine
  - repository.go: storage and audit interfaces
*/
package acta

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REFERENCE KEY - Identifies one Acta
// =============================================================================

// Ref is the composite key of an Acta: one subject taught to one section
// during one grading term of one school year.
type Ref struct {
	Year      int
	SectionID string
	SubjectID string
	Term      string
}

// String serializes the key as a single reference string.
// Format: "<year>:<section>:<subject>:<term>".
func (r Ref) String() string {
	return fmt.Sprintf("%d:%s:%s:%s", r.Year, r.SectionID, r.SubjectID, r.Term)
}

// ParseRef parses a serialized reference string back into a Ref.
// Parsing is strict: the year must be all digits, so every acta has
// exactly one spelling of its reference.
func ParseRef(s string) (Ref, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 {
		return Ref{}, fmt.Errorf("malformed acta reference %q", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Ref{}, fmt.Errorf("malformed acta reference %q: bad year", s)
	}
	if parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return Ref{}, fmt.Errorf("malformed acta reference %q: empty component", s)
	}
	return Ref{Year: year, SectionID: parts[1], SubjectID: parts[2], Term: parts[3]}, nil
}

// =============================================================================
// STATUS - The three lifecycle states
// =============================================================================

type Status string

const (
	StatusDraft     Status = "draft"
	StatusLocked    Status = "locked"
	StatusPublished Status = "published"
)

// Editable reports whether grading data may still change.
// Only DRAFT actas accept saves.
func (s Status) Editable() bool { return s == StatusDraft }

// =============================================================================
// GRADING DATA
// =============================================================================

// EvaluationItem is a weighted grading category within an Acta.
// Weights across all items must sum to exactly 100 before the Acta
// can be locked.
type EvaluationItem struct {
	ID            string
	Label         string
	WeightPercent decimal.Decimal
}

type GradeKind string

const (
	GradeNumeric     GradeKind = "numeric"
	GradeQualitative GradeKind = "qualitative"
)

// GradeEntry is one student's grade for an Acta. The entry exists for
// every enrolled student; a student who has not been graded yet has a
// nil Score (numeric) or empty Level (qualitative).
type GradeEntry struct {
	StudentEnrollmentID string
	Kind                GradeKind

	// Score holds the numeric value when Kind == GradeNumeric.
	Score *decimal.Decimal

	// Level holds the achievement-level code when Kind == GradeQualitative.
	Level string

	// AttendancePercent is optional; when present it is checked against
	// the rule set's minimum.
	AttendancePercent *decimal.Decimal
}

// Graded reports whether a value has been recorded for this entry.
func (g GradeEntry) Graded() bool {
	if g.Kind == GradeQualitative {
		return g.Level != ""
	}
	return g.Score != nil
}

// =============================================================================
// VALIDATION METRICS - Derived, never hand-edited
// =============================================================================

// ValidationMetrics is recomputed on every save/validate call and stored
// on the owning Acta. Errors are ordered: weight-sum violation first,
// then missing grades, then rule-specific violations.
type ValidationMetrics struct {
	WeightsValid  bool
	WeightSum     decimal.Decimal
	GradedPercent int
	Errors        []string
}

// Clean reports whether the Acta may be locked or published.
func (m ValidationMetrics) Clean() bool {
	return m.WeightsValid && len(m.Errors) == 0
}

// =============================================================================
// ACTA - The central entity
// =============================================================================

type Acta struct {
	Ref Ref

	// Descriptive fields seeded from the class assignment at creation.
	Level       string
	Grade       string
	Section     string
	SubjectName string
	TeacherID   string
	TeacherName string

	Status Status

	// Version is the optimistic-concurrency token. It starts at 1 and
	// advances by exactly 1 on every successful write.
	Version int64

	Items   []EvaluationItem
	Entries []GradeEntry
	Metrics ValidationMetrics

	LastModifiedAt time.Time
	LastModifiedBy string

	LockedAt    *time.Time
	LockedBy    string
	PublishedAt *time.Time
	PublishedBy string
}

// Clone returns a deep copy. Repositories hand out and accept clones so
// no caller ever holds a live reference into stored state.
func (a *Acta) Clone() *Acta {
	cp := *a
	cp.Items = append([]EvaluationItem(nil), a.Items...)
	cp.Entries = make([]GradeEntry, len(a.Entries))
	for i, e := range a.Entries {
		cp.Entries[i] = e
		if e.Score != nil {
			s := *e.Score
			cp.Entries[i].Score = &s
		}
		if e.AttendancePercent != nil {
			p := *e.AttendancePercent
			cp.Entries[i].AttendancePercent = &p
		}
	}
	cp.Metrics.Errors = append([]string(nil), a.Metrics.Errors...)
	if a.LockedAt != nil {
		t := *a.LockedAt
		cp.LockedAt = &t
	}
	if a.PublishedAt != nil {
		t := *a.PublishedAt
		cp.PublishedAt = &t
	}
	return &cp
}

// =============================================================================
// COLLABORATOR INPUTS
// =============================================================================

// ClassAssignment is supplied by the section/assignment module and used
// only by Create to seed a new Acta's descriptive fields.
type ClassAssignment struct {
	Year        int
	SectionID   string
	SubjectID   string
	TeacherID   string
	TeacherName string
	SubjectName string
	Level       string
	Grade       string
	Section     string
}

// Ref returns the composite key the assignment maps to for a given term.
func (c ClassAssignment) Ref(term string) Ref {
	return Ref{Year: c.Year, SectionID: c.SectionID, SubjectID: c.SubjectID, Term: term}
}

// Actor identifies who performed a mutating call, for audit attribution.
// Supplied by the calling session/auth context.
type Actor struct {
	ID   string
	Name string
}
