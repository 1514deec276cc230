/*
export.go - Tabular extracts from published actas

PURPOSE:
  Produces the downstream-facing gradesheets. Only PUBLISHED actas are
  visible here: publishing is the freeze-and-release boundary, and an
  unpublished Acta simply does not exist as far as exports are
  concerned.

ROW SHAPE:
  One row per (Acta x GradeEntry). A student who has not been graded
  still gets a row with an explicit empty value cell, so row counts
  stay predictable and joinable downstream.

OBSERVABILITY:
  Every export call appends one audit event with the reference pattern
  and the number of data rows produced. Exports are observable actions,
  not anonymous reads.
*/
package acta

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Exporter generates tabular extracts. It reads from the repository
// only and never mutates acta state.
type Exporter struct {
	repo  Repository
	audit AuditLog
	now   func() time.Time
}

// NewExporter wires an export generator. A nil now falls back to
// time.Now.
func NewExporter(repo Repository, audit AuditLog, now func() time.Time) *Exporter {
	if now == nil {
		now = time.Now
	}
	return &Exporter{repo: repo, audit: audit, now: now}
}

var consolidatedHeader = []string{
	"year", "term", "section", "grade", "subject", "teacher",
	"student_enrollment_id", "kind", "value",
}

var perStudentHeader = []string{
	"student_enrollment_id", "year", "term", "section", "subject",
	"teacher", "value",
}

// ExportConsolidated returns the consolidated gradesheet for a section:
// header row first, then one row per (published acta, grade entry),
// ordered by subject then student.
func (e *Exporter) ExportConsolidated(ctx context.Context, actor Actor, year int, term, sectionID string) ([][]string, error) {
	actas, err := e.published(ctx, year, term, sectionID)
	if err != nil {
		return nil, err
	}

	rows := [][]string{consolidatedHeader}
	for _, a := range actas {
		for _, g := range a.Entries {
			rows = append(rows, []string{
				fmt.Sprintf("%d", a.Ref.Year),
				a.Ref.Term,
				a.Section,
				a.Grade,
				a.SubjectName,
				a.TeacherName,
				g.StudentEnrollmentID,
				string(g.Kind),
				gradeCell(g),
			})
		}
	}

	if err := e.auditExport(ctx, actor, year, term, sectionID, "consolidated", len(rows)-1); err != nil {
		return nil, err
	}
	return rows, nil
}

// ExportPerStudentReport returns the per-student view of the same data,
// ordered by student then subject.
func (e *Exporter) ExportPerStudentReport(ctx context.Context, actor Actor, year int, term, sectionID string) ([][]string, error) {
	actas, err := e.published(ctx, year, term, sectionID)
	if err != nil {
		return nil, err
	}

	type line struct {
		student, subject string
		row              []string
	}
	var lines []line
	for _, a := range actas {
		for _, g := range a.Entries {
			lines = append(lines, line{
				student: g.StudentEnrollmentID,
				subject: a.Ref.SubjectID,
				row: []string{
					g.StudentEnrollmentID,
					fmt.Sprintf("%d", a.Ref.Year),
					a.Ref.Term,
					a.Section,
					a.SubjectName,
					a.TeacherName,
					gradeCell(g),
				},
			})
		}
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].student != lines[j].student {
			return lines[i].student < lines[j].student
		}
		return lines[i].subject < lines[j].subject
	})

	rows := [][]string{perStudentHeader}
	for _, l := range lines {
		rows = append(rows, l.row)
	}

	if err := e.auditExport(ctx, actor, year, term, sectionID, "per_student", len(rows)-1); err != nil {
		return nil, err
	}
	return rows, nil
}

// WriteCSV renders rows as delimited text with RFC 4180 quoting
// (embedded delimiters and quotes are escaped by quoting and doubling).
func WriteCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// published lists the PUBLISHED actas for the export filter. The
// repository's lexicographic ordering gives a stable subject order.
func (e *Exporter) published(ctx context.Context, year int, term, sectionID string) ([]*Acta, error) {
	return e.repo.List(ctx, ListFilter{
		Year:    year,
		Term:    term,
		Section: sectionID,
		Status:  StatusPublished,
	})
}

func (e *Exporter) auditExport(ctx context.Context, actor Actor, year int, term, sectionID, kind string, rowCount int) error {
	pattern := fmt.Sprintf("%d:%s:*:%s", year, sectionID, term)
	ev := AuditEvent{
		ID:         uuid.NewString(),
		Timestamp:  e.now(),
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Action:     AuditExportRun,
		TargetType: "export",
		TargetRef:  pattern,
		Metadata:   fmt.Sprintf(`{"kind":%q,"pattern":%q,"rows":%d}`, kind, pattern, rowCount),
	}
	if err := e.audit.Append(ctx, ev); err != nil {
		return fmt.Errorf("audit export %s: %w", pattern, err)
	}
	return nil
}

// gradeCell renders a grade value for export. Ungraded entries render
// as an explicit empty cell, never dropped.
func gradeCell(g GradeEntry) string {
	if !g.Graded() {
		return ""
	}
	if g.Kind == GradeQualitative {
		return g.Level
	}
	return g.Score.String()
}
