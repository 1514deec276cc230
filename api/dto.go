/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  JSON shapes exchanged with calling collaborators, plus conversion
  helpers between DTOs and domain types. Scores and weights travel as
  JSON numbers and are converted to decimals at this boundary.
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/acta-engine/acta"
)

// =============================================================================
// ACTA DTOs
// =============================================================================

type ActaDTO struct {
	Ref         string `json:"ref"`
	Year        int    `json:"year"`
	SectionID   string `json:"section_id"`
	SubjectID   string `json:"subject_id"`
	Term        string `json:"term"`
	Level       string `json:"level"`
	Grade       string `json:"grade"`
	Section     string `json:"section"`
	SubjectName string `json:"subject_name"`
	TeacherID   string `json:"teacher_id"`
	TeacherName string `json:"teacher_name"`
	Status      string `json:"status"`
	Version     int64  `json:"version"`

	Items   []EvaluationItemDTO `json:"items"`
	Entries []GradeEntryDTO     `json:"entries"`
	Metrics MetricsDTO          `json:"metrics"`

	LastModifiedAt string  `json:"last_modified_at"`
	LastModifiedBy string  `json:"last_modified_by"`
	LockedAt       *string `json:"locked_at,omitempty"`
	LockedBy       string  `json:"locked_by,omitempty"`
	PublishedAt    *string `json:"published_at,omitempty"`
	PublishedBy    string  `json:"published_by,omitempty"`
}

type EvaluationItemDTO struct {
	ID            string  `json:"id"`
	Label         string  `json:"label"`
	WeightPercent float64 `json:"weight_percent"`
}

type GradeEntryDTO struct {
	StudentEnrollmentID string   `json:"student_enrollment_id"`
	Kind                string   `json:"kind"`
	Score               *float64 `json:"score,omitempty"`
	Level               string   `json:"level,omitempty"`
	AttendancePercent   *float64 `json:"attendance_percent,omitempty"`
}

type MetricsDTO struct {
	WeightsValid  bool     `json:"weights_valid"`
	WeightSum     float64  `json:"weight_sum"`
	GradedPercent int      `json:"graded_percent"`
	Errors        []string `json:"errors"`
}

// =============================================================================
// REQUEST DTOs
// =============================================================================

// CreateActaRequest carries the class assignment plus the grading term.
type CreateActaRequest struct {
	Year        int    `json:"year"`
	SectionID   string `json:"section_id"`
	SubjectID   string `json:"subject_id"`
	TeacherID   string `json:"teacher_id"`
	TeacherName string `json:"teacher_name"`
	SubjectName string `json:"subject_name"`
	Level       string `json:"level"`
	Grade       string `json:"grade"`
	Section     string `json:"section"`
	Term        string `json:"term"`
}

// SaveActaRequest replaces grading data; Version is the token the
// caller last read.
type SaveActaRequest struct {
	Version int64               `json:"version"`
	Items   []EvaluationItemDTO `json:"items"`
	Entries []GradeEntryDTO     `json:"entries"`
}

// BulkRequest names the actas a bulk operation should cover.
type BulkRequest struct {
	Refs []string `json:"refs"`
}

// Bulk results get one DTO per operation so a zero count is still an
// explicit field in the response, never an omitted key.
type BulkValidateResultDTO struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type BulkLockResultDTO struct {
	Locked int `json:"locked"`
	Failed int `json:"failed"`
}

type BulkPublishResultDTO struct {
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// =============================================================================
// AUDIT DTOs
// =============================================================================

type AuditEventDTO struct {
	ID             string `json:"id"`
	Timestamp      string `json:"timestamp"`
	ActorID        string `json:"actor_id"`
	ActorName      string `json:"actor_name"`
	Action         string `json:"action"`
	TargetType     string `json:"target_type"`
	TargetRef      string `json:"target_ref"`
	BeforeSnapshot string `json:"before_snapshot,omitempty"`
	AfterSnapshot  string `json:"after_snapshot,omitempty"`
	Metadata       string `json:"metadata,omitempty"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toActaDTO(a *acta.Acta) ActaDTO {
	weightSum, _ := a.Metrics.WeightSum.Float64()
	dto := ActaDTO{
		Ref:         a.Ref.String(),
		Year:        a.Ref.Year,
		SectionID:   a.Ref.SectionID,
		SubjectID:   a.Ref.SubjectID,
		Term:        a.Ref.Term,
		Level:       a.Level,
		Grade:       a.Grade,
		Section:     a.Section,
		SubjectName: a.SubjectName,
		TeacherID:   a.TeacherID,
		TeacherName: a.TeacherName,
		Status:      string(a.Status),
		Version:     a.Version,
		Metrics: MetricsDTO{
			WeightsValid:  a.Metrics.WeightsValid,
			WeightSum:     weightSum,
			GradedPercent: a.Metrics.GradedPercent,
			Errors:        append([]string{}, a.Metrics.Errors...),
		},
		LastModifiedAt: a.LastModifiedAt.Format(time.RFC3339),
		LastModifiedBy: a.LastModifiedBy,
		LockedBy:       a.LockedBy,
		PublishedBy:    a.PublishedBy,
	}

	dto.Items = make([]EvaluationItemDTO, len(a.Items))
	for i, item := range a.Items {
		w, _ := item.WeightPercent.Float64()
		dto.Items[i] = EvaluationItemDTO{ID: item.ID, Label: item.Label, WeightPercent: w}
	}
	dto.Entries = make([]GradeEntryDTO, len(a.Entries))
	for i, e := range a.Entries {
		dto.Entries[i] = toGradeEntryDTO(e)
	}
	if a.LockedAt != nil {
		s := a.LockedAt.Format(time.RFC3339)
		dto.LockedAt = &s
	}
	if a.PublishedAt != nil {
		s := a.PublishedAt.Format(time.RFC3339)
		dto.PublishedAt = &s
	}
	return dto
}

func toGradeEntryDTO(e acta.GradeEntry) GradeEntryDTO {
	dto := GradeEntryDTO{
		StudentEnrollmentID: e.StudentEnrollmentID,
		Kind:                string(e.Kind),
		Level:               e.Level,
	}
	if e.Score != nil {
		v, _ := e.Score.Float64()
		dto.Score = &v
	}
	if e.AttendancePercent != nil {
		v, _ := e.AttendancePercent.Float64()
		dto.AttendancePercent = &v
	}
	return dto
}

func fromItemDTOs(items []EvaluationItemDTO) []acta.EvaluationItem {
	out := make([]acta.EvaluationItem, len(items))
	for i, d := range items {
		out[i] = acta.EvaluationItem{
			ID:            d.ID,
			Label:         d.Label,
			WeightPercent: decimal.NewFromFloat(d.WeightPercent),
		}
	}
	return out
}

func fromEntryDTOs(entries []GradeEntryDTO) []acta.GradeEntry {
	out := make([]acta.GradeEntry, len(entries))
	for i, d := range entries {
		e := acta.GradeEntry{
			StudentEnrollmentID: d.StudentEnrollmentID,
			Kind:                acta.GradeKind(d.Kind),
			Level:               d.Level,
		}
		if d.Score != nil {
			s := decimal.NewFromFloat(*d.Score)
			e.Score = &s
		}
		if d.AttendancePercent != nil {
			p := decimal.NewFromFloat(*d.AttendancePercent)
			e.AttendancePercent = &p
		}
		out[i] = e
	}
	return out
}

func toAuditEventDTO(ev acta.AuditEvent) AuditEventDTO {
	return AuditEventDTO{
		ID:             ev.ID,
		Timestamp:      ev.Timestamp.Format(time.RFC3339),
		ActorID:        ev.ActorID,
		ActorName:      ev.ActorName,
		Action:         string(ev.Action),
		TargetType:     ev.TargetType,
		TargetRef:      ev.TargetRef,
		BeforeSnapshot: ev.BeforeSnapshot,
		AfterSnapshot:  ev.AfterSnapshot,
		Metadata:       ev.Metadata,
	}
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
