/*
handlers.go - HTTP handlers for the acta engine

PURPOSE:
  Exposes the engine's complete public surface over REST: the six
  lifecycle operations, the three bulk operations, the two exports,
  list/get, and the read-only audit viewer. Handlers parse HTTP,
  delegate to the domain, and map the error taxonomy to status codes.

ENDPOINTS:
  Actas:
    GET    /api/actas                   List (conjunctive query filter)
    POST   /api/actas                   Create from class assignment
    GET    /api/actas/{ref}             Get one acta
    PUT    /api/actas/{ref}             Save grading data
    POST   /api/actas/{ref}/validate    Recompute metrics
    POST   /api/actas/{ref}/lock        DRAFT -> LOCKED
    POST   /api/actas/{ref}/unlock      LOCKED -> DRAFT
    POST   /api/actas/{ref}/publish     LOCKED -> PUBLISHED
    POST   /api/actas/{ref}/unpublish   PUBLISHED -> LOCKED

  Bulk:
    POST   /api/actas/bulk/validate
    POST   /api/actas/bulk/lock
    POST   /api/actas/bulk/publish

  Exports (text/csv):
    GET    /api/exports/consolidated?year=&term=&section=
    GET    /api/exports/students?year=&term=&section=

  Audit:
    GET    /api/audit?q=&limit=&offset=

ACTOR ATTRIBUTION:
  Every mutating call requires X-Actor-Id (and optionally X-Actor-Name)
  headers; the session layer in front of this service supplies them.

ERROR MAPPING:
  404: NotFound
  409: Conflict, StaleVersion
  422: NotEditable, InvalidTransition, ValidationFailed, RulesUnavailable
  400: malformed input
  500: everything else

SEE ALSO:
  - dto.go: request/response shapes and JSON helpers
  - server.go: router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/warp/acta-engine/acta"
)

// Handler holds the engine dependencies for the HTTP layer.
type Handler struct {
	Service  *acta.Service
	Exporter *acta.Exporter
}

func NewHandler(svc *acta.Service, exp *acta.Exporter) *Handler {
	return &Handler{Service: svc, Exporter: exp}
}

// =============================================================================
// ACTA HANDLERS
// =============================================================================

// ListActas returns actas matching the query-parameter filter.
func (h *Handler) ListActas(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := acta.ListFilter{
		Level:     q.Get("level"),
		Grade:     q.Get("grade"),
		Section:   q.Get("section"),
		SubjectID: q.Get("subject_id"),
		TeacherID: q.Get("teacher_id"),
		Term:      q.Get("term"),
		Status:    acta.Status(q.Get("status")),
	}
	if y := q.Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		filter.Year = year
	}

	actas, err := h.Service.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actas", err)
		return
	}

	dtos := make([]ActaDTO, len(actas))
	for i, a := range actas {
		dtos[i] = toActaDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetActa returns a single acta by reference.
func (h *Handler) GetActa(w http.ResponseWriter, r *http.Request) {
	ref, ok := refParam(w, r)
	if !ok {
		return
	}
	a, err := h.Service.Get(r.Context(), ref)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActaDTO(a))
}

// CreateActa seeds a new DRAFT acta from a class assignment.
func (h *Handler) CreateActa(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req CreateActaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Year == 0 || req.SectionID == "" || req.SubjectID == "" || req.Term == "" {
		writeError(w, http.StatusBadRequest, "year, section_id, subject_id and term are required", nil)
		return
	}

	assignment := acta.ClassAssignment{
		Year:        req.Year,
		SectionID:   req.SectionID,
		SubjectID:   req.SubjectID,
		TeacherID:   req.TeacherID,
		TeacherName: req.TeacherName,
		SubjectName: req.SubjectName,
		Level:       req.Level,
		Grade:       req.Grade,
		Section:     req.Section,
	}

	a, err := h.Service.Create(r.Context(), actor, assignment, req.Term)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActaDTO(a))
}

// SaveActa replaces grading data on a DRAFT acta.
func (h *Handler) SaveActa(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	ref, ok := refParam(w, r)
	if !ok {
		return
	}

	var req SaveActaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	incoming := &acta.Acta{
		Ref:     ref,
		Version: req.Version,
		Items:   fromItemDTOs(req.Items),
		Entries: fromEntryDTOs(req.Entries),
	}

	a, err := h.Service.Save(r.Context(), actor, incoming)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActaDTO(a))
}

// transitionHandler builds a handler for the single-ref lifecycle ops.
func (h *Handler) transitionHandler(
	op func(r *http.Request, actor acta.Actor, ref acta.Ref) (*acta.Acta, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		ref, ok := refParam(w, r)
		if !ok {
			return
		}
		a, err := op(r, actor, ref)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toActaDTO(a))
	}
}

// =============================================================================
// BULK HANDLERS
// =============================================================================

func (h *Handler) BulkValidate(w http.ResponseWriter, r *http.Request) {
	actor, refs, ok := bulkInput(w, r)
	if !ok {
		return
	}
	res := h.Service.BulkValidate(r.Context(), actor, refs)
	writeJSON(w, http.StatusOK, BulkValidateResultDTO{Total: res.Total, Succeeded: res.Succeeded, Failed: res.Failed})
}

func (h *Handler) BulkLock(w http.ResponseWriter, r *http.Request) {
	actor, refs, ok := bulkInput(w, r)
	if !ok {
		return
	}
	res := h.Service.BulkLock(r.Context(), actor, refs)
	writeJSON(w, http.StatusOK, BulkLockResultDTO{Locked: res.Locked, Failed: res.Failed})
}

func (h *Handler) BulkPublish(w http.ResponseWriter, r *http.Request) {
	actor, refs, ok := bulkInput(w, r)
	if !ok {
		return
	}
	res := h.Service.BulkPublish(r.Context(), actor, refs)
	writeJSON(w, http.StatusOK, BulkPublishResultDTO{Published: res.Published, Failed: res.Failed})
}

func bulkInput(w http.ResponseWriter, r *http.Request) (acta.Actor, []acta.Ref, bool) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return acta.Actor{}, nil, false
	}
	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return acta.Actor{}, nil, false
	}
	refs := make([]acta.Ref, 0, len(req.Refs))
	for _, s := range req.Refs {
		ref, err := acta.ParseRef(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid acta reference", err)
			return acta.Actor{}, nil, false
		}
		refs = append(refs, ref)
	}
	return actor, refs, true
}

// =============================================================================
// EXPORT HANDLERS
// =============================================================================

func (h *Handler) ExportConsolidated(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "consolidated", h.Exporter.ExportConsolidated)
}

func (h *Handler) ExportPerStudent(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "students", h.Exporter.ExportPerStudentReport)
}

func (h *Handler) export(
	w http.ResponseWriter,
	r *http.Request,
	name string,
	run func(ctx context.Context, actor acta.Actor, year int, term, sectionID string) ([][]string, error),
) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing year", err)
		return
	}
	term := q.Get("term")
	section := q.Get("section")
	if term == "" || section == "" {
		writeError(w, http.StatusBadRequest, "term and section are required", nil)
		return
	}

	rows, err := run(r.Context(), actor, year, term, section)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		`attachment; filename="`+name+`_`+q.Get("year")+`_`+term+`_`+section+`.csv"`)
	if err := acta.WriteCSV(w, rows); err != nil {
		// Headers already sent; nothing useful left to do.
		return
	}
}

// =============================================================================
// AUDIT HANDLER
// =============================================================================

// AuditEvents serves the administrative audit viewer: free-text search
// over action+metadata with limit/offset paging.
func (h *Handler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := acta.AuditFilter{Search: q.Get("q")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid offset", err)
			return
		}
		filter.Offset = n
	}

	events, err := h.Service.AuditEvents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query audit log", err)
		return
	}

	dtos := make([]AuditEventDTO, len(events))
	for i, ev := range events {
		dtos[i] = toAuditEventDTO(ev)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// actorFrom extracts audit attribution from the session headers.
func actorFrom(w http.ResponseWriter, r *http.Request) (acta.Actor, bool) {
	id := r.Header.Get("X-Actor-Id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "X-Actor-Id header is required", nil)
		return acta.Actor{}, false
	}
	return acta.Actor{ID: id, Name: r.Header.Get("X-Actor-Name")}, true
}

func refParam(w http.ResponseWriter, r *http.Request) (acta.Ref, bool) {
	ref, err := acta.ParseRef(chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid acta reference", err)
		return acta.Ref{}, false
	}
	return ref, true
}

// writeDomainError maps the engine's error taxonomy onto HTTP statuses.
// ValidationFailed responses carry the metrics errors verbatim so the
// UI can display the actionable explanations.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, acta.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, acta.ErrConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "conflict"})
	case errors.Is(err, acta.ErrStaleVersion):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "stale_version"})
	case errors.Is(err, acta.ErrNotEditable):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "not_editable"})
	case errors.Is(err, acta.ErrInvalidTransition):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "invalid_transition"})
	case errors.Is(err, acta.ErrValidationFailed):
		resp := ErrorResponse{Error: err.Error(), Code: "validation_failed"}
		var vf *acta.ValidationFailedError
		if errors.As(err, &vf) {
			resp.Details = vf.Metrics.Errors
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, acta.ErrRulesUnavailable):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "rules_unavailable"})
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
