/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Error taxonomy to HTTP status mapping
- Actor header attribution
- Full create/save/lock/publish flow plus CSV export over HTTP
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/warp/acta-engine/acta"
	"github.com/warp/acta-engine/acta/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	repo := store.NewMemory()
	audit := store.NewMemoryAudit()
	rules := acta.StaticRules{"SECUNDARIA": acta.DefaultNumericRules()}
	svc := acta.NewService(repo, audit, rules, nil)
	exp := acta.NewExporter(repo, audit, nil)
	return NewRouter(NewHandler(svc, exp))
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, actor string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor-Id", actor)
		req.Header.Set("X-Actor-Name", "Test Actor")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createReq() CreateActaRequest {
	return CreateActaRequest{
		Year:        2026,
		SectionID:   "SEC-4A",
		SubjectID:   "MATH",
		TeacherID:   "teacher-1",
		TeacherName: "M. Quispe",
		SubjectName: "Matematica",
		Level:       "SECUNDARIA",
		Grade:       "4",
		Section:     "A",
		Term:        "T1",
	}
}

func cleanSaveReq(version int64) SaveActaRequest {
	score := 72.0
	return SaveActaRequest{
		Version: version,
		Items:   []EvaluationItemDTO{{ID: "exam", Label: "Examen", WeightPercent: 100}},
		Entries: []GradeEntryDTO{{StudentEnrollmentID: "ENR-001", Kind: "numeric", Score: &score}},
	}
}

func decodeActa(t *testing.T, rec *httptest.ResponseRecorder) ActaDTO {
	t.Helper()
	var dto ActaDTO
	if err := json.NewDecoder(rec.Body).Decode(&dto); err != nil {
		t.Fatalf("Failed to decode acta response: %v", err)
	}
	return dto
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return resp
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateActa_Success(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/actas", createReq(), "teacher-1")

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	dto := decodeActa(t, rec)
	if dto.Status != "draft" || dto.Version != 1 {
		t.Errorf("Expected draft v1, got %s v%d", dto.Status, dto.Version)
	}
	if dto.Ref != "2026:SEC-4A:MATH:T1" {
		t.Errorf("Unexpected ref %q", dto.Ref)
	}
}

func TestCreateActa_MissingActorHeader(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/actas", createReq(), "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestCreateActa_MissingRequiredFields(t *testing.T) {
	router := newTestRouter(t)
	req := createReq()
	req.SubjectID = ""

	rec := doJSON(t, router, http.MethodPost, "/api/actas", req, "teacher-1")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestCreateActa_Duplicate_Conflict(t *testing.T) {
	router := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/api/actas", createReq(), "teacher-1")

	rec := doJSON(t, router, http.MethodPost, "/api/actas", createReq(), "teacher-1")

	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "conflict" {
		t.Errorf("Expected code conflict, got %q", resp.Code)
	}
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestGetActa_NotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/actas/2026:SEC-9Z:NONE:T1", nil, "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
}

func TestGetActa_MalformedRef(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/actas/not-a-ref", nil, "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestSaveActa_StaleVersion_Conflict(t *testing.T) {
	// GIVEN: an acta already saved once (now at version 2)
	router := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/api/actas", createReq(), "teacher-1")
	doJSON(t, router, http.MethodPut, "/api/actas/2026:SEC-4A:MATH:T1", cleanSaveReq(1), "teacher-1")

	// WHEN: a second writer presents the stale version 1
	rec := doJSON(t, router, http.MethodPut, "/api/actas/2026:SEC-4A:MATH:T1", cleanSaveReq(1), "teacher-2")

	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeError(t, rec); resp.Code != "stale_version" {
		t.Errorf("Expected code stale_version, got %q", resp.Code)
	}
}

func TestLockActa_ValidationFailed_CarriesDetails(t *testing.T) {
	// GIVEN: a draft whose weights sum to 60
	router := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/api/actas", createReq(), "teacher-1")
	save := SaveActaRequest{
		Version: 1,
		Items:   []EvaluationItemDTO{{ID: "exam", Label: "Examen", WeightPercent: 60}},
		Entries: []GradeEntryDTO{{StudentEnrollmentID: "ENR-001", Kind: "numeric"}},
	}
	doJSON(t, router, http.MethodPut, "/api/actas/2026:SEC-4A:MATH:T1", save, "teacher-1")

	rec := doJSON(t, router, http.MethodPost, "/api/actas/2026:SEC-4A:MATH:T1/lock", nil, "teacher-1")

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeError(t, rec)
	if resp.Code != "validation_failed" {
		t.Errorf("Expected code validation_failed, got %q", resp.Code)
	}
	details, ok := resp.Details.([]any)
	if !ok || len(details) != 2 {
		t.Fatalf("Expected 2 detail strings, got %v", resp.Details)
	}
}

func TestPublishDraft_InvalidTransition(t *testing.T) {
	router := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/api/actas", createReq(), "teacher-1")

	rec := doJSON(t, router, http.MethodPost, "/api/actas/2026:SEC-4A:MATH:T1/publish", nil, "teacher-1")

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "invalid_transition" {
		t.Errorf("Expected code invalid_transition, got %q", resp.Code)
	}
}

// =============================================================================
// FULL FLOW
// =============================================================================

func TestFullFlow_CreateToPublishToExport(t *testing.T) {
	router := newTestRouter(t)

	// Create, fill, lock, publish.
	doJSON(t, router, http.MethodPost, "/api/actas", createReq(), "teacher-1")
	rec := doJSON(t, router, http.MethodPut, "/api/actas/2026:SEC-4A:MATH:T1", cleanSaveReq(1), "teacher-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("Save failed: %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodPost, "/api/actas/2026:SEC-4A:MATH:T1/lock", nil, "teacher-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("Lock failed: %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodPost, "/api/actas/2026:SEC-4A:MATH:T1/publish", nil, "director-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("Publish failed: %d %s", rec.Code, rec.Body.String())
	}
	dto := decodeActa(t, rec)
	if dto.Status != "published" || dto.Version != 4 {
		t.Errorf("Expected published v4, got %s v%d", dto.Status, dto.Version)
	}

	// Export the section as CSV.
	rec = doJSON(t, router, http.MethodGet, "/api/exports/consolidated?year=2026&term=T1&section=SEC-4A", nil, "director-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("Export failed: %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Expected text/csv, got %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected header + 1 data row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "ENR-001") || !strings.Contains(lines[1], "72") {
		t.Errorf("Unexpected data row %q", lines[1])
	}

	// The audit viewer shows the whole history.
	rec = doJSON(t, router, http.MethodGet, "/api/audit", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Audit query failed: %d", rec.Code)
	}
	var events []AuditEventDTO
	if err := json.NewDecoder(rec.Body).Decode(&events); err != nil {
		t.Fatalf("Failed to decode audit events: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("Expected 5 audit events, got %d", len(events))
	}
	if events[0].Action != "export_run" {
		t.Errorf("Expected newest event export_run, got %q", events[0].Action)
	}
}

func TestListActas_FilterByStatus(t *testing.T) {
	router := newTestRouter(t)
	for i, subj := range []string{"MATH", "LANG"} {
		req := createReq()
		req.SubjectID = subj
		doJSON(t, router, http.MethodPost, "/api/actas", req, "teacher-1")
		if i == 0 {
			doJSON(t, router, http.MethodPut, "/api/actas/2026:SEC-4A:MATH:T1", cleanSaveReq(1), "teacher-1")
			doJSON(t, router, http.MethodPost, "/api/actas/2026:SEC-4A:MATH:T1/lock", nil, "teacher-1")
		}
	}

	rec := doJSON(t, router, http.MethodGet, "/api/actas?status=locked", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("List failed: %d", rec.Code)
	}
	var dtos []ActaDTO
	if err := json.NewDecoder(rec.Body).Decode(&dtos); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}
	if len(dtos) != 1 || dtos[0].SubjectID != "MATH" {
		t.Fatalf("Expected only the locked MATH acta, got %+v", dtos)
	}
}

// =============================================================================
// BULK
// =============================================================================

func TestBulkLock_MixedBatch(t *testing.T) {
	router := newTestRouter(t)

	// Two complete actas and one left empty.
	for _, subj := range []string{"MATH", "LANG", "SCI"} {
		req := createReq()
		req.SubjectID = subj
		doJSON(t, router, http.MethodPost, "/api/actas", req, "teacher-1")
		if subj != "SCI" {
			path := fmt.Sprintf("/api/actas/2026:SEC-4A:%s:T1", subj)
			doJSON(t, router, http.MethodPut, path, cleanSaveReq(1), "teacher-1")
		}
	}

	rec := doJSON(t, router, http.MethodPost, "/api/actas/bulk/lock", BulkRequest{Refs: []string{
		"2026:SEC-4A:MATH:T1",
		"2026:SEC-4A:LANG:T1",
		"2026:SEC-4A:SCI:T1",
	}}, "director-1")

	if rec.Code != http.StatusOK {
		t.Fatalf("Bulk lock failed: %d %s", rec.Code, rec.Body.String())
	}
	var res BulkLockResultDTO
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("Failed to decode bulk result: %v", err)
	}
	if res.Locked != 2 || res.Failed != 1 {
		t.Errorf("Expected locked=2 failed=1, got %+v", res)
	}
}

func TestBulkLock_AllFail_ZeroCountStillSerialized(t *testing.T) {
	// GIVEN: two empty drafts that cannot be locked
	router := newTestRouter(t)
	for _, subj := range []string{"MATH", "LANG"} {
		req := createReq()
		req.SubjectID = subj
		doJSON(t, router, http.MethodPost, "/api/actas", req, "teacher-1")
	}

	rec := doJSON(t, router, http.MethodPost, "/api/actas/bulk/lock", BulkRequest{Refs: []string{
		"2026:SEC-4A:MATH:T1",
		"2026:SEC-4A:LANG:T1",
	}}, "director-1")

	if rec.Code != http.StatusOK {
		t.Fatalf("Bulk lock failed: %d %s", rec.Code, rec.Body.String())
	}
	// The zero locked count must be an explicit key, not an omission.
	body := rec.Body.String()
	if !strings.Contains(body, `"locked":0`) {
		t.Errorf("Expected explicit locked:0 in response, got %s", body)
	}
	if !strings.Contains(body, `"failed":2`) {
		t.Errorf("Expected failed:2 in response, got %s", body)
	}
}

func TestBulkLock_MalformedRef(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/actas/bulk/lock",
		BulkRequest{Refs: []string{"garbage"}}, "director-1")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}
