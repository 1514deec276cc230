/*
scenarios.go - Demo scenario loaders

PURPOSE:
  Seeds recognizable data sets for development and demos: a section
  with actas in various lifecycle states, so the frontend has
  something real to render and the export endpoints produce output.
  Scenarios go through the lifecycle service like any caller would,
  so the audit trail is populated too.
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/acta-engine/acta"
)

var scenarioActor = acta.Actor{ID: "demo-admin", Name: "Demo Administrator"}

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "term-close",
		Name:        "Term close",
		Description: "One section at end of term: a published acta, a locked one, and a draft with incomplete weights",
	},
}

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds the scenario named in the id query parameter.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		id = "term-close"
	}
	if id != "term-close" {
		writeError(w, http.StatusNotFound, "Unknown scenario", nil)
		return
	}

	if err := h.loadTermClose(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"loaded": id})
}

func (h *Handler) loadTermClose(ctx context.Context) error {
	const (
		year    = 2026
		term    = "T1"
		section = "SEC-4A"
	)
	students := []string{"ENR-001", "ENR-002", "ENR-003", "ENR-004"}

	assignment := func(subjectID, subjectName string) acta.ClassAssignment {
		return acta.ClassAssignment{
			Year:        year,
			SectionID:   section,
			SubjectID:   subjectID,
			TeacherID:   "TCH-07",
			TeacherName: "M. Quispe",
			SubjectName: subjectName,
			Level:       "SECUNDARIA",
			Grade:       "4",
			Section:     "A",
		}
	}

	fullItems := []acta.EvaluationItem{
		{ID: "hw", Label: "Homework", WeightPercent: decimal.NewFromInt(20)},
		{ID: "quiz", Label: "Quizzes", WeightPercent: decimal.NewFromInt(25)},
		{ID: "part", Label: "Participation", WeightPercent: decimal.NewFromInt(15)},
		{ID: "exam", Label: "Final exam", WeightPercent: decimal.NewFromInt(40)},
	}

	gradedEntries := func(scores []int64) []acta.GradeEntry {
		entries := make([]acta.GradeEntry, len(students))
		for i, s := range students {
			v := decimal.NewFromInt(scores[i])
			entries[i] = acta.GradeEntry{StudentEnrollmentID: s, Kind: acta.GradeNumeric, Score: &v}
		}
		return entries
	}

	// Published: fully graded mathematics.
	math, err := h.Service.Create(ctx, scenarioActor, assignment("MATH", "Mathematics"), term)
	if err != nil {
		return fmt.Errorf("seed MATH: %w", err)
	}
	math.Items = fullItems
	math.Entries = gradedEntries([]int64{72, 65, 88, 54})
	if math, err = h.Service.Save(ctx, scenarioActor, math); err != nil {
		return fmt.Errorf("seed MATH: %w", err)
	}
	if _, err = h.Service.Lock(ctx, scenarioActor, math.Ref); err != nil {
		return fmt.Errorf("seed MATH: %w", err)
	}
	if _, err = h.Service.Publish(ctx, scenarioActor, math.Ref); err != nil {
		return fmt.Errorf("seed MATH: %w", err)
	}

	// Locked but not yet published: language.
	lang, err := h.Service.Create(ctx, scenarioActor, assignment("LANG", "Language"), term)
	if err != nil {
		return fmt.Errorf("seed LANG: %w", err)
	}
	lang.Items = fullItems
	lang.Entries = gradedEntries([]int64{61, 70, 49, 83})
	if lang, err = h.Service.Save(ctx, scenarioActor, lang); err != nil {
		return fmt.Errorf("seed LANG: %w", err)
	}
	if _, err = h.Service.Lock(ctx, scenarioActor, lang.Ref); err != nil {
		return fmt.Errorf("seed LANG: %w", err)
	}

	// Draft with incomplete weights and a missing grade: science.
	sci, err := h.Service.Create(ctx, scenarioActor, assignment("SCI", "Natural Sciences"), term)
	if err != nil {
		return fmt.Errorf("seed SCI: %w", err)
	}
	sci.Items = fullItems[:3] // weights sum to 60
	entries := gradedEntries([]int64{77, 58, 90, 0})
	entries[3].Score = nil // ENR-004 not graded yet
	sci.Entries = entries
	if _, err = h.Service.Save(ctx, scenarioActor, sci); err != nil {
		return fmt.Errorf("seed SCI: %w", err)
	}

	return nil
}
