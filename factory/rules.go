/*
Package factory converts JSON grading-rules configuration into typed
rule sets.

PURPOSE:
  Grading rules are institution configuration, not code: administrators
  define them per education level in JSON, and this factory produces
  the acta.NumericRules / acta.QualitativeRules sum type the validation
  engine dispatches on. The "type" tag discriminates the two shapes
  explicitly instead of probing fields.

JSON SCHEMA:
  {
    "level": "SECUNDARIA",
    "type": "numeric",
    "min_score": 0,
    "max_score": 100,
    "passing_score": 51,
    "decimal_places": 0,
    "min_attendance_percent": 80
  }

  {
    "level": "INICIAL",
    "type": "qualitative",
    "levels": [
      {"code": "ED", "label": "En desarrollo"},
      {"code": "DA", "label": "Desarrollo aceptable"},
      {"code": "DO", "label": "Desarrollo optimo"},
      {"code": "DP", "label": "Desarrollo pleno"}
    ],
    "min_attendance_percent": 75
  }

DEFAULTS:
  Omitted numeric bounds fall back to the institution's pinned scale:
  0-100, passing 51, whole points, 80% attendance.

SEE ALSO:
  - acta/rules.go: the typed rule sets and RulesProvider
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/acta-engine/acta"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RulesJSON is the JSON representation of one level's rule set.
type RulesJSON struct {
	Level string `json:"level"`
	Type  string `json:"type"` // numeric | qualitative

	// Numeric fields
	MinScore      *float64 `json:"min_score,omitempty"`
	MaxScore      *float64 `json:"max_score,omitempty"`
	PassingScore  *float64 `json:"passing_score,omitempty"`
	DecimalPlaces *int     `json:"decimal_places,omitempty"`

	// Qualitative fields
	Levels []LevelJSON `json:"levels,omitempty"`

	// Shared
	MinAttendancePercent *float64 `json:"min_attendance_percent,omitempty"`
}

// LevelJSON is one achievement level, ordered lowest to highest.
type LevelJSON struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// =============================================================================
// RULES FACTORY
// =============================================================================

// RulesFactory converts JSON rule configs to typed rule sets.
type RulesFactory struct{}

func NewRulesFactory() *RulesFactory {
	return &RulesFactory{}
}

// Parse parses a single rule-set JSON document. Returns the education
// level the rules apply to alongside the rules themselves.
func (f *RulesFactory) Parse(jsonStr string) (string, acta.GradingRules, error) {
	var rj RulesJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return "", nil, fmt.Errorf("failed to parse rules JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// ParseSet parses a JSON array of rule sets into a RulesProvider.
// Exactly one rule set may appear per level.
func (f *RulesFactory) ParseSet(jsonStr string) (acta.StaticRules, error) {
	var docs []RulesJSON
	if err := json.Unmarshal([]byte(jsonStr), &docs); err != nil {
		return nil, fmt.Errorf("failed to parse rules config: %w", err)
	}

	set := make(acta.StaticRules, len(docs))
	for _, rj := range docs {
		level, rules, err := f.FromJSON(rj)
		if err != nil {
			return nil, err
		}
		if _, dup := set[level]; dup {
			return nil, fmt.Errorf("duplicate rules for level %q", level)
		}
		set[level] = rules
	}
	return set, nil
}

// FromJSON converts a parsed RulesJSON into the typed sum.
func (f *RulesFactory) FromJSON(rj RulesJSON) (string, acta.GradingRules, error) {
	if rj.Level == "" {
		return "", nil, fmt.Errorf("rules config missing level")
	}

	switch rj.Type {
	case "numeric":
		r := acta.DefaultNumericRules()
		if rj.MinScore != nil {
			r.MinScore = decimal.NewFromFloat(*rj.MinScore)
		}
		if rj.MaxScore != nil {
			r.MaxScore = decimal.NewFromFloat(*rj.MaxScore)
		}
		if rj.PassingScore != nil {
			r.PassingScore = decimal.NewFromFloat(*rj.PassingScore)
		}
		if rj.DecimalPlaces != nil {
			r.DecimalPlaces = *rj.DecimalPlaces
		}
		if rj.MinAttendancePercent != nil {
			r.MinAttendancePercent = decimal.NewFromFloat(*rj.MinAttendancePercent)
		}
		if r.MaxScore.LessThanOrEqual(r.MinScore) {
			return "", nil, fmt.Errorf("level %q: max_score must exceed min_score", rj.Level)
		}
		return rj.Level, r, nil

	case "qualitative":
		if len(rj.Levels) == 0 {
			return "", nil, fmt.Errorf("level %q: qualitative rules need at least one achievement level", rj.Level)
		}
		r := acta.QualitativeRules{
			MinAttendancePercent: decimal.NewFromInt(80),
		}
		if rj.MinAttendancePercent != nil {
			r.MinAttendancePercent = decimal.NewFromFloat(*rj.MinAttendancePercent)
		}
		seen := make(map[string]bool, len(rj.Levels))
		for _, l := range rj.Levels {
			if l.Code == "" {
				return "", nil, fmt.Errorf("level %q: achievement level with empty code", rj.Level)
			}
			if seen[l.Code] {
				return "", nil, fmt.Errorf("level %q: duplicate achievement level %q", rj.Level, l.Code)
			}
			seen[l.Code] = true
			r.Levels = append(r.Levels, acta.AchievementLevel{Code: l.Code, Label: l.Label})
		}
		return rj.Level, r, nil

	default:
		return "", nil, fmt.Errorf("level %q: unknown rules type %q", rj.Level, rj.Type)
	}
}
