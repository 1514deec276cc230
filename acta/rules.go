/*
rules.go - Grading rules per education level

PURPOSE:
  GradingRules is the institution-level configuration the validation
  engine checks grades against. Exactly one rule set applies per
  education level: either a numeric scale or an ordered list of
  qualitative achievement levels. The engine consumes rules read-only;
  the parameters/configuration module owns them.

TAGGED UNION:
  Rather than duck-typing a loose config blob, the two shapes are
  concrete types behind the GradingRules interface and the validation
  engine dispatches with a type switch. See factory/rules.go for the
  JSON form.

SEE ALSO:
  - validate.go: the only consumer of these rules
  - factory/rules.go: JSON config parsing
*/
package acta

import "github.com/shopspring/decimal"

// GradingRules is the sealed sum of NumericRules and QualitativeRules.
type GradingRules interface {
	isGradingRules()
	// MinAttendance returns the minimum attendance percentage required,
	// shared by both rule shapes.
	MinAttendance() decimal.Decimal
}

// NumericRules bounds numeric scores. This institution pins numeric
// scales to 0-100 with passing score 51.
type NumericRules struct {
	MinScore             decimal.Decimal
	MaxScore             decimal.Decimal
	PassingScore         decimal.Decimal
	DecimalPlaces        int
	MinAttendancePercent decimal.Decimal
}

func (NumericRules) isGradingRules() {}

func (r NumericRules) MinAttendance() decimal.Decimal { return r.MinAttendancePercent }

// Passing reports whether a score meets the passing threshold.
func (r NumericRules) Passing(score decimal.Decimal) bool {
	return score.GreaterThanOrEqual(r.PassingScore)
}

// QualitativeRules enumerates the valid achievement-level codes, ordered
// from lowest to highest achievement.
type QualitativeRules struct {
	Levels               []AchievementLevel
	MinAttendancePercent decimal.Decimal
}

type AchievementLevel struct {
	Code  string
	Label string
}

func (QualitativeRules) isGradingRules() {}

func (r QualitativeRules) MinAttendance() decimal.Decimal { return r.MinAttendancePercent }

// HasLevel reports whether code is one of the configured levels.
func (r QualitativeRules) HasLevel(code string) bool {
	for _, l := range r.Levels {
		if l.Code == code {
			return true
		}
	}
	return false
}

// DefaultNumericRules returns the institution's pinned numeric scale:
// 0-100, passing 51, whole-point grades, 80% minimum attendance.
func DefaultNumericRules() NumericRules {
	return NumericRules{
		MinScore:             decimal.Zero,
		MaxScore:             decimal.NewFromInt(100),
		PassingScore:         decimal.NewFromInt(51),
		DecimalPlaces:        0,
		MinAttendancePercent: decimal.NewFromInt(80),
	}
}

// RulesProvider supplies the rule set for an education level. A level
// with no configured rules blocks Validate/Lock/Publish: the engine
// fails closed rather than assuming defaults.
type RulesProvider interface {
	RulesFor(level string) (GradingRules, bool)
}

// StaticRules is a RulesProvider backed by a plain map, used by tests
// and the demo scenarios.
type StaticRules map[string]GradingRules

func (s StaticRules) RulesFor(level string) (GradingRules, bool) {
	r, ok := s[level]
	return r, ok
}
