/*
validate.go - The validation engine

PURPOSE:
  Computes completeness/consistency metrics for an Acta against the
  grading rules of its education level. Pure and deterministic: same
  acta + same rules -> same metrics, no I/O, no state.

ERROR ORDERING:
  The errors slice has a stable order so the UI (and tests) can rely
  on it:
    1. weight-sum violation
    2. duplicate-entry and missing-grade violations, in entry order
    3. rule-specific violations, in entry order
       (score out of range, too many decimal places, unknown
        achievement level, attendance below minimum)

ENTRIES ARE A SET:
  At most one grade entry per student. A repeated enrollment ID is a
  structural violation; duplicates are excluded from gradedPercent and
  from the rule-specific checks so each student is judged once, on the
  first entry.

"INVALID" IS DATA:
  ComputeMetrics never fails. An Acta where every check is violated
  still gets a metrics object; refusing a transition on dirty metrics
  is the lifecycle service's job.
*/
package acta

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ComputeMetrics validates an Acta's grading data against rules and
// returns the derived metrics. It inspects but never mutates its inputs.
// A nil rules value skips the rule-specific checks; the weight-sum,
// duplicate-entry and missing-grade checks are structural and always run.
func ComputeMetrics(a *Acta, rules GradingRules) ValidationMetrics {
	m := ValidationMetrics{WeightSum: decimal.Zero}

	for _, item := range a.Items {
		m.WeightSum = m.WeightSum.Add(item.WeightPercent)
	}
	m.WeightsValid = m.WeightSum.Equal(hundred)
	if !m.WeightsValid {
		m.Errors = append(m.Errors, fmt.Sprintf(
			"evaluation item weights sum to %s, expected exactly 100", m.WeightSum))
	}

	graded := 0
	seen := make(map[string]bool, len(a.Entries))
	for _, e := range a.Entries {
		if seen[e.StudentEnrollmentID] {
			m.Errors = append(m.Errors, fmt.Sprintf(
				"student %s has more than one grade entry", e.StudentEnrollmentID))
			continue
		}
		seen[e.StudentEnrollmentID] = true
		if e.Graded() {
			graded++
		} else {
			m.Errors = append(m.Errors, fmt.Sprintf(
				"student %s has no grade recorded", e.StudentEnrollmentID))
		}
	}
	if len(seen) > 0 {
		pct := decimal.NewFromInt(int64(graded)).
			Div(decimal.NewFromInt(int64(len(seen)))).
			Mul(hundred)
		m.GradedPercent = int(pct.Round(0).IntPart())
	}

	if rules != nil {
		checked := make(map[string]bool, len(seen))
		for _, e := range a.Entries {
			if checked[e.StudentEnrollmentID] {
				continue
			}
			checked[e.StudentEnrollmentID] = true
			m.Errors = append(m.Errors, checkEntry(e, rules)...)
		}
	}

	return m
}

// checkEntry returns the rule-specific violations for a single entry.
func checkEntry(e GradeEntry, rules GradingRules) []string {
	var errs []string

	switch r := rules.(type) {
	case NumericRules:
		if e.Kind != GradeNumeric && e.Graded() {
			errs = append(errs, fmt.Sprintf(
				"student %s: qualitative grade recorded but level uses a numeric scale",
				e.StudentEnrollmentID))
			break
		}
		if e.Score != nil {
			if e.Score.LessThan(r.MinScore) || e.Score.GreaterThan(r.MaxScore) {
				errs = append(errs, fmt.Sprintf(
					"student %s: score %s outside allowed range [%s, %s]",
					e.StudentEnrollmentID, e.Score, r.MinScore, r.MaxScore))
			}
			if int(-e.Score.Exponent()) > r.DecimalPlaces {
				errs = append(errs, fmt.Sprintf(
					"student %s: score %s exceeds %d decimal place(s)",
					e.StudentEnrollmentID, e.Score, r.DecimalPlaces))
			}
		}
	case QualitativeRules:
		if e.Kind != GradeQualitative && e.Graded() {
			errs = append(errs, fmt.Sprintf(
				"student %s: numeric grade recorded but level uses achievement levels",
				e.StudentEnrollmentID))
			break
		}
		if e.Level != "" && !r.HasLevel(e.Level) {
			errs = append(errs, fmt.Sprintf(
				"student %s: unknown achievement level %q",
				e.StudentEnrollmentID, e.Level))
		}
	}

	if e.AttendancePercent != nil && e.AttendancePercent.LessThan(rules.MinAttendance()) {
		errs = append(errs, fmt.Sprintf(
			"student %s: attendance %s%% below required minimum %s%%",
			e.StudentEnrollmentID, e.AttendancePercent, rules.MinAttendance()))
	}

	return errs
}
