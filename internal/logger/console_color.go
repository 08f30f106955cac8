package logger

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/harrison/covrun/internal/models"
)

// colorScheme defines consistent colors for report outcomes.
// Green: measured files and PASS
// Red: failures and FAIL
// Yellow: exemptions
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	header  *color.Color
}

// newColorScheme creates the standard scheme. A disabled scheme prints
// plain text regardless of the terminal.
func newColorScheme(enabled bool) *colorScheme {
	s := &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		header:  color.New(color.Bold),
	}
	if !enabled {
		for _, c := range []*color.Color{s.success, s.fail, s.warn, s.header} {
			c.DisableColor()
		}
	}
	return s
}

func (s *colorScheme) verdict(check models.CoverageCheck) string {
	if check == models.CheckPass {
		return s.success.Add(color.Bold).Sprint(check)
	}
	return s.fail.Add(color.Bold).Sprint(check)
}

// describeOutcome renders a one-line description of a report.
// Examples: "measured 85% (17/20 lines, 2 targets)", "FAILED: <message>",
// "exempted (no test file required)"
func describeOutcome(report models.CoverageReport, colored bool) string {
	scheme := newColorScheme(colored)

	switch report.Kind() {
	case models.KindDetails:
		d, _ := report.Details()
		targets := "target"
		if len(d.TestTargets) != 1 {
			targets = "targets"
		}
		return scheme.success.Sprintf("measured %d%% (%d/%d lines, %d %s)",
			d.CoveragePercent(), d.LinesHit, d.LinesFound, len(d.TestTargets), targets)
	case models.KindFailure:
		f, _ := report.Failure()
		if f.TestTarget != "" {
			return scheme.fail.Sprintf("FAILED [%s]: %s", f.TestTarget, f.Message)
		}
		return scheme.fail.Sprintf("FAILED: %s", f.Message)
	case models.KindExemption:
		e, _ := report.Exemption()
		return scheme.warn.Sprintf("exempted (%s)", e.Reason)
	default:
		return fmt.Sprintf("invalid report (%s)", report.Kind())
	}
}
