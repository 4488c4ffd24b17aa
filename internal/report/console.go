package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/IvanShishkin/tamperhound/pkg/models"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorOrange = "\033[38;5;208m"
	colorGray   = "\033[38;5;245m"
)

// palette holds the escape codes for one console rendering; all empty when
// colors are disabled
type palette struct {
	reset, bold, dim, red, green, yellow, blue, orange, gray string
}

func newPalette(color bool) palette {
	if !color {
		return palette{}
	}
	return palette{
		reset:  colorReset,
		bold:   colorBold,
		dim:    colorDim,
		red:    colorRed,
		green:  colorGreen,
		yellow: colorYellow,
		blue:   colorBlue,
		orange: colorOrange,
		gray:   colorGray,
	}
}

// statusColor returns the color for the overall status
func (p palette) statusColor(s models.Status) string {
	switch s.Severity() {
	case models.SeverityCritical:
		return p.red + p.bold
	case models.SeverityHigh:
		return p.orange
	default:
		return p.green
	}
}

// outcomeColor returns the color for a single verdict
func (p palette) outcomeColor(o models.Outcome) string {
	switch o {
	case models.OutcomeMismatch:
		return p.red + p.bold
	case models.OutcomeMissing:
		return p.orange
	case models.OutcomeUnreadable:
		return p.yellow
	case models.OutcomeNotInBaseline:
		return p.blue
	default:
		return p.green
	}
}

// printConsole prints a summary and every non-matching verdict
func printConsole(w io.Writer, report *models.ScanReport, color bool) error {
	p := newPalette(color)
	var sb strings.Builder
	rule := p.gray + strings.Repeat("─", 63) + p.reset + "\n"

	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%s%sSCAN COMPLETE%s\n\n", p.bold, p.orange, p.reset)

	// Stats
	fmt.Fprintf(&sb, "  %sBaseline:%s  %s\n", p.gray, p.reset, report.BaselineSource)
	fmt.Fprintf(&sb, "  %sTargets:%s   %d\n", p.gray, p.reset, totalTargets(report))
	fmt.Fprintf(&sb, "  %sVerified:%s  %d\n", p.gray, p.reset, len(report.Verdicts))
	fmt.Fprintf(&sb, "  %sDuration:%s  %s\n", p.gray, p.reset, FormatDuration(report.Duration))
	sb.WriteString("\n")

	statusLine := strings.ToUpper(string(report.Status))
	if report.Canceled {
		statusLine += " (canceled)"
	}
	fmt.Fprintf(&sb, "  %s%s%s%s\n\n", p.bold, p.statusColor(report.Status), statusLine, p.reset)

	for _, o := range models.Outcomes {
		if n := report.Count(o); n > 0 {
			fmt.Fprintf(&sb, "    %s%-16s%s %d\n", p.outcomeColor(o), o, p.reset, n)
		}
	}

	problems := 0
	for _, v := range report.Verdicts {
		if v.Outcome != models.OutcomeMatch {
			problems++
		}
	}

	if problems > 0 || len(report.Warnings) > 0 {
		sb.WriteString("\n")
		sb.WriteString(rule)
	}

	i := 0
	for _, v := range report.Verdicts {
		if v.Outcome == models.OutcomeMatch {
			continue
		}
		i++
		fmt.Fprintf(&sb, "\n  %s[%d]%s %s%s%s\n", p.bold, i, p.reset, p.bold, v.Path, p.reset)
		fmt.Fprintf(&sb, "      %sOutcome:%s   %s%s%s\n", p.gray, p.reset, p.outcomeColor(v.Outcome), strings.ToUpper(string(v.Outcome)), p.reset)
		if v.ExpectedDigest != nil {
			fmt.Fprintf(&sb, "      %sExpected:%s  %s:%s\n", p.gray, p.reset, v.Algorithm, v.ExpectedDigest)
		}
		if v.ObservedDigest != nil {
			fmt.Fprintf(&sb, "      %sObserved:%s  %s%s:%s%s\n", p.gray, p.reset, p.red, v.Algorithm, v.ObservedDigest, p.reset)
		}
		if v.Error != "" {
			fmt.Fprintf(&sb, "      %sError:%s     %s%s%s\n", p.gray, p.reset, p.dim, v.Error, p.reset)
		}
	}

	for _, warn := range report.Warnings {
		fmt.Fprintf(&sb, "\n  %sWARNING%s %s: %s%s%s\n", p.yellow, p.reset, warn.Root, p.dim, warn.Message, p.reset)
	}

	if problems > 0 || len(report.Warnings) > 0 {
		sb.WriteString("\n")
		sb.WriteString(rule)
	}
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func totalTargets(report *models.ScanReport) int {
	if report.Stats == nil {
		return len(report.Verdicts)
	}
	return report.Stats.TotalTargets
}
