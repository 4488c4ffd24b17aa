package report

import (
	"fmt"
	"strings"

	"github.com/IvanShishkin/tamperhound/pkg/models"
)

// renderMarkdown generates a Markdown report
func renderMarkdown(report *models.ScanReport) ([]byte, error) {
	var sb strings.Builder

	// Header
	if report.Version != "" {
		sb.WriteString(fmt.Sprintf("# Tamperhound Integrity Report v%s\n\n", report.Version))
	} else {
		sb.WriteString("# Tamperhound Integrity Report\n\n")
	}

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Scan ID | `%s` |\n", report.ID))
	sb.WriteString(fmt.Sprintf("| Baseline | `%s` |\n", report.BaselineSource))
	sb.WriteString(fmt.Sprintf("| Start Time | %s |\n", report.StartTime.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("| End Time | %s |\n", report.EndTime.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("| Duration | %s |\n", FormatDuration(report.Duration)))
	sb.WriteString(fmt.Sprintf("| Total Targets | %d |\n", totalTargets(report)))
	sb.WriteString(fmt.Sprintf("| Verified | %d |\n", len(report.Verdicts)))
	sb.WriteString(fmt.Sprintf("| **Status** | %s **%s** |\n", getStatusEmoji(report.Status), strings.ToUpper(string(report.Status))))
	sb.WriteString("\n")

	if report.Canceled {
		sb.WriteString("> ⚠️ **Scan canceled** before every target was verified\n\n")
	}

	if report.Status == models.StatusClean {
		sb.WriteString("> ✅ **All files match the baseline**\n\n")
	}

	// Counts by outcome
	sb.WriteString("## Verdicts by Outcome\n\n")
	sb.WriteString("| Outcome | Count |\n")
	sb.WriteString("|---------|-------|\n")
	for _, o := range models.Outcomes {
		if n := report.Count(o); n > 0 {
			sb.WriteString(fmt.Sprintf("| %s %s | %d |\n", getOutcomeEmoji(o), o, n))
		}
	}
	sb.WriteString("\n")

	// Problems only; matches are summarized above
	var problems []models.Verdict
	for _, v := range report.Verdicts {
		if v.Outcome != models.OutcomeMatch {
			problems = append(problems, v)
		}
	}

	if len(problems) > 0 {
		sb.WriteString("## Detailed Verdicts\n\n")
		for i, v := range problems {
			sb.WriteString(fmt.Sprintf("### %d. %s `%s`\n\n", i+1, getOutcomeEmoji(v.Outcome), v.Path))

			sb.WriteString("| Field | Value |\n")
			sb.WriteString("|-------|-------|\n")
			sb.WriteString(fmt.Sprintf("| Outcome | %s |\n", strings.ToUpper(string(v.Outcome))))
			if v.Algorithm != "" {
				sb.WriteString(fmt.Sprintf("| Algorithm | %s |\n", v.Algorithm))
			}
			if v.ExpectedDigest != nil {
				sb.WriteString(fmt.Sprintf("| Expected | `%s` |\n", v.ExpectedDigest))
			}
			if v.ObservedDigest != nil {
				sb.WriteString(fmt.Sprintf("| Observed | `%s` |\n", v.ObservedDigest))
			}
			sb.WriteString("\n")

			if v.Error != "" {
				sb.WriteString(fmt.Sprintf("**Error:** %s\n\n", v.Error))
			}

			sb.WriteString("---\n\n")
		}
	}

	if len(report.Warnings) > 0 {
		sb.WriteString("## Resolution Warnings\n\n")
		for _, w := range report.Warnings {
			sb.WriteString(fmt.Sprintf("- `%s`: %s\n", w.Root, w.Message))
		}
		sb.WriteString("\n")
	}

	// Performance stats
	if report.Stats != nil {
		sb.WriteString("## Performance\n\n")
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Files/Second | %.2f |\n", report.Stats.FilesPerSecond))
		sb.WriteString(fmt.Sprintf("| Workers Used | %d |\n", report.Stats.WorkersUsed))
		sb.WriteString("\n")
	}

	// Footer
	sb.WriteString("---\n\n")
	sb.WriteString("*Generated by Tamperhound*\n")

	return []byte(sb.String()), nil
}

// getStatusEmoji returns emoji for the overall status
func getStatusEmoji(status models.Status) string {
	switch status.Severity() {
	case models.SeverityCritical:
		return "🔴"
	case models.SeverityHigh:
		return "🟠"
	default:
		return "🟢"
	}
}

// getOutcomeEmoji returns emoji for a verdict outcome
func getOutcomeEmoji(o models.Outcome) string {
	switch o {
	case models.OutcomeMatch:
		return "🟢"
	case models.OutcomeMismatch:
		return "🔴"
	case models.OutcomeMissing:
		return "🟠"
	case models.OutcomeUnreadable:
		return "🟡"
	case models.OutcomeNotInBaseline:
		return "🔵"
	default:
		return "⚪"
	}
}
