package report

import (
	"fmt"
	"strings"

	"github.com/IvanShishkin/tamperhound/pkg/models"
)

// renderText generates a text report
func renderText(report *models.ScanReport) ([]byte, error) {
	var sb strings.Builder

	// Header
	sb.WriteString(strings.Repeat("=", 79) + "\n")
	if report.Version != "" {
		sb.WriteString(fmt.Sprintf("  TAMPERHOUND INTEGRITY REPORT v%s\n", report.Version))
	} else {
		sb.WriteString("  TAMPERHOUND INTEGRITY REPORT\n")
	}
	sb.WriteString(strings.Repeat("=", 79) + "\n\n")

	// Summary
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 79) + "\n")
	sb.WriteString(fmt.Sprintf("Scan ID:          %s\n", report.ID))
	sb.WriteString(fmt.Sprintf("Baseline:         %s\n", report.BaselineSource))
	sb.WriteString(fmt.Sprintf("Start Time:       %s\n", report.StartTime.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("End Time:         %s\n", report.EndTime.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("Duration:         %s\n", FormatDuration(report.Duration)))
	sb.WriteString(fmt.Sprintf("Total Targets:    %d\n", totalTargets(report)))
	sb.WriteString(fmt.Sprintf("Verified:         %d\n", len(report.Verdicts)))
	sb.WriteString(fmt.Sprintf("STATUS:           %s\n", strings.ToUpper(string(report.Status))))
	if report.Canceled {
		sb.WriteString("                  scan was canceled before every target was verified\n")
	}
	sb.WriteString("\n")

	// Counts by outcome
	sb.WriteString("VERDICTS BY OUTCOME\n")
	sb.WriteString(strings.Repeat("-", 79) + "\n")
	for _, o := range models.Outcomes {
		sb.WriteString(fmt.Sprintf("  %-16s: %d\n", o, report.Count(o)))
	}
	sb.WriteString("\n")

	// Detailed verdicts
	sb.WriteString("VERDICTS\n")
	sb.WriteString(strings.Repeat("=", 79) + "\n\n")
	for i, v := range report.Verdicts {
		sb.WriteString(fmt.Sprintf("[%d] %s  %s\n", i+1, strings.ToUpper(string(v.Outcome)), v.Path))
		if v.Outcome == models.OutcomeMatch {
			continue
		}
		if v.ExpectedDigest != nil {
			sb.WriteString(fmt.Sprintf("    Expected:  %s:%s\n", v.Algorithm, v.ExpectedDigest))
		}
		if v.ObservedDigest != nil {
			sb.WriteString(fmt.Sprintf("    Observed:  %s:%s\n", v.Algorithm, v.ObservedDigest))
		}
		if v.Error != "" {
			sb.WriteString(fmt.Sprintf("    Error:     %s\n", v.Error))
		}
	}
	sb.WriteString("\n")

	if len(report.Warnings) > 0 {
		sb.WriteString("RESOLUTION WARNINGS\n")
		sb.WriteString(strings.Repeat("-", 79) + "\n")
		for _, w := range report.Warnings {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", w.Root, w.Message))
		}
		sb.WriteString("\n")
	}

	// Performance stats
	if report.Stats != nil {
		sb.WriteString("PERFORMANCE\n")
		sb.WriteString(strings.Repeat("-", 79) + "\n")
		sb.WriteString(fmt.Sprintf("Files/Second:     %.2f\n", report.Stats.FilesPerSecond))
		sb.WriteString(fmt.Sprintf("Workers Used:     %d\n", report.Stats.WorkersUsed))
		sb.WriteString("\n")
	}

	// Footer
	sb.WriteString(strings.Repeat("=", 79) + "\n")
	sb.WriteString("End of Report\n")
	sb.WriteString(strings.Repeat("=", 79) + "\n")

	return []byte(sb.String()), nil
}
