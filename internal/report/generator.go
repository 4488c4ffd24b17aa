package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/IvanShishkin/tamperhound/internal/config"
	"github.com/IvanShishkin/tamperhound/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// StdoutFile writes a file report to the generator's output instead of disk
const StdoutFile = "-"

// FormatDuration formats duration to a human-readable string with max 2 decimal places
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		// Milliseconds
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
	} else if d < time.Minute {
		// Seconds
		return fmt.Sprintf("%.2fs", d.Seconds())
	} else if d < time.Hour {
		// Minutes and seconds
		mins := int(d.Minutes())
		secs := d.Seconds() - float64(mins*60)
		return fmt.Sprintf("%dm%.2fs", mins, secs)
	}
	// Hours, minutes and seconds
	hours := int(d.Hours())
	mins := int(d.Minutes()) - hours*60
	secs := d.Seconds() - float64(hours*3600) - float64(mins*60)
	return fmt.Sprintf("%dh%dm%.2fs", hours, mins, secs)
}

// Generator generates scan reports in various formats
type Generator struct {
	config *config.Config
	logger *zap.Logger
	out    io.Writer
	now    func() time.Time
}

// NewGenerator creates a new report generator
func NewGenerator(cfg *config.Config, logger *zap.Logger) (*Generator, error) {
	if cfg.ReportFormat != "" && render(cfg.ReportFormat) == nil {
		return nil, fmt.Errorf("unknown report format: %s", cfg.ReportFormat)
	}
	return &Generator{
		config: cfg,
		logger: logger,
		out:    os.Stdout,
		now:    time.Now,
	}, nil
}

// SetOutput redirects console output and StdoutFile reports
func (g *Generator) SetOutput(w io.Writer) {
	g.out = w
}

// renderer serializes a report to bytes
type renderer func(*models.ScanReport) ([]byte, error)

func render(format string) renderer {
	switch format {
	case "json":
		return renderJSON
	case "yaml", "yml":
		return renderYAML
	case "txt", "text":
		return renderText
	case "md", "markdown":
		return renderMarkdown
	default:
		return nil
	}
}

func extension(format string) string {
	switch format {
	case "yml":
		return "yaml"
	case "text":
		return "txt"
	case "markdown":
		return "md"
	default:
		return format
	}
}

// Generate writes the report. With no format configured it prints to the
// console and returns an empty path; otherwise it returns the absolute path
// of the written file.
func (g *Generator) Generate(report *models.ScanReport) (string, error) {
	format := g.config.ReportFormat
	outputFile := g.config.OutputFile

	// If no format specified, print to console
	if format == "" {
		return "", printConsole(g.out, report, g.useColor())
	}

	fn := render(format)
	if fn == nil {
		return "", fmt.Errorf("unknown report format: %s", format)
	}

	// Generate default filename if not specified
	if outputFile == "" {
		timestamp := g.now().Format("20060102-150405")
		outputFile = fmt.Sprintf("TAMPERHOUND-REPORT-%s.%s", timestamp, extension(format))
	}

	data, err := fn(report)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s report: %w", format, err)
	}

	if outputFile == StdoutFile {
		_, err := g.out.Write(data)
		return "", err
	}

	g.logger.Info("Generating report",
		zap.String("format", format),
		zap.String("output", outputFile))

	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return "", fmt.Errorf("failed to generate %s report: %w", format, err)
	}

	// Get absolute path
	absPath, _ := filepath.Abs(outputFile)
	return absPath, nil
}

// useColor reports whether console output should carry ANSI colors
func (g *Generator) useColor() bool {
	if g.config.NoColor {
		return false
	}
	f, ok := g.out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
