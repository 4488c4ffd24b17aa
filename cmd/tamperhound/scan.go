package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IvanShishkin/tamperhound/internal/baseline"
	"github.com/IvanShishkin/tamperhound/internal/config"
	"github.com/IvanShishkin/tamperhound/internal/core"
	"github.com/IvanShishkin/tamperhound/internal/filesystem"
	"github.com/IvanShishkin/tamperhound/internal/report"
	"github.com/IvanShishkin/tamperhound/pkg/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// scanFlags holds command-line overrides for the scan command
type scanFlags struct {
	baselinePath   string
	identityFile   string
	workers        int
	timeout        time.Duration
	algorithm      string
	followSymlinks bool
	noWalk         bool
	exclude        []string
	reportFormat   string
	outputFile     string
	noColor        bool
}

// apply overrides config values with the flags that were set
func (f *scanFlags) apply(cmd *cobra.Command, cfg *config.Config, roots []string) {
	if len(roots) > 0 {
		cfg.Roots = roots
	}
	if f.baselinePath != "" {
		cfg.Baseline.Path = f.baselinePath
	}
	if f.identityFile != "" {
		cfg.Baseline.IdentityFile = f.identityFile
	}
	if f.workers > 0 {
		cfg.Workers = f.workers
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if f.algorithm != "" {
		cfg.HashAlgorithm = f.algorithm
	}
	if cmd.Flags().Changed("follow-symlinks") {
		cfg.FollowSymlinks = f.followSymlinks
	}
	if f.noWalk {
		cfg.WalkDirectories = false
	}
	if len(f.exclude) > 0 {
		cfg.Exclude = f.exclude
	}
	if f.reportFormat != "" {
		cfg.ReportFormat = f.reportFormat
	}
	if f.outputFile != "" {
		cfg.OutputFile = f.outputFile
	}
	if f.noColor {
		cfg.NoColor = true
	}
}

// scanCmd creates the scan command
func (a *app) scanCmd() *cobra.Command {
	var flags scanFlags

	cmd := &cobra.Command{
		Use:   "scan [path...]",
		Short: "Verify files against the baseline",
		Long: `Re-hash every monitored file and compare it with the trusted baseline.
Paths given as arguments replace the configured roots. With no roots at all,
every path recorded in the baseline is verified.

Exit status: 0 clean, 1 tampered, 2 incomplete, 3 error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			flags.apply(cmd, cfg, args)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			scanReport, err := a.runScan(ctx, cfg, logger)
			if err != nil {
				return err
			}

			gen, err := report.NewGenerator(cfg, logger)
			if err != nil {
				return err
			}
			gen.SetOutput(a.stdout)
			path, err := gen.Generate(scanReport)
			if err != nil {
				return err
			}
			if path != "" {
				fmt.Fprintf(a.stderr, "  Report:    %s\n", path)
			}

			if code := exitCode(scanReport.Status); code != exitClean {
				return &exitCodeError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.baselinePath, "baseline", "b", "", "Baseline file (.yaml, .json, .jsonc, .cbor; optionally .zst and .age) or directory of them")
	cmd.Flags().StringVar(&flags.identityFile, "identity", "", "age identity file for encrypted baselines")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Number of worker goroutines (default: CPU cores * 2)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Abort the scan after this long and report it incomplete")
	cmd.Flags().StringVar(&flags.algorithm, "algorithm", "", "Require every baseline entry to use this hash algorithm")
	cmd.Flags().BoolVar(&flags.followSymlinks, "follow-symlinks", false, "Follow symbolic links while resolving roots")
	cmd.Flags().BoolVar(&flags.noWalk, "no-walk", false, "Do not expand directory roots")
	cmd.Flags().StringSliceVar(&flags.exclude, "exclude", nil, "Directories to exclude (comma-separated)")
	cmd.Flags().StringVarP(&flags.reportFormat, "report", "r", "", "Report format: json, yaml, text, md (default: console output)")
	cmd.Flags().StringVarP(&flags.outputFile, "output", "o", "", "Output file path, - for stdout")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "Disable colored console output")

	return cmd
}

// runScan wires the engine from configuration and runs it
func (a *app) runScan(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*models.ScanReport, error) {
	store := baseline.NewStore(cfg.Baseline.Path, baseline.FileStoreOptions{
		IdentityFile: cfg.Baseline.IdentityFile,
	}, logger)

	resolver := filesystem.NewResolver(filesystem.Options{
		FollowSymlinks:  cfg.FollowSymlinks,
		WalkDirectories: cfg.WalkDirectories,
		Exclude:         cfg.Exclude,
	}, logger)

	var opts []core.ComparatorOption
	if cfg.HashAlgorithm != "" {
		opts = append(opts, core.WithAlgorithm(cfg.HashAlgorithm))
	}
	if cfg.FollowSymlinks {
		opts = append(opts, core.WithFollowSymlinks())
	}
	scanner := core.NewScanner(cfg.Workers, core.NewComparator(logger, opts...), logger)
	if f, ok := a.stderr.(*os.File); ok && term.IsTerminal(int(f.Fd())) && !a.verbose {
		scanner.SetProgressCallback(progressPrinter(a.stderr))
	}

	engine := core.NewEngine(core.EngineConfig{
		Store:    store,
		Resolver: resolver,
		Scanner:  scanner,
		Roots:    cfg.Roots,
		Timeout:  cfg.Timeout,
		Version:  version,
	}, logger)

	return engine.Run(ctx)
}

// progressPrinter draws a single-line progress bar
func progressPrinter(w io.Writer) core.ProgressCallback {
	return func(phase string, current, total int, message string) {
		switch phase {
		case "scanning":
			if total == 0 {
				return
			}
			pct := float64(current) / float64(total) * 100
			barWidth := 30
			filled := barWidth * current / total
			bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
			fmt.Fprintf(w, "\r  %sVerifying:%s [%s%s%s] %s%.1f%%%s (%d/%d)",
				colorGray, colorReset, colorOrange, bar, colorReset, colorOrange, pct, colorReset, current, total)
		case "complete":
			fmt.Fprint(w, "\r\033[K")
		}
	}
}

// exitCode maps the overall status to the process exit code
func exitCode(status models.Status) int {
	switch status {
	case models.StatusClean:
		return exitClean
	case models.StatusTampered:
		return exitTampered
	default:
		return exitIncomplete
	}
}
