package core

import (
	"context"
	"time"

	"github.com/IvanShishkin/tamperhound/internal/baseline"
	"github.com/IvanShishkin/tamperhound/internal/filesystem"
	"github.com/IvanShishkin/tamperhound/pkg/models"
	"go.uber.org/zap"
)

// Engine runs a complete verification: load, resolve, scan
type Engine struct {
	store    baseline.Store
	resolver *filesystem.Resolver
	scanner  *Scanner
	roots    []string
	timeout  time.Duration
	version  string
	logger   *zap.Logger
}

// EngineConfig holds the inputs of a verification run
type EngineConfig struct {
	Store    baseline.Store
	Resolver *filesystem.Resolver
	Scanner  *Scanner
	Roots    []string      // empty means verify every baseline path
	Timeout  time.Duration // zero means no limit
	Version  string        // recorded in the report
}

// NewEngine creates an engine
func NewEngine(cfg EngineConfig, logger *zap.Logger) *Engine {
	return &Engine{
		store:    cfg.Store,
		resolver: cfg.Resolver,
		scanner:  cfg.Scanner,
		roots:    append([]string(nil), cfg.Roots...),
		timeout:  cfg.Timeout,
		version:  cfg.Version,
		logger:   logger,
	}
}

// Run loads the baseline and verifies every resolved target, followed by any
// baseline path under a root that resolution did not produce. A baseline that
// cannot be loaded is returned as a *baseline.BaselineLoadError and no file
// is read. A timeout, cancellation or resolution warning yields an incomplete
// report, not an error.
func (e *Engine) Run(ctx context.Context) (*models.ScanReport, error) {
	b, err := e.store.Load(ctx)
	if err != nil {
		e.logger.Error("Baseline unavailable",
			zap.String("source", e.store.Source()),
			zap.Error(err))
		return nil, err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var (
		targets     []models.ScanTarget
		warnings    []models.ResolutionWarning
		interrupted bool
	)
	if len(e.roots) == 0 {
		targets = filesystem.TargetsFromBaseline(b)
		e.logger.Debug("No roots configured, verifying baseline paths",
			zap.Int("targets", len(targets)))
	} else {
		res, err := e.resolver.Resolve(ctx, e.roots)
		if res != nil {
			targets = res.Targets
			warnings = res.Warnings
		}
		if err != nil {
			// Resolution was interrupted; scan what was found so the
			// report still reflects the cancellation.
			e.logger.Warn("Target resolution interrupted", zap.Error(err))
			interrupted = true
		}

		// Baseline files the walk could not see still need a verdict
		extra := filesystem.BaselineTargetsUnder(b, e.roots, targets)
		if len(extra) > 0 {
			e.logger.Debug("Adding baseline paths not found by resolution",
				zap.Int("targets", len(extra)))
			targets = append(targets, extra...)
		}
	}

	report, err := e.scanner.Scan(ctx, targets, b)
	if err != nil {
		return nil, err
	}

	report.BaselineSource = e.store.Source()
	report.Version = e.version
	report.Warnings = warnings
	if interrupted {
		// The target list itself is partial
		report.Canceled = true
	}
	report.Finalize()
	return report, nil
}
