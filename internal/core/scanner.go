package core

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/IvanShishkin/tamperhound/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProgressCallback is called to report scan progress
type ProgressCallback func(phase string, current, total int, message string)

// ErrNoBaseline is returned when Scan is called without a baseline
var ErrNoBaseline = errors.New("scan requires a baseline")

// Scanner drives comparisons across all targets with bounded concurrency
type Scanner struct {
	workers          int
	comparator       *Comparator
	logger           *zap.Logger
	progressCallback ProgressCallback
	now              func() time.Time
}

// NewScanner creates a new scanner. workers <= 0 selects the default.
func NewScanner(workers int, comparator *Comparator, logger *zap.Logger) *Scanner {
	if workers <= 0 {
		workers = defaultWorkers()
	}
	return &Scanner{
		workers:    workers,
		comparator: comparator,
		logger:     logger,
		now:        time.Now,
	}
}

func defaultWorkers() int {
	return runtime.NumCPU() * 2
}

// SetProgressCallback sets the progress callback function
func (s *Scanner) SetProgressCallback(cb ProgressCallback) {
	s.progressCallback = cb
}

// reportProgress calls the progress callback if set
func (s *Scanner) reportProgress(phase string, current, total int, message string) {
	if s.progressCallback != nil {
		s.progressCallback(phase, current, total, message)
	}
}

// job is one target tagged with its position in the target list
type job struct {
	index  int
	target models.ScanTarget
}

// jobResult is a finished verdict tagged with its target position
type jobResult struct {
	index   int
	verdict models.Verdict
}

// Scan compares every target against the baseline. Verdicts are returned in
// target order regardless of completion order. If ctx is canceled, dispatch
// stops, interrupted comparisons are discarded, and the report holds only the
// verdicts that completed.
func (s *Scanner) Scan(ctx context.Context, targets []models.ScanTarget, baseline *models.Baseline) (*models.ScanReport, error) {
	if baseline == nil {
		return nil, ErrNoBaseline
	}

	workers := s.workers
	if len(targets) < workers {
		workers = max(len(targets), 1)
	}

	report := &models.ScanReport{
		ID:        uuid.NewString(),
		StartTime: s.now(),
		Stats: &models.ScanStatistics{
			TotalTargets: len(targets),
			WorkersUsed:  workers,
		},
	}

	s.logger.Info("Starting scan",
		zap.String("scan_id", report.ID),
		zap.Int("targets", len(targets)),
		zap.Int("baseline_entries", baseline.Len()),
		zap.Int("workers", workers))

	verdicts, canceled := s.run(ctx, targets, baseline, workers)

	report.Verdicts = verdicts
	report.Canceled = canceled
	report.EndTime = s.now()
	report.Duration = report.EndTime.Sub(report.StartTime)
	report.Finalize()

	if canceled {
		s.logger.Warn("Scan canceled",
			zap.String("scan_id", report.ID),
			zap.Int("completed", len(verdicts)),
			zap.Int("targets", len(targets)),
			zap.Error(context.Cause(ctx)))
	}

	s.logger.Info("Scan completed",
		zap.String("scan_id", report.ID),
		zap.String("status", string(report.Status)),
		zap.Duration("duration", report.Duration),
		zap.Int("mismatched", report.Stats.Mismatched),
		zap.Int("missing", report.Stats.Missing),
		zap.Int("unreadable", report.Stats.Unreadable))

	return report, nil
}

// run executes the worker pool and returns completed verdicts in target order
func (s *Scanner) run(ctx context.Context, targets []models.ScanTarget, baseline *models.Baseline, workers int) ([]models.Verdict, bool) {
	// Unbuffered so no target is handed out after cancellation is observed
	jobs := make(chan job)
	results := make(chan jobResult, workers*2)

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go s.worker(ctx, &wg, baseline, jobs, results)
	}

	// Start results collector
	slots := make([]models.Verdict, len(targets))
	done := make([]bool, len(targets))
	completed := 0

	var collectWg sync.WaitGroup
	collectWg.Add(1)
	go func() {
		defer collectWg.Done()
		lastReport := time.Now()
		for r := range results {
			slots[r.index] = r.verdict
			done[r.index] = true
			completed++

			// Report progress every 100ms or every 100 files
			if time.Since(lastReport) > 100*time.Millisecond || completed%100 == 0 || completed == len(targets) {
				s.reportProgress("scanning", completed, len(targets), r.verdict.Path)
				lastReport = time.Now()
			}
		}
	}()

	// Dispatch targets to workers
dispatch:
	for i, target := range targets {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- job{index: i, target: target}:
		}
	}

	// Close channels and wait
	close(jobs)
	wg.Wait()
	close(results)
	collectWg.Wait()

	verdicts := make([]models.Verdict, 0, completed)
	for i := range slots {
		if done[i] {
			verdicts = append(verdicts, slots[i])
		}
	}

	canceled := ctx.Err() != nil && len(verdicts) < len(targets)
	s.reportProgress("complete", len(verdicts), len(targets), "Scan complete")
	return verdicts, canceled
}

// worker processes targets from the channel
func (s *Scanner) worker(ctx context.Context, wg *sync.WaitGroup, baseline *models.Baseline, jobs <-chan job, results chan<- jobResult) {
	defer wg.Done()

	for j := range jobs {
		verdict, err := s.compare(ctx, j.target, baseline)
		if err != nil {
			// Interrupted by cancellation; not a completed verdict
			continue
		}
		results <- jobResult{index: j.index, verdict: verdict}
	}
}

// compare runs one comparison, converting a panic into an unreadable verdict
func (s *Scanner) compare(ctx context.Context, target models.ScanTarget, baseline *models.Baseline) (verdict models.Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Comparator panic",
				zap.String("path", target.Path),
				zap.Any("panic", r))
			verdict = unreadable(models.Verdict{Path: target.Path}, fmt.Errorf("internal error: %v", r))
			if e, ok := baseline.Lookup(target.Path); ok {
				verdict.Algorithm = e.Algorithm
				verdict.ExpectedDigest = append(models.Digest(nil), e.Digest...)
			}
			err = nil
		}
	}()
	return s.comparator.evaluate(ctx, target, baseline)
}
