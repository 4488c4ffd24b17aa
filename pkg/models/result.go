package models

import (
	"fmt"
	"time"
)

// Status is the overall outcome of a scan
type Status string

const (
	StatusClean      Status = "clean"
	StatusTampered   Status = "tampered"
	StatusIncomplete Status = "incomplete"
)

// UnmarshalText rejects unknown statuses
func (s *Status) UnmarshalText(text []byte) error {
	switch v := Status(text); v {
	case StatusClean, StatusTampered, StatusIncomplete:
		*s = v
		return nil
	default:
		return fmt.Errorf("unknown status %q", string(text))
	}
}

// Severity represents the severity level used when reporting a status
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityInfo     Severity = "info"
)

// Severity maps a status to its reporting severity. Tampered always wins.
func (s Status) Severity() Severity {
	switch s {
	case StatusTampered:
		return SeverityCritical
	case StatusIncomplete:
		return SeverityHigh
	default:
		return SeverityInfo
	}
}

// GetSeverityPriority returns numeric priority for severity (higher = more severe)
func GetSeverityPriority(s Severity) int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// ResolutionWarning records a configured root that could not be expanded
type ResolutionWarning struct {
	Root    string `json:"root" yaml:"root"`
	Message string `json:"message" yaml:"message"`
}

// ScanReport contains the complete scan results
type ScanReport struct {
	// Summary
	ID             string        `json:"id" yaml:"id"`
	StartTime      time.Time     `json:"start_time" yaml:"start_time"`
	EndTime        time.Time     `json:"end_time" yaml:"end_time"`
	Duration       time.Duration `json:"duration" yaml:"duration"`
	BaselineSource string        `json:"baseline_source,omitempty" yaml:"baseline_source,omitempty"`
	Version        string        `json:"version,omitempty" yaml:"version,omitempty"`

	// Outcome
	Status   Status              `json:"status" yaml:"status"`
	Canceled bool                `json:"canceled" yaml:"canceled"`
	Verdicts []Verdict           `json:"verdicts" yaml:"verdicts"` // Target resolution order
	Warnings []ResolutionWarning `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Statistics
	Stats *ScanStatistics `json:"statistics" yaml:"statistics"`
}

// ScanStatistics contains per-outcome counts and performance data
type ScanStatistics struct {
	TotalTargets  int `json:"total_targets" yaml:"total_targets"`
	Completed     int `json:"completed" yaml:"completed"`
	Matched       int `json:"matched" yaml:"matched"`
	Mismatched    int `json:"mismatched" yaml:"mismatched"`
	Missing       int `json:"missing" yaml:"missing"`
	Unreadable    int `json:"unreadable" yaml:"unreadable"`
	NotInBaseline int `json:"not_in_baseline" yaml:"not_in_baseline"`

	// Performance
	FilesPerSecond float64 `json:"files_per_second" yaml:"files_per_second"`
	WorkersUsed    int     `json:"workers_used" yaml:"workers_used"`
}

// DeriveStatus computes the overall status from verdicts. An incomplete scan
// is never clean, but a mismatch still makes it tampered.
func DeriveStatus(verdicts []Verdict, incomplete bool) Status {
	status := StatusClean
	for _, v := range verdicts {
		switch v.Outcome {
		case OutcomeMatch:
		case OutcomeMismatch:
			return StatusTampered
		default:
			status = StatusIncomplete
		}
	}
	if incomplete {
		return StatusIncomplete
	}
	return status
}

// Finalize recomputes status and outcome counts from the verdicts. A canceled
// scan or any resolution warning leaves the status incomplete at best.
func (r *ScanReport) Finalize() {
	if r.Stats == nil {
		r.Stats = &ScanStatistics{}
	}
	r.Stats.Completed = len(r.Verdicts)
	r.Stats.Matched = 0
	r.Stats.Mismatched = 0
	r.Stats.Missing = 0
	r.Stats.Unreadable = 0
	r.Stats.NotInBaseline = 0

	for _, v := range r.Verdicts {
		switch v.Outcome {
		case OutcomeMatch:
			r.Stats.Matched++
		case OutcomeMismatch:
			r.Stats.Mismatched++
		case OutcomeMissing:
			r.Stats.Missing++
		case OutcomeUnreadable:
			r.Stats.Unreadable++
		case OutcomeNotInBaseline:
			r.Stats.NotInBaseline++
		}
	}

	r.Status = DeriveStatus(r.Verdicts, r.Canceled || len(r.Warnings) > 0)

	if d := r.Duration.Seconds(); d > 0 {
		r.Stats.FilesPerSecond = float64(r.Stats.Completed) / d
	}
}

// Count returns the number of verdicts with the given outcome
func (r *ScanReport) Count(o Outcome) int {
	n := 0
	for _, v := range r.Verdicts {
		if v.Outcome == o {
			n++
		}
	}
	return n
}
