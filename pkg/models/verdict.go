package models

import "fmt"

// ScanTarget is a path resolved once at the start of a scan
type ScanTarget struct {
	Path string `json:"path"` // Absolute file path
	Root string `json:"root"` // Configured root that produced this path
}

// Outcome is the result kind of comparing one file against the baseline
type Outcome string

const (
	OutcomeMatch         Outcome = "match"
	OutcomeMismatch      Outcome = "mismatch"
	OutcomeMissing       Outcome = "missing"
	OutcomeUnreadable    Outcome = "unreadable"
	OutcomeNotInBaseline Outcome = "not_in_baseline"
)

// Outcomes lists every outcome in report order
var Outcomes = []Outcome{
	OutcomeMatch,
	OutcomeMismatch,
	OutcomeMissing,
	OutcomeUnreadable,
	OutcomeNotInBaseline,
}

// Valid reports whether o is one of the known outcomes
func (o Outcome) Valid() bool {
	for _, known := range Outcomes {
		if o == known {
			return true
		}
	}
	return false
}

// MarshalText implements encoding.TextMarshaler
func (o Outcome) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("unknown outcome %q", string(o))
	}
	return []byte(o), nil
}

// UnmarshalText rejects values outside the closed enumeration
func (o *Outcome) UnmarshalText(text []byte) error {
	v := Outcome(text)
	if !v.Valid() {
		return fmt.Errorf("unknown outcome %q", string(text))
	}
	*o = v
	return nil
}

// Verdict is the immutable per-file comparison result
type Verdict struct {
	Path           string  `json:"path" yaml:"path"`
	Outcome        Outcome `json:"outcome" yaml:"outcome"`
	Algorithm      string  `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	ObservedDigest Digest  `json:"observed_digest,omitempty" yaml:"observed_digest,omitempty"` // Absent for missing/unreadable
	ExpectedDigest Digest  `json:"expected_digest,omitempty" yaml:"expected_digest,omitempty"` // Absent for not_in_baseline
	Error          string  `json:"error,omitempty" yaml:"error,omitempty"`                     // Diagnostic for unreadable
}
