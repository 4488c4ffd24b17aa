package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"
)

var (
	// ErrDuplicatePath is returned when a baseline lists the same path twice
	ErrDuplicatePath = errors.New("duplicate baseline path")
	// ErrInvalidPath is returned for paths that are not absolute and clean
	ErrInvalidPath = errors.New("baseline path must be absolute and clean")
	// ErrInvalidEntry is returned for entries with no digest or algorithm
	ErrInvalidEntry = errors.New("invalid baseline entry")
)

// BaselineEntry is the trusted record for one monitored path
type BaselineEntry struct {
	Path       string     `json:"path" yaml:"path"`                                   // Canonical absolute path
	Digest     Digest     `json:"digest" yaml:"digest"`                               // Expected content digest
	Algorithm  string     `json:"algorithm" yaml:"algorithm"`                         // Hash algorithm identifier
	RecordedAt *time.Time `json:"recorded_at,omitempty" yaml:"recorded_at,omitempty"` // When the digest was recorded
	Size       int64      `json:"size,omitempty" yaml:"size,omitempty"`               // File size at recording time
}

// Baseline is an immutable snapshot of expected digests keyed by path.
// It is safe for concurrent reads.
type Baseline struct {
	entries map[string]BaselineEntry
	paths   []string
}

// NewBaseline builds a baseline snapshot from entries. Entries are copied.
func NewBaseline(entries []BaselineEntry) (*Baseline, error) {
	b := &Baseline{
		entries: make(map[string]BaselineEntry, len(entries)),
		paths:   make([]string, 0, len(entries)),
	}

	for _, e := range entries {
		if !filepath.IsAbs(e.Path) || filepath.Clean(e.Path) != e.Path {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, e.Path)
		}
		if len(e.Digest) == 0 || e.Algorithm == "" {
			return nil, fmt.Errorf("%w: %s has no digest or algorithm", ErrInvalidEntry, e.Path)
		}
		if _, exists := b.entries[e.Path]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePath, e.Path)
		}

		entry := e
		entry.Digest = append(Digest(nil), e.Digest...)
		if e.RecordedAt != nil {
			recorded := *e.RecordedAt
			entry.RecordedAt = &recorded
		}
		b.entries[e.Path] = entry
		b.paths = append(b.paths, e.Path)
	}

	sort.Strings(b.paths)
	return b, nil
}

// Lookup returns the entry for path. The returned digest must not be modified.
func (b *Baseline) Lookup(path string) (BaselineEntry, bool) {
	if b == nil {
		return BaselineEntry{}, false
	}
	e, ok := b.entries[path]
	return e, ok
}

// Len returns the number of entries
func (b *Baseline) Len() int {
	if b == nil {
		return 0
	}
	return len(b.paths)
}

// Paths returns all baseline paths in sorted order
func (b *Baseline) Paths() []string {
	if b == nil {
		return nil
	}
	return append([]string(nil), b.paths...)
}

// Entries returns a copy of all entries sorted by path
func (b *Baseline) Entries() []BaselineEntry {
	if b == nil {
		return nil
	}
	out := make([]BaselineEntry, 0, len(b.paths))
	for _, p := range b.paths {
		e := b.entries[p]
		e.Digest = append(Digest(nil), e.Digest...)
		out = append(out, e)
	}
	return out
}
