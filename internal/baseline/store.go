// Package baseline loads trusted baselines for the verification engine.
//
// The engine only ever reads through the Store interface. Writing baseline
// documents (FileStore.Save, Recorder) lives here for the authoring commands
// and is never reached from a scan.
package baseline

import (
	"context"
	"errors"
	"fmt"

	"github.com/IvanShishkin/tamperhound/internal/hasher"
	"github.com/IvanShishkin/tamperhound/pkg/models"
)

var (
	// ErrBaselineNotFound is returned when a baseline doesn't exist
	ErrBaselineNotFound = errors.New("baseline not found")
	// ErrDigestSize is returned when a digest length does not match its algorithm
	ErrDigestSize = errors.New("digest length does not match algorithm")
	// ErrUnsupportedVersion is returned for documents newer than this build understands
	ErrUnsupportedVersion = errors.New("unsupported baseline document version")
)

// Store supplies the trusted baseline for a scan
type Store interface {
	// Load returns an immutable baseline snapshot
	Load(ctx context.Context) (*models.Baseline, error)
	// Source describes where the baseline comes from, for reports and logs
	Source() string
}

// BaselineLoadError is fatal: a scan cannot proceed without a trusted baseline
type BaselineLoadError struct {
	Source string
	Err    error
}

func (e *BaselineLoadError) Error() string {
	return fmt.Sprintf("loading baseline from %s: %v", e.Source, e.Err)
}

func (e *BaselineLoadError) Unwrap() error {
	return e.Err
}

// Build validates entries against their algorithms and builds a snapshot
func Build(entries []models.BaselineEntry) (*models.Baseline, error) {
	for _, e := range entries {
		size, ok := hasher.Size(e.Algorithm)
		if !ok {
			return nil, fmt.Errorf("%s: %w: %q", e.Path, hasher.ErrUnknownAlgorithm, e.Algorithm)
		}
		if len(e.Digest) != size {
			return nil, fmt.Errorf("%s: %w: %s wants %d bytes, got %d",
				e.Path, ErrDigestSize, e.Algorithm, size, len(e.Digest))
		}
	}
	return models.NewBaseline(entries)
}

// MemoryStore serves a fixed set of entries
type MemoryStore struct {
	name    string
	entries []models.BaselineEntry
}

// NewMemoryStore creates a store over entries. The entries are validated on
// every Load so a bad store can never produce a snapshot.
func NewMemoryStore(name string, entries []models.BaselineEntry) *MemoryStore {
	return &MemoryStore{
		name:    name,
		entries: append([]models.BaselineEntry(nil), entries...),
	}
}

// Load builds a snapshot from the stored entries
func (s *MemoryStore) Load(ctx context.Context) (*models.Baseline, error) {
	if err := ctx.Err(); err != nil {
		return nil, &BaselineLoadError{Source: s.Source(), Err: err}
	}
	b, err := Build(s.entries)
	if err != nil {
		return nil, &BaselineLoadError{Source: s.Source(), Err: err}
	}
	return b, nil
}

// Source returns the store name
func (s *MemoryStore) Source() string {
	if s.name == "" {
		return "memory"
	}
	return s.name
}
