package baseline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/IvanShishkin/tamperhound/internal/hasher"
	"github.com/IvanShishkin/tamperhound/pkg/models"
	"go.uber.org/zap"
)

// Recorder hashes files into new baseline entries
type Recorder struct {
	algorithm string
	logger    *zap.Logger
	now       func() time.Time
}

// NewRecorder creates a recorder for the given algorithm
func NewRecorder(algorithm string, logger *zap.Logger) (*Recorder, error) {
	if algorithm == "" {
		algorithm = hasher.Default
	}
	if _, ok := hasher.Size(algorithm); !ok {
		return nil, fmt.Errorf("%w: %q", hasher.ErrUnknownAlgorithm, algorithm)
	}
	return &Recorder{
		algorithm: algorithm,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Record hashes every target. Files that cannot be hashed are reported in
// the returned error and left out of the entries.
func (r *Recorder) Record(ctx context.Context, targets []models.ScanTarget) ([]models.BaselineEntry, error) {
	entries := make([]models.BaselineEntry, 0, len(targets))
	var errs []error

	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return entries, err
		}

		info, err := os.Stat(target.Path)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		digest, err := hasher.DigestFile(target.Path, r.algorithm)
		if err != nil {
			errs = append(errs, fmt.Errorf("hashing %s: %w", target.Path, err))
			continue
		}

		recorded := r.now().UTC()
		entries = append(entries, models.BaselineEntry{
			Path:       target.Path,
			Digest:     digest,
			Algorithm:  r.algorithm,
			RecordedAt: &recorded,
			Size:       info.Size(),
		})

		r.logger.Debug("Recorded baseline entry",
			zap.String("path", target.Path),
			zap.String("digest", digest.String()))
	}

	return entries, errors.Join(errs...)
}

// Document wraps recorded entries into a document for saving
func (r *Recorder) Document(entries []models.BaselineEntry) *Document {
	return NewDocument(r.algorithm, entries, r.now().UTC())
}
