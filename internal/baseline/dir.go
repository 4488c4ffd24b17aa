package baseline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/IvanShishkin/tamperhound/pkg/models"
	"go.uber.org/zap"
)

// DirStore merges every baseline document found under a directory. A path
// recorded in more than one document is an error.
type DirStore struct {
	dir    string
	opts   FileStoreOptions
	logger *zap.Logger
}

// NewDirStore creates a store for the baseline documents under dir
func NewDirStore(dir string, opts FileStoreOptions, logger *zap.Logger) *DirStore {
	return &DirStore{
		dir:    dir,
		opts:   opts,
		logger: logger,
	}
}

// NewStore returns a DirStore when path is a directory and a FileStore
// otherwise
func NewStore(path string, opts FileStoreOptions, logger *zap.Logger) Store {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return NewDirStore(path, opts, logger)
	}
	return NewFileStore(path, opts, logger)
}

// Source returns the baseline directory
func (s *DirStore) Source() string {
	return s.dir
}

// Load reads all documents in lexical order and builds one snapshot
func (s *DirStore) Load(ctx context.Context) (*models.Baseline, error) {
	if _, err := os.Stat(s.dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %w", ErrBaselineNotFound, err)
		}
		return nil, &BaselineLoadError{Source: s.dir, Err: err}
	}

	var entries []models.BaselineEntry
	files := 0

	// Walk baseline directory
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		// Skip directories and files that are not baseline documents
		if d.IsDir() {
			return nil
		}
		if _, err := parseLayout(path); err != nil {
			s.logger.Debug("Skipping non-baseline file", zap.String("path", path))
			return nil
		}

		doc, err := NewFileStore(path, s.opts, s.logger).ReadDocument(ctx)
		if err != nil {
			return err
		}
		b, err := doc.Baseline()
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}

		entries = append(entries, b.Entries()...)
		files++
		return nil
	})
	if err != nil {
		var loadErr *BaselineLoadError
		if errors.As(err, &loadErr) {
			return nil, loadErr
		}
		return nil, &BaselineLoadError{Source: s.dir, Err: err}
	}

	b, err := Build(entries)
	if err != nil {
		return nil, &BaselineLoadError{Source: s.dir, Err: err}
	}

	s.logger.Info("Loaded baseline directory",
		zap.String("source", s.dir),
		zap.Int("documents", files),
		zap.Int("entries", b.Len()))
	return b, nil
}
