package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/IvanShishkin/tamperhound/internal/filesystem"
	"github.com/IvanShishkin/tamperhound/internal/hasher"
	"github.com/IvanShishkin/tamperhound/pkg/models"
	"go.uber.org/zap"
)

// ErrAlgorithmMismatch is reported when an override disagrees with the baseline
var ErrAlgorithmMismatch = errors.New("baseline algorithm differs from required algorithm")

// OpenFunc opens a file for hashing
type OpenFunc func(path string) (io.ReadCloser, error)

// openFile opens path, refusing a final symbolic link
func openFile(path string) (io.ReadCloser, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil, &fs.PathError{Op: "open", Path: path, Err: filesystem.ErrSymlinkNotFollowed}
	}
	return openFollow(path)
}

// openFollow opens path, following symbolic links
func openFollow(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Comparator checks one file against the baseline
type Comparator struct {
	open     OpenFunc
	override string
	logger   *zap.Logger
}

// ComparatorOption configures a Comparator
type ComparatorOption func(*Comparator)

// WithOpener replaces the function used to open files
func WithOpener(open OpenFunc) ComparatorOption {
	return func(c *Comparator) {
		c.open = open
	}
}

// WithFollowSymlinks hashes the target of a symbolic link instead of
// reporting the link as unreadable
func WithFollowSymlinks() ComparatorOption {
	return func(c *Comparator) {
		c.open = openFollow
	}
}

// WithAlgorithm requires every baseline entry to use algorithm
func WithAlgorithm(algorithm string) ComparatorOption {
	return func(c *Comparator) {
		c.override = algorithm
	}
}

// NewComparator creates a comparator
func NewComparator(logger *zap.Logger, opts ...ComparatorOption) *Comparator {
	c := &Comparator{
		open:   openFile,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compare produces the verdict for a single target. The baseline is consulted
// before the file is touched, so paths outside the baseline are never read.
// When called directly, a comparison interrupted by ctx is reported as
// unreadable. The Scanner does not go through Compare and drops interrupted
// comparisons instead.
func (c *Comparator) Compare(ctx context.Context, target models.ScanTarget, baseline *models.Baseline) models.Verdict {
	verdict, err := c.evaluate(ctx, target, baseline)
	if err != nil {
		return unreadable(models.Verdict{Path: target.Path}, err)
	}
	return verdict
}

// evaluate returns a non-nil error only when ctx interrupted the comparison
func (c *Comparator) evaluate(ctx context.Context, target models.ScanTarget, baseline *models.Baseline) (models.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return models.Verdict{}, err
	}

	entry, ok := baseline.Lookup(target.Path)
	if !ok {
		return models.Verdict{
			Path:    target.Path,
			Outcome: models.OutcomeNotInBaseline,
		}, nil
	}

	verdict := models.Verdict{
		Path:           target.Path,
		Algorithm:      entry.Algorithm,
		ExpectedDigest: append(models.Digest(nil), entry.Digest...),
	}

	if c.override != "" && c.override != entry.Algorithm {
		return unreadable(verdict, fmt.Errorf("%w: baseline uses %s, required %s",
			ErrAlgorithmMismatch, entry.Algorithm, c.override)), nil
	}

	observed, err := c.digest(ctx, target.Path, entry.Algorithm)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return models.Verdict{}, ctxErr
		}
		if errors.Is(err, fs.ErrNotExist) {
			verdict.Outcome = models.OutcomeMissing
			return verdict, nil
		}
		c.logger.Debug("Failed to hash file",
			zap.String("path", target.Path),
			zap.Error(err))
		return unreadable(verdict, err), nil
	}

	verdict.ObservedDigest = observed
	if observed.Equal(entry.Digest) {
		verdict.Outcome = models.OutcomeMatch
	} else {
		verdict.Outcome = models.OutcomeMismatch
	}
	return verdict, nil
}

func (c *Comparator) digest(ctx context.Context, path, algorithm string) (models.Digest, error) {
	r, err := c.open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	d, err := hasher.Digest(&contextReader{ctx: ctx, r: r}, algorithm)
	var readErr *hasher.ReadError
	if errors.As(err, &readErr) {
		readErr.Path = path
	}
	return d, err
}

// contextReader aborts a read in progress once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

func unreadable(v models.Verdict, err error) models.Verdict {
	v.Outcome = models.OutcomeUnreadable
	v.ObservedDigest = nil
	v.Error = err.Error()
	return v
}
