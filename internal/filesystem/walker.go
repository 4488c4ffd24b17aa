// Package filesystem resolves configured roots into the ordered set of files
// a scan will verify.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/IvanShishkin/tamperhound/pkg/models"
	"go.uber.org/zap"
)

var (
	// ErrSymlinkNotFollowed is recorded for symlink roots when following is disabled
	ErrSymlinkNotFollowed = errors.New("symbolic link not followed")
	// ErrDirectoryNotWalked is recorded for directory roots when walking is disabled
	ErrDirectoryNotWalked = errors.New("directory expansion disabled")
	// ErrNotRegular is recorded for roots that are neither files nor directories
	ErrNotRegular = errors.New("not a regular file")
)

// ResolutionError reports a configured root that could not be expanded
type ResolutionError struct {
	Root string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %s: %v", e.Root, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Options controls how roots are expanded
type Options struct {
	FollowSymlinks  bool     // follow symbolic links (off by default)
	WalkDirectories bool     // expand directory roots
	Exclude         []string // directory names to skip while walking
}

// Resolution is the output of a single resolve pass
type Resolution struct {
	Targets  []models.ScanTarget
	Warnings []models.ResolutionWarning
	Errors   []*ResolutionError
}

// Resolver expands roots into scan targets
type Resolver struct {
	opts    Options
	logger  *zap.Logger
	exclude map[string]bool
}

// NewResolver creates a new resolver
func NewResolver(opts Options, logger *zap.Logger) *Resolver {
	// Build exclude map for fast lookup
	exclude := make(map[string]bool)
	for _, dir := range opts.Exclude {
		exclude[dir] = true
	}

	return &Resolver{
		opts:    opts,
		logger:  logger,
		exclude: exclude,
	}
}

// resolveRun holds state for one Resolve call
type resolveRun struct {
	r       *Resolver
	ctx     context.Context
	out     *Resolution
	seen    map[string]bool
	visited map[string]bool
}

// Resolve expands roots in order. Per-root failures are recorded and do not
// stop resolution of the remaining roots. Only context cancellation aborts.
func (r *Resolver) Resolve(ctx context.Context, roots []string) (*Resolution, error) {
	run := &resolveRun{
		r:       r,
		ctx:     ctx,
		out:     &Resolution{},
		seen:    make(map[string]bool),
		visited: make(map[string]bool),
	}

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return run.out, err
		}
		if err := run.resolveRoot(root); err != nil {
			return run.out, err
		}
	}

	r.logger.Debug("Resolved scan targets",
		zap.Int("roots", len(roots)),
		zap.Int("targets", len(run.out.Targets)),
		zap.Int("warnings", len(run.out.Warnings)))

	return run.out, nil
}

func (run *resolveRun) warn(root string, err error) {
	resErr := &ResolutionError{Root: root, Err: err}
	run.out.Errors = append(run.out.Errors, resErr)
	run.out.Warnings = append(run.out.Warnings, models.ResolutionWarning{
		Root:    root,
		Message: err.Error(),
	})
	run.r.logger.Warn("Failed to resolve root", zap.String("root", root), zap.Error(err))
}

func (run *resolveRun) add(root, path string) {
	if run.seen[path] {
		return
	}
	run.seen[path] = true
	run.out.Targets = append(run.out.Targets, models.ScanTarget{Path: path, Root: root})
}

// resolveRoot returns an error only for context cancellation
func (run *resolveRun) resolveRoot(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		run.warn(root, err)
		return nil
	}
	abs = filepath.Clean(abs)

	info, err := os.Lstat(abs)
	if err != nil {
		// Kept as a literal target so the comparator can report it as
		// missing or not in baseline.
		run.warn(root, err)
		run.add(root, abs)
		return nil
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		if !run.r.opts.FollowSymlinks {
			run.warn(root, ErrSymlinkNotFollowed)
			return nil
		}
		abs, info, err = followLink(abs)
		if err != nil {
			run.warn(root, err)
			return nil
		}
	}

	switch {
	case info.Mode().IsRegular():
		run.add(root, abs)
	case info.IsDir():
		if !run.r.opts.WalkDirectories {
			run.warn(root, ErrDirectoryNotWalked)
			return nil
		}
		return run.walk(root, abs)
	default:
		run.warn(root, ErrNotRegular)
	}
	return nil
}

// walk recursively walks a directory tree in lexical order
func (run *resolveRun) walk(root, dir string) error {
	if run.visited[dir] {
		return nil
	}
	run.visited[dir] = true

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := run.ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			run.warn(root, err)
			return nil // Continue walking
		}

		if d.IsDir() {
			if path != dir && run.r.exclude[d.Name()] {
				run.r.logger.Debug("Skipping excluded directory", zap.String("path", path))
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !run.r.opts.FollowSymlinks {
				run.r.logger.Debug("Skipping symbolic link", zap.String("path", path))
				return nil
			}
			real, info, err := followLink(path)
			if err != nil {
				run.warn(root, err)
				return nil
			}
			if info.IsDir() {
				if run.r.exclude[filepath.Base(real)] {
					return nil
				}
				return run.walk(root, real)
			}
			if info.Mode().IsRegular() {
				run.add(root, real)
			}
			return nil
		}

		if d.Type().IsRegular() {
			run.add(root, path)
		}
		return nil
	})
}

// followLink resolves a symlink to its real path and stats the target
func followLink(path string) (string, fs.FileInfo, error) {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", nil, err
	}
	real, err = filepath.Abs(real)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(real)
	if err != nil {
		return "", nil, err
	}
	return real, info, nil
}

// TargetsFromBaseline returns one target per baseline path in sorted order.
// Paths that no longer exist are included so deletions are reported.
func TargetsFromBaseline(b *models.Baseline) []models.ScanTarget {
	paths := b.Paths()
	targets := make([]models.ScanTarget, 0, len(paths))
	for _, p := range paths {
		targets = append(targets, models.ScanTarget{Path: p, Root: p})
	}
	return targets
}

// BaselineTargetsUnder returns a target for every baseline path inside one of
// roots that is not already among resolved, in sorted order. A walk only finds
// files that exist as regular files, so deleted or replaced baseline files are
// picked up here.
func BaselineTargetsUnder(b *models.Baseline, roots []string, resolved []models.ScanTarget) []models.ScanTarget {
	have := make(map[string]bool, len(resolved))
	for _, t := range resolved {
		have[t.Path] = true
	}

	type scope struct {
		root string
		abs  string
	}
	scopes := make([]scope, 0, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		scopes = append(scopes, scope{root: root, abs: filepath.Clean(abs)})
	}

	var targets []models.ScanTarget
	for _, p := range b.Paths() {
		if have[p] {
			continue
		}
		for _, s := range scopes {
			if within(s.abs, p) {
				targets = append(targets, models.ScanTarget{Path: p, Root: s.root})
				have[p] = true
				break
			}
		}
	}
	return targets
}

// within reports whether path is root or lies below it
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
