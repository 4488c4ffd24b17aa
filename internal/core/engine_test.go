package core

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/IvanShishkin/tamperhound/internal/baseline"
	"github.com/IvanShishkin/tamperhound/internal/filesystem"
	"github.com/IvanShishkin/tamperhound/pkg/models"
	"go.uber.org/zap"
)

func newTestEngine(store baseline.Store, roots []string, timeout time.Duration, opts ...ComparatorOption) *Engine {
	logger := zap.NewNop()
	return NewEngine(EngineConfig{
		Store:    store,
		Resolver: filesystem.NewResolver(filesystem.Options{WalkDirectories: true}, logger),
		Scanner:  NewScanner(2, NewComparator(logger, opts...), logger),
		Roots:    roots,
		Timeout:  timeout,
		Version:  "test",
	}, logger)
}

// TestEngine_AppConfScenario walks a single monitored file through its
// clean, tampered and deleted states
func TestEngine_AppConfScenario(t *testing.T) {
	tmpDir := t.TempDir()
	conf := filepath.Join(tmpDir, "etc", "app.conf")
	store := baseline.NewMemoryStore("scenario", []models.BaselineEntry{entry(conf, "hello\n")})

	tests := []struct {
		name       string
		setup      func(t *testing.T)
		wantStatus models.Status
		want       models.Outcome
	}{
		{"Clean", func(t *testing.T) { writeFile(t, conf, "hello\n") }, models.StatusClean, models.OutcomeMatch},
		{"Tampered", func(t *testing.T) { writeFile(t, conf, "hello\n\n") }, models.StatusTampered, models.OutcomeMismatch},
		{"Deleted", func(t *testing.T) {
			if err := os.Remove(conf); err != nil {
				t.Fatal(err)
			}
		}, models.StatusIncomplete, models.OutcomeMissing},
	}

	for _, roots := range [][]string{{conf}, nil} {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tt.setup(t)
				report, err := newTestEngine(store, roots, 0).Run(context.Background())
				if err != nil {
					t.Fatalf("Run() error = %v", err)
				}
				if report.Status != tt.wantStatus {
					t.Errorf("Run() status = %v, want %v", report.Status, tt.wantStatus)
				}
				if len(report.Verdicts) != 1 || report.Verdicts[0].Outcome != tt.want {
					t.Fatalf("Run() verdicts = %+v, want one %v", report.Verdicts, tt.want)
				}
				if report.BaselineSource != "scenario" || report.Version != "test" {
					t.Errorf("Run() source = %q version = %q", report.BaselineSource, report.Version)
				}
			})
		}
	}
}

func TestEngine_BaselineLoadFailureIsFatal(t *testing.T) {
	tmpDir := t.TempDir()
	conf := filepath.Join(tmpDir, "app.conf")
	writeFile(t, conf, "hello\n")

	opener := &memOpener{files: map[string]string{conf: "hello\n"}}
	store := baseline.NewFileStore(filepath.Join(tmpDir, "missing.yaml"), baseline.FileStoreOptions{}, zap.NewNop())

	report, err := newTestEngine(store, []string{conf}, 0, WithOpener(opener.open)).Run(context.Background())
	if report != nil {
		t.Errorf("Run() report = %+v, want nil", report)
	}
	var loadErr *baseline.BaselineLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Run() error = %v, want *BaselineLoadError", err)
	}
	if !errors.Is(err, baseline.ErrBaselineNotFound) {
		t.Errorf("Run() error = %v, want ErrBaselineNotFound", err)
	}
	if n := opener.opens.Load(); n != 0 {
		t.Errorf("Run() opened %d files, want 0", n)
	}
}

func TestEngine_UnknownRoots(t *testing.T) {
	tmpDir := t.TempDir()
	known := filepath.Join(tmpDir, "known.conf")
	unknown := filepath.Join(tmpDir, "unknown.conf")
	absent := filepath.Join(tmpDir, "absent.conf")
	writeFile(t, known, "k")
	writeFile(t, unknown, "u")

	store := baseline.NewMemoryStore("", []models.BaselineEntry{entry(known, "k")})
	report, err := newTestEngine(store, []string{known, unknown, absent}, 0).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []models.Outcome{models.OutcomeMatch, models.OutcomeNotInBaseline, models.OutcomeNotInBaseline}
	if len(report.Verdicts) != len(want) {
		t.Fatalf("Run() verdicts = %d, want %d", len(report.Verdicts), len(want))
	}
	for i, v := range report.Verdicts {
		if v.Outcome != want[i] {
			t.Errorf("verdict[%d] %s outcome = %v, want %v", i, v.Path, v.Outcome, want[i])
		}
	}
	if len(report.Warnings) != 1 || report.Warnings[0].Root != absent {
		t.Errorf("Run() warnings = %v, want one for %s", report.Warnings, absent)
	}
	if report.Status != models.StatusIncomplete {
		t.Errorf("Run() status = %v, want %v", report.Status, models.StatusIncomplete)
	}
}

// slowReader takes a long time to produce each chunk
type slowReader struct {
	r     io.Reader
	delay time.Duration
}

func (s *slowReader) Read(p []byte) (int, error) {
	time.Sleep(s.delay)
	return s.r.Read(p)
}

func (s *slowReader) Close() error { return nil }

func TestEngine_Timeout(t *testing.T) {
	paths := []string{"/srv/fast", "/srv/slow-1", "/srv/slow-2", "/srv/slow-3"}
	var entries []models.BaselineEntry
	for _, p := range paths {
		entries = append(entries, entry(p, p))
	}

	open := func(path string) (io.ReadCloser, error) {
		if path == "/srv/fast" {
			return io.NopCloser(strings.NewReader(path)), nil
		}
		return &slowReader{r: strings.NewReader(path), delay: 300 * time.Millisecond}, nil
	}

	logger := zap.NewNop()
	engine := NewEngine(EngineConfig{
		Store:   baseline.NewMemoryStore("", entries),
		Scanner: NewScanner(1, NewComparator(logger, WithOpener(open)), logger),
		Timeout: 100 * time.Millisecond,
	}, logger)

	start := time.Now()
	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Run() took %v, want prompt return after timeout", elapsed)
	}

	if got := verdictPaths(report); len(got) != 1 || got[0] != "/srv/fast" {
		t.Errorf("Run() verdicts = %v, want [/srv/fast]", got)
	}
	if !report.Canceled || report.Status != models.StatusIncomplete {
		t.Errorf("Run() canceled = %v status = %v, want true %v", report.Canceled, report.Status, models.StatusIncomplete)
	}
}

func TestEngine_CanceledDuringResolution(t *testing.T) {
	tmpDir := t.TempDir()
	conf := filepath.Join(tmpDir, "app.conf")
	writeFile(t, conf, "hello\n")
	store := baseline.NewMemoryStore("", []models.BaselineEntry{entry(conf, "hello\n")})

	// Cancel after the baseline is loaded but before resolution runs
	ctx, cancel := context.WithCancel(context.Background())
	report, err := newTestEngine(&cancelingStore{Store: store, cancel: cancel}, []string{tmpDir}, 0).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.Canceled || report.Status == models.StatusClean {
		t.Errorf("Run() canceled = %v status = %v, want canceled and not clean", report.Canceled, report.Status)
	}
}

// cancelingStore cancels the run as soon as the baseline is loaded
type cancelingStore struct {
	baseline.Store
	cancel context.CancelFunc
}

func (s *cancelingStore) Load(ctx context.Context) (*models.Baseline, error) {
	b, err := s.Store.Load(ctx)
	s.cancel()
	return b, err
}

// TestEngine_DirectoryRootCoversBaseline checks that baseline files under a
// directory root get a verdict even when the walk cannot see them
func TestEngine_DirectoryRootCoversBaseline(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, a, b string)
		want  models.Outcome
	}{
		{"Deleted", func(t *testing.T, a, b string) {
			if err := os.Remove(a); err != nil {
				t.Fatal(err)
			}
		}, models.OutcomeMissing},
		{"Replaced by symlink", func(t *testing.T, a, b string) {
			copied := filepath.Join(filepath.Dir(filepath.Dir(a)), "copy.conf")
			writeFile(t, copied, "a")
			if err := os.Remove(a); err != nil {
				t.Fatal(err)
			}
			if err := os.Symlink(copied, a); err != nil {
				t.Skipf("symlinks unsupported: %v", err)
			}
		}, models.OutcomeUnreadable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "etc")
			a := filepath.Join(dir, "a.conf")
			b := filepath.Join(dir, "b.conf")
			writeFile(t, a, "a")
			writeFile(t, b, "b")
			store := baseline.NewMemoryStore("", []models.BaselineEntry{entry(a, "a"), entry(b, "b")})

			tt.setup(t, a, b)
			report, err := newTestEngine(store, []string{dir}, 0).Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			// Walked files first, then baseline paths the walk missed
			if got := verdictPaths(report); len(got) != 2 || got[0] != b || got[1] != a {
				t.Fatalf("Run() verdicts = %v, want [%s %s]", got, b, a)
			}
			if report.Verdicts[0].Outcome != models.OutcomeMatch {
				t.Errorf("verdict %s outcome = %v, want %v", b, report.Verdicts[0].Outcome, models.OutcomeMatch)
			}
			if report.Verdicts[1].Outcome != tt.want {
				t.Errorf("verdict %s outcome = %v, want %v (error %q)", a, report.Verdicts[1].Outcome, tt.want, report.Verdicts[1].Error)
			}
			if report.Status != models.StatusIncomplete {
				t.Errorf("Run() status = %v, want %v", report.Status, models.StatusIncomplete)
			}
		})
	}
}

func TestEngine_SymlinkRootIsIncomplete(t *testing.T) {
	tmpDir := t.TempDir()
	conf := filepath.Join(tmpDir, "app.conf")
	copied := filepath.Join(tmpDir, "copy.conf")
	writeFile(t, copied, "hello\n")
	if err := os.Symlink(copied, conf); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	store := baseline.NewMemoryStore("", []models.BaselineEntry{entry(conf, "hello\n")})

	report, err := newTestEngine(store, []string{conf}, 0).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Warnings) != 1 || !strings.Contains(report.Warnings[0].Message, "symbolic link not followed") {
		t.Errorf("Run() warnings = %v, want symbolic link not followed", report.Warnings)
	}
	if len(report.Verdicts) != 1 || report.Verdicts[0].Outcome != models.OutcomeUnreadable {
		t.Errorf("Run() verdicts = %+v, want one unreadable", report.Verdicts)
	}
	if report.Status != models.StatusIncomplete {
		t.Errorf("Run() status = %v, want %v", report.Status, models.StatusIncomplete)
	}
}

func TestEngine_WarningWithMismatchIsTampered(t *testing.T) {
	tmpDir := t.TempDir()
	conf := filepath.Join(tmpDir, "app.conf")
	absent := filepath.Join(tmpDir, "absent.conf")
	writeFile(t, conf, "hello\n\n")
	store := baseline.NewMemoryStore("", []models.BaselineEntry{entry(conf, "hello\n")})

	report, err := newTestEngine(store, []string{conf, absent}, 0).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Warnings) != 1 {
		t.Errorf("Run() warnings = %v, want one", report.Warnings)
	}
	if report.Status != models.StatusTampered {
		t.Errorf("Run() status = %v, want %v", report.Status, models.StatusTampered)
	}
}
