package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/IvanShishkin/tamperhound/pkg/models"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		status models.Status
		want   int
	}{
		{models.StatusClean, exitClean},
		{models.StatusTampered, exitTampered},
		{models.StatusIncomplete, exitIncomplete},
	}

	for _, tt := range tests {
		if got := exitCode(tt.status); got != tt.want {
			t.Errorf("exitCode(%s) = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func TestHashCommand(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.conf")
	writeFile(t, file, "hello\n")

	code, stdout, stderr := runCLI(t, "hash", file)
	if code != exitClean {
		t.Fatalf("hash exit = %d, stderr: %s", code, stderr)
	}
	want := "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03  " + file
	if strings.TrimSpace(stdout) != want {
		t.Errorf("hash output = %q, want %q", stdout, want)
	}

	if code, _, _ := runCLI(t, "hash", "--algorithm", "md5", file); code != exitError {
		t.Errorf("hash --algorithm md5 exit = %d, want %d", code, exitError)
	}
}

func TestAlgorithmsCommand(t *testing.T) {
	code, stdout, _ := runCLI(t, "algorithms")
	if code != exitClean {
		t.Fatalf("algorithms exit = %d", code)
	}
	for _, want := range []string{"sha256", "sha512", "blake3"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("algorithms output missing %s", want)
		}
	}
}

// TestScanLifecycle records a baseline and scans it through clean, tampered
// and deleted states
func TestScanLifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	conf := filepath.Join(tmpDir, "etc", "app.conf")
	other := filepath.Join(tmpDir, "etc", "other.conf")
	baselinePath := filepath.Join(tmpDir, "baseline.yaml")
	writeFile(t, conf, "hello\n")
	writeFile(t, other, "other\n")

	code, stdout, stderr := runCLI(t, "baseline", "init", "-o", baselinePath, filepath.Join(tmpDir, "etc"))
	if code != exitClean {
		t.Fatalf("baseline init exit = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Recorded 2 files") {
		t.Errorf("baseline init output = %q", stdout)
	}

	code, stdout, _ = runCLI(t, "baseline", "show", "-b", baselinePath)
	if code != exitClean || !strings.Contains(stdout, conf) || !strings.Contains(stdout, "2 entries") {
		t.Errorf("baseline show exit = %d output = %q", code, stdout)
	}

	tests := []struct {
		name       string
		setup      func(t *testing.T)
		wantCode   int
		wantStatus models.Status
	}{
		{"Clean", func(t *testing.T) {}, exitClean, models.StatusClean},
		{"Tampered", func(t *testing.T) { writeFile(t, conf, "hello\n\n") }, exitTampered, models.StatusTampered},
		{"Deleted", func(t *testing.T) {
			if err := os.Remove(conf); err != nil {
				t.Fatal(err)
			}
		}, exitIncomplete, models.StatusIncomplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup(t)
			code, stdout, stderr := runCLI(t, "scan", "-b", baselinePath, "-r", "json", "-o", "-")
			if code != tt.wantCode {
				t.Fatalf("scan exit = %d, want %d (stderr: %s)", code, tt.wantCode, stderr)
			}

			var report models.ScanReport
			if err := json.Unmarshal([]byte(stdout), &report); err != nil {
				t.Fatalf("Failed to decode report: %v\n%s", err, stdout)
			}
			if report.Status != tt.wantStatus {
				t.Errorf("report status = %s, want %s", report.Status, tt.wantStatus)
			}
			if len(report.Verdicts) != 2 {
				t.Errorf("report verdicts = %d, want 2", len(report.Verdicts))
			}
		})
	}
}

func TestScanConsoleOutput(t *testing.T) {
	tmpDir := t.TempDir()
	conf := filepath.Join(tmpDir, "app.conf")
	baselinePath := filepath.Join(tmpDir, "baseline.json")
	writeFile(t, conf, "hello\n")

	if code, _, stderr := runCLI(t, "baseline", "init", "-o", baselinePath, conf); code != exitClean {
		t.Fatalf("baseline init exit = %d, stderr: %s", code, stderr)
	}

	code, stdout, _ := runCLI(t, "scan", "-b", baselinePath, conf)
	if code != exitClean {
		t.Fatalf("scan exit = %d", code)
	}
	if !strings.Contains(stdout, "CLEAN") || strings.Contains(stdout, "\033[") {
		t.Errorf("scan console output = %q, want uncolored CLEAN summary", stdout)
	}
}

func TestScanErrors(t *testing.T) {
	tmpDir := t.TempDir()
	conf := filepath.Join(tmpDir, "app.conf")
	writeFile(t, conf, "hello\n")
	baselinePath := filepath.Join(tmpDir, "baseline.yaml")
	if code, _, stderr := runCLI(t, "baseline", "init", "-o", baselinePath, conf); code != exitClean {
		t.Fatalf("baseline init exit = %d, stderr: %s", code, stderr)
	}

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"Missing baseline", []string{"scan", "-b", filepath.Join(tmpDir, "absent.yaml")}, "baseline not found"},
		{"Unknown report format", []string{"scan", "-b", baselinePath, "-r", "html"}, "unknown report format"},
		{"Unknown algorithm", []string{"scan", "-b", baselinePath, "--algorithm", "md5"}, "unsupported hash algorithm"},
		{"Missing config file", []string{"scan", "--config", filepath.Join(tmpDir, "absent.yaml")}, "failed to read config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			if code != exitError {
				t.Errorf("exit = %d, want %d", code, exitError)
			}
			if !strings.Contains(stderr, tt.wantErr) {
				t.Errorf("stderr = %q, want %q", stderr, tt.wantErr)
			}
		})
	}
}

func TestScanAlgorithmOverrideMismatch(t *testing.T) {
	tmpDir := t.TempDir()
	conf := filepath.Join(tmpDir, "app.conf")
	writeFile(t, conf, "hello\n")
	baselinePath := filepath.Join(tmpDir, "baseline.cbor")
	if code, _, stderr := runCLI(t, "baseline", "init", "--algorithm", "sha512", "-o", baselinePath, conf); code != exitClean {
		t.Fatalf("baseline init exit = %d, stderr: %s", code, stderr)
	}

	if code, _, _ := runCLI(t, "scan", "-b", baselinePath, "--algorithm", "sha512"); code != exitClean {
		t.Errorf("scan with matching algorithm exit = %d, want %d", code, exitClean)
	}
	if code, _, _ := runCLI(t, "scan", "-b", baselinePath, "--algorithm", "sha256"); code != exitIncomplete {
		t.Errorf("scan with different algorithm exit = %d, want %d", code, exitIncomplete)
	}
}
