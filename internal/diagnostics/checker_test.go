package diagnostics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"media-translator/internal/domain"
	"media-translator/internal/gateway"
)

func healthy(context.Context) error { return nil }

// TestCheckerRunAllPass validates happy-path diagnostics report.
func TestCheckerRunAllPass(t *testing.T) {
	downloadDir := filepath.Join(t.TempDir(), "downloads")
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		t.Fatalf("mkdir downloads: %v", err)
	}

	checker := NewCheckerForTests(healthy, healthy, os.Stat, os.CreateTemp, os.Remove)
	report := checker.Run(context.Background(), domain.Preferences{DownloadDir: downloadDir})

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	if len(report.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(report.Items))
	}
	entries, err := os.ReadDir(downloadDir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("write check left %d files behind", len(entries))
	}
}

// TestCheckerRunMissingServiceAndPaths validates failure reporting.
func TestCheckerRunMissingServiceAndPaths(t *testing.T) {
	unreachable := func(context.Context) error {
		return &gateway.Error{Op: "health", Kind: gateway.KindNetworkUnreachable, Err: errors.New("connection refused")}
	}
	brokenStore := func(context.Context) error { return errors.New("redis: connection refused") }

	checker := NewCheckerForTests(unreachable, brokenStore, os.Stat, os.CreateTemp, os.Remove)
	report := checker.Run(context.Background(), domain.Preferences{DownloadDir: ""})

	if !report.HasFailures {
		t.Fatal("expected failures")
	}
	assertStatusByID(t, report, domain.DiagnosticService, domain.DiagnosticStatusFail)
	assertStatusByID(t, report, domain.DiagnosticDownloadDir, domain.DiagnosticStatusFail)
	assertStatusByID(t, report, domain.DiagnosticStateStore, domain.DiagnosticStatusFail)
}

// TestCheckerServiceErrorIsWarning validates server faults do not block the panel.
func TestCheckerServiceErrorIsWarning(t *testing.T) {
	serverFault := func(context.Context) error {
		return &gateway.Error{Op: "health", Kind: gateway.KindServerError, StatusCode: 503}
	}
	checker := NewCheckerForTests(serverFault, nil, os.Stat, os.CreateTemp, os.Remove)
	report := checker.Run(context.Background(), domain.Preferences{DownloadDir: t.TempDir()})

	assertStatusByID(t, report, domain.DiagnosticService, domain.DiagnosticStatusWarn)
	if report.HasFailures {
		t.Fatalf("expected warning only, got %+v", report.Items)
	}
}

// TestCheckerMissingDownloadDirIsFixable validates the fix hint for absent directories.
func TestCheckerMissingDownloadDirIsFixable(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nested", "downloads")
	checker := NewCheckerForTests(nil, nil, os.Stat, os.CreateTemp, os.Remove)
	report := checker.Run(context.Background(), domain.Preferences{DownloadDir: missing})

	item := itemByID(t, report, domain.DiagnosticDownloadDir)
	if item.Status != domain.DiagnosticStatusFail || !item.Fixable {
		t.Fatalf("item = %+v, want fixable failure", item)
	}
	if _, err := os.Stat(missing); !os.IsNotExist(err) {
		t.Fatalf("checker must not create the directory: %v", err)
	}
}

// TestCheckerDownloadPathIsFile validates non-directory paths fail without a fix.
func TestCheckerDownloadPathIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "downloads.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	checker := NewCheckerForTests(nil, nil, os.Stat, os.CreateTemp, os.Remove)
	report := checker.Run(context.Background(), domain.Preferences{DownloadDir: file})

	item := itemByID(t, report, domain.DiagnosticDownloadDir)
	if item.Status != domain.DiagnosticStatusFail || item.Fixable {
		t.Fatalf("item = %+v, want non-fixable failure", item)
	}
}

// TestCheckerUnwritableDownloadDir validates write-check failures.
func TestCheckerUnwritableDownloadDir(t *testing.T) {
	checker := NewCheckerForTests(nil, nil, os.Stat,
		func(string, string) (*os.File, error) { return nil, os.ErrPermission },
		os.Remove,
	)
	report := checker.Run(context.Background(), domain.Preferences{DownloadDir: t.TempDir()})
	assertStatusByID(t, report, domain.DiagnosticDownloadDir, domain.DiagnosticStatusFail)
}

func itemByID(t *testing.T, report domain.DiagnosticReport, id string) domain.DiagnosticItem {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			return item
		}
	}
	t.Fatalf("diagnostic item not found: %s", id)
	return domain.DiagnosticItem{}
}

// assertStatusByID checks status for one diagnostic item by ID.
func assertStatusByID(t *testing.T, report domain.DiagnosticReport, id string, want domain.DiagnosticStatus) {
	t.Helper()
	if item := itemByID(t, report, id); item.Status != want {
		t.Fatalf("item %s: got %s, want %s", id, item.Status, want)
	}
}
