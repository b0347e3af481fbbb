package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"media-translator/internal/domain"
	"media-translator/internal/gateway"
)

// DefaultProbeTimeout bounds each remote readiness check.
const DefaultProbeTimeout = 5 * time.Second

// Probe reports whether a dependency is reachable.
type Probe func(ctx context.Context) error

// Checker validates the remote service, the download directory, and the state store.
type Checker struct {
	health     Probe
	state      Probe
	timeout    time.Duration
	stat       func(string) (os.FileInfo, error)
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies. Nil probes are skipped.
func NewChecker(health, state Probe) *Checker {
	return &Checker{
		health:     health,
		state:      state,
		timeout:    DefaultProbeTimeout,
		stat:       os.Stat,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all checks and returns a combined report.
func (c *Checker) Run(ctx context.Context, prefs domain.Preferences) domain.DiagnosticReport {
	items := make([]domain.DiagnosticItem, 0, 3)
	if c.health != nil {
		items = append(items, c.checkService(ctx))
	}
	items = append(items, c.checkDownloadDir(prefs.DownloadDir))
	if c.state != nil {
		items = append(items, c.checkStateStore(ctx))
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkService calls the remote health endpoint.
func (c *Checker) checkService(ctx context.Context) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   domain.DiagnosticService,
		Name: "Translation service",
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.health(probeCtx)
	switch kind := gateway.KindOf(err); {
	case err == nil:
		item.Status = domain.DiagnosticStatusPass
		item.Message = "Service is reachable."
	case kind == gateway.KindForbidden:
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Service rejected the client credentials."
		item.Hint = "Check SERVICE_TOKEN_SECRET matches the service configuration."
	case kind == gateway.KindServerError || kind == gateway.KindMalformedResponse:
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("Service responded with an error: %v", err)
		item.Hint = "Jobs may fail until the service recovers."
	default:
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Service is unreachable: %v", err)
		item.Hint = "Check SERVICE_URL and your network connection."
	}
	return item
}

// checkDownloadDir validates download directory existence and write access.
func (c *Checker) checkDownloadDir(dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   domain.DiagnosticDownloadDir,
		Name: "Download directory",
	}

	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Download directory is empty."
		item.Hint = "Set a directory where downloaded results can be saved."
		item.Fixable = true
		return item
	}

	info, err := c.stat(dir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if IsNotExist(err) {
			item.Message = fmt.Sprintf("Download directory does not exist: %s", dir)
			item.Hint = "Create the directory or choose another location."
			item.Fixable = true
		} else {
			item.Message = fmt.Sprintf("Cannot access download directory: %s", dir)
			item.Hint = "Check permissions for the download directory."
		}
		return item
	}
	if !info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Download path is not a directory: %s", dir)
		item.Hint = "Choose a directory instead of a file."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Download directory is not writable: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// checkStateStore verifies the history and preferences record can be read.
func (c *Checker) checkStateStore(ctx context.Context) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   domain.DiagnosticStateStore,
		Name: "State store",
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.state(probeCtx); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot read saved history: %v", err)
		item.Hint = "Check STATE_BACKEND settings. History will not be saved until this is fixed."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = "Saved history is readable."
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	health Probe,
	state Probe,
	stat func(string) (os.FileInfo, error),
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		health:     health,
		state:      state,
		timeout:    DefaultProbeTimeout,
		stat:       stat,
		createTemp: createTemp,
		remove:     remove,
	}
}

// IsNotExist reports whether error represents file-not-found.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
