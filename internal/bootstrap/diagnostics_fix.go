package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"media-translator/internal/config"
	"media-translator/internal/domain"
)

// InstallOrFixDiagnostic applies the remediation for one failed diagnostic item.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	prefs, err := a.GetPreferences()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}

	prefsChanged := false
	var fixErr error

	switch id {
	case domain.DiagnosticDownloadDir:
		prefs, prefsChanged, fixErr = installOrFixDownloadDir(prefs)
	case domain.DiagnosticStateStore:
		a.Ledger.Invalidate()
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if prefsChanged {
		saved, saveErr := a.Ledger.SavePreferences(context.Background(), prefs)
		if saveErr != nil {
			report := a.refreshDiagnosticsFromPreferences(prefs)
			return report, fmt.Errorf("save preferences after fix: %w", saveErr)
		}
		prefs = saved
		a.applyPreferences(prefs)
	}

	report := a.refreshDiagnosticsFromPreferences(prefs)
	if fixErr != nil {
		return report, fixErr
	}
	return report, nil
}

func installOrFixDownloadDir(prefs domain.Preferences) (domain.Preferences, bool, error) {
	dir := strings.TrimSpace(prefs.DownloadDir)
	changed := false
	if dir == "" {
		dir = config.DefaultPreferences().DownloadDir
		prefs.DownloadDir = dir
		changed = true
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return prefs, changed, fmt.Errorf("create download directory %s: %w", dir, err)
	}

	return prefs, changed, nil
}
