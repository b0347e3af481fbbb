package config

import (
	"os"
	"path/filepath"

	"media-translator/internal/domain"
)

// DefaultPreferences returns baseline user preferences for first launch.
func DefaultPreferences() domain.Preferences {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Preferences{
		DownloadDir:    filepath.Join(homeDir, "Downloads", "MediaTranslator"),
		SourceLanguage: domain.SourceLanguageAuto,
		TargetLanguage: "th",
		Locale:         domain.LocaleEnglish,
	}
}

// DefaultStatePath returns the file backend location under the user's home.
func DefaultStatePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".media-translator", "state.v1.json")
}
