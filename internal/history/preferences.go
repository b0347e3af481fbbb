package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"media-translator/internal/domain"
	"media-translator/internal/store"
)

// ErrInvalidPreferences is returned for preferences that cannot be saved.
var ErrInvalidPreferences = errors.New("invalid preferences")

// Preferences returns the persisted preferences.
func (l *Ledger) Preferences(ctx context.Context) (domain.Preferences, error) {
	state, err := l.repo.Load(ctx)
	if err != nil {
		return domain.Preferences{}, err
	}
	return state.Preferences, nil
}

// SavePreferences validates and persists prefs alongside the history.
func (l *Ledger) SavePreferences(ctx context.Context, prefs domain.Preferences) (domain.Preferences, error) {
	prefs.DownloadDir = strings.TrimSpace(prefs.DownloadDir)
	prefs.SourceLanguage = domain.NormalizeLanguage(prefs.SourceLanguage)
	prefs.TargetLanguage = domain.NormalizeLanguage(prefs.TargetLanguage)
	if prefs.SourceLanguage == "" {
		prefs.SourceLanguage = domain.SourceLanguageAuto
	}

	switch {
	case prefs.DownloadDir == "":
		return domain.Preferences{}, fmt.Errorf("%w: download directory is required", ErrInvalidPreferences)
	case prefs.TargetLanguage == "" || prefs.TargetLanguage == domain.SourceLanguageAuto:
		return domain.Preferences{}, fmt.Errorf("%w: target language is required", ErrInvalidPreferences)
	case prefs.TargetLanguage == prefs.SourceLanguage:
		return domain.Preferences{}, fmt.Errorf("%w: target language equals source language", ErrInvalidPreferences)
	}
	if prefs.Locale != domain.LocaleThai {
		prefs.Locale = domain.LocaleEnglish
	}

	state, err := l.repo.Update(ctx, func(state *store.State) error {
		state.Preferences = prefs
		return nil
	})
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("save preferences: %w", err)
	}
	return state.Preferences, nil
}
