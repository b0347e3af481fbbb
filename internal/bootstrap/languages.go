package bootstrap

import (
	"context"
	"time"

	"media-translator/internal/domain"
)

const languagesTimeout = 5 * time.Second

// Languages returns the service's supported languages, or the built-in list
// when the service cannot be asked.
func (a *App) Languages() []domain.Language {
	ctx, cancel := context.WithTimeout(context.Background(), languagesTimeout)
	defer cancel()

	languages, err := a.Service.Languages(ctx)
	if err != nil || len(languages) == 0 {
		if err != nil {
			a.logger.Warn("fetch supported languages, using built-in list", "error", err)
		}
		return domain.BuiltinLanguages()
	}
	return languages
}
