package jobs

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/kkdai/youtube/v2"

	"media-translator/internal/domain"
)

var (
	ErrMissingMedia          = errors.New("media url or uploaded file is required")
	ErrAmbiguousMedia        = errors.New("provide either a media url or an uploaded file, not both")
	ErrInvalidMediaURL       = errors.New("invalid media url")
	ErrMissingTargetLanguage = errors.New("target language is required")
	ErrSameLanguage          = errors.New("target language must differ from source language")
	ErrAutoTargetLanguage    = errors.New("target language cannot be auto")
)

var youtubeHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
}

// ValidateRequest normalizes req and checks it before submission.
func ValidateRequest(req domain.JobRequest) (domain.JobRequest, error) {
	req.MediaURL = strings.TrimSpace(req.MediaURL)
	req.UploadHandle = strings.TrimSpace(req.UploadHandle)

	switch {
	case req.MediaURL == "" && req.UploadHandle == "":
		return req, ErrMissingMedia
	case req.MediaURL != "" && req.UploadHandle != "":
		return req, ErrAmbiguousMedia
	}

	if req.MediaURL != "" {
		if err := validateMediaURL(req.MediaURL); err != nil {
			return req, err
		}
	}
	return ValidateLanguages(req)
}

// ValidateLanguages normalizes only the language pair of req. Uploads run it
// before sending any bytes.
func ValidateLanguages(req domain.JobRequest) (domain.JobRequest, error) {
	req.SourceLanguage = domain.NormalizeLanguage(req.SourceLanguage)
	req.TargetLanguage = domain.NormalizeLanguage(req.TargetLanguage)
	if req.SourceLanguage == "" {
		req.SourceLanguage = domain.SourceLanguageAuto
	}

	switch {
	case req.TargetLanguage == "":
		return req, ErrMissingTargetLanguage
	case req.TargetLanguage == domain.SourceLanguageAuto:
		return req, ErrAutoTargetLanguage
	case req.SourceLanguage != domain.SourceLanguageAuto && req.SourceLanguage == req.TargetLanguage:
		return req, ErrSameLanguage
	}
	return req, nil
}

func validateMediaURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMediaURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidMediaURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidMediaURL)
	}

	if youtubeHosts[strings.ToLower(parsed.Hostname())] {
		if _, err := youtube.ExtractVideoID(raw); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMediaURL, err)
		}
	}
	return nil
}
