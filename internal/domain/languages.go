package domain

import "strings"

// Language is one entry of the supported-language catalog.
type Language struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Native string `json:"native,omitempty"`
}

var builtinLanguages = []Language{
	{Code: "en", Name: "English", Native: "English"},
	{Code: "th", Name: "Thai", Native: "ไทย"},
	{Code: "zh", Name: "Chinese", Native: "中文"},
	{Code: "ja", Name: "Japanese", Native: "日本語"},
	{Code: "ko", Name: "Korean", Native: "한국어"},
	{Code: "es", Name: "Spanish", Native: "Español"},
	{Code: "fr", Name: "French", Native: "Français"},
	{Code: "de", Name: "German", Native: "Deutsch"},
	{Code: "vi", Name: "Vietnamese", Native: "Tiếng Việt"},
	{Code: "id", Name: "Indonesian", Native: "Bahasa Indonesia"},
}

// BuiltinLanguages returns the catalog used when the service list is unreachable.
func BuiltinLanguages() []Language {
	out := make([]Language, len(builtinLanguages))
	copy(out, builtinLanguages)
	return out
}

// NormalizeLanguage lower-cases and trims a language code.
func NormalizeLanguage(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
