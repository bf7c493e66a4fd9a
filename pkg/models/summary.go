package models

import (
	"fmt"
	"strings"
)

// Language selects one half of a bilingual summary
type Language string

const (
	English Language = "english"
	Hindi   Language = "hindi"
)

// ParseLanguage accepts "english"/"hindi" and the short codes "en"/"hi".
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "english", "en":
		return English, nil
	case "hindi", "hi":
		return Hindi, nil
	default:
		return "", fmt.Errorf("unknown language %q", s)
	}
}

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	return l == English || l == Hindi
}

// Summary is the bilingual text returned by the summary backend. The JSON
// field names match the backend contract.
type Summary struct {
	English string `json:"English Summary"`
	Hindi   string `json:"Hindi Summary"`
}

// Text returns the summary in the requested language, English otherwise.
func (s Summary) Text(lang Language) string {
	if lang == Hindi {
		return s.Hindi
	}
	return s.English
}

// IsZero reports whether both halves are empty.
func (s Summary) IsZero() bool {
	return s.English == "" && s.Hindi == ""
}
