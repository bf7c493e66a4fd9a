package models

import "time"

// HistoryEntry is one finalized summary. Entries are never mutated.
type HistoryEntry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"timestamp"`
	Summary   Summary   `json:"summary"`
}

// Settings is the single process-wide settings record
type Settings struct {
	DefaultLanguage Language `json:"defaultLanguage"`
	SaveToGallery   bool     `json:"saveToGallery"`
	DarkMode        bool     `json:"darkMode"`
}

// DefaultSettings returns the record used when nothing is persisted.
func DefaultSettings() Settings {
	return Settings{
		DefaultLanguage: English,
		SaveToGallery:   false,
		DarkMode:        false,
	}
}

// SettingsPatch carries the fields to change. Nil fields are left as they are.
type SettingsPatch struct {
	DefaultLanguage *Language `json:"defaultLanguage,omitempty"`
	SaveToGallery   *bool     `json:"saveToGallery,omitempty"`
	DarkMode        *bool     `json:"darkMode,omitempty"`
}

// Apply shallow-merges the patch onto s.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.DefaultLanguage != nil {
		s.DefaultLanguage = *p.DefaultLanguage
	}
	if p.SaveToGallery != nil {
		s.SaveToGallery = *p.SaveToGallery
	}
	if p.DarkMode != nil {
		s.DarkMode = *p.DarkMode
	}
	return s
}
