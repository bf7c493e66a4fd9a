// Package history keeps the most-recent-first log of finished summaries and
// the user settings record.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "go-medreport-scanner/internal/errors"
	"go-medreport-scanner/internal/logger"
	"go-medreport-scanner/pkg/models"
)

// Store is the single owner of history and settings. Writes are skipped
// until Load has run; changes made before that are merged in by Load.
type Store struct {
	backend Backend
	now     func() time.Time

	mu       sync.Mutex
	loaded   bool
	entries  []models.HistoryEntry // most recent first
	settings models.Settings
	// settings changes made before Load
	pendingSettings []models.SettingsPatch
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store on top of the backend. Call Load before use.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		now:      time.Now,
		settings: models.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads settings and history from the backend. Missing, unreadable or
// corrupt records are replaced by defaults and only logged.
func (s *Store) Load(ctx context.Context) {
	settings := s.readSettings(ctx)
	stored := s.readHistory(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return
	}

	pendingEntries := len(s.entries) > 0
	pendingSettings := len(s.pendingSettings) > 0

	for _, p := range s.pendingSettings {
		settings = p.Apply(settings)
	}
	s.settings = settings
	s.pendingSettings = nil

	s.entries = mergeEntries(s.entries, stored)
	s.loaded = true

	logger.WithFields(logrus.Fields{
		"entries":  len(s.entries),
		"language": s.settings.DefaultLanguage,
	}).Info("History store loaded")

	if pendingEntries {
		if err := s.persistHistoryLocked(ctx); err != nil {
			logger.WithError(err).Warn("Failed to persist history after load")
		}
	}
	if pendingSettings {
		if err := s.persistSettingsLocked(ctx); err != nil {
			logger.WithError(err).Warn("Failed to persist settings after load")
		}
	}
}

// Loaded reports whether Load has completed
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// AddEntry prepends a new entry. The entry is kept in memory even when
// persisting fails; the error is returned for the caller to log.
func (s *Store) AddEntry(ctx context.Context, summary models.Summary) (models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := s.now().UTC()
	if len(s.entries) > 0 && !createdAt.After(s.entries[0].CreatedAt) {
		createdAt = s.entries[0].CreatedAt.Add(time.Millisecond)
	}

	entry := models.HistoryEntry{
		ID:        newID(),
		CreatedAt: createdAt,
		Summary:   summary,
	}
	s.entries = append([]models.HistoryEntry{entry}, s.entries...)

	if !s.loaded {
		return entry, nil
	}
	if err := s.persistHistoryLocked(ctx); err != nil {
		return entry, err
	}
	return entry, nil
}

// Entries returns a snapshot, most recent first
func (s *Store) Entries() []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.HistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Entry looks up one entry by id
func (s *Store) Entry(id string) (models.HistoryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return models.HistoryEntry{}, false
}

// Clear removes all entries and persists the empty log
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	if !s.loaded {
		return nil
	}
	return s.persistHistoryLocked(ctx)
}

// Settings returns the current settings record
func (s *Store) Settings() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SaveSettings merges the patch into the current record and persists it
func (s *Store) SaveSettings(ctx context.Context, patch models.SettingsPatch) (models.Settings, error) {
	if patch.DefaultLanguage != nil && !patch.DefaultLanguage.Valid() {
		return models.Settings{}, apperrors.NewValidationError("defaultLanguage must be english or hindi", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = patch.Apply(s.settings)
	if !s.loaded {
		s.pendingSettings = append(s.pendingSettings, patch)
		return s.settings, nil
	}
	if err := s.persistSettingsLocked(ctx); err != nil {
		return s.settings, err
	}
	return s.settings, nil
}

// Close releases the backend
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) persistHistoryLocked(ctx context.Context) error {
	entries := s.entries
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return apperrors.NewInternalError("failed to encode history", err)
	}
	if err := s.backend.Set(ctx, KeyHistory, data); err != nil {
		return apperrors.NewInternalError("failed to persist history", err)
	}
	return nil
}

func (s *Store) persistSettingsLocked(ctx context.Context) error {
	data, err := json.Marshal(s.settings)
	if err != nil {
		return apperrors.NewInternalError("failed to encode settings", err)
	}
	if err := s.backend.Set(ctx, KeySettings, data); err != nil {
		return apperrors.NewInternalError("failed to persist settings", err)
	}
	return nil
}

func (s *Store) readSettings(ctx context.Context) models.Settings {
	settings := models.DefaultSettings()

	data, ok := s.read(ctx, KeySettings)
	if !ok {
		return settings
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		logCorrupt(KeySettings, err)
		return models.DefaultSettings()
	}
	if !settings.DefaultLanguage.Valid() {
		logCorrupt(KeySettings, errors.New("unknown default language "+string(settings.DefaultLanguage)))
		settings.DefaultLanguage = models.DefaultSettings().DefaultLanguage
	}
	return settings
}

func (s *Store) readHistory(ctx context.Context) []models.HistoryEntry {
	data, ok := s.read(ctx, KeyHistory)
	if !ok {
		return nil
	}
	var entries []models.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		logCorrupt(KeyHistory, err)
		return nil
	}
	return entries
}

func (s *Store) read(ctx context.Context, key string) ([]byte, bool) {
	data, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false
	}
	if err != nil {
		logCorrupt(key, err)
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

func logCorrupt(key string, err error) {
	logger.WithError(apperrors.NewStorageCorruptError(key, err)).
		WithField("key", key).
		Warn("Persisted record unreadable, using defaults")
}

// mergeEntries combines entries added before load with the stored ones,
// dropping duplicate ids, most recent first.
func mergeEntries(pending, stored []models.HistoryEntry) []models.HistoryEntry {
	seen := make(map[string]bool, len(pending)+len(stored))
	out := make([]models.HistoryEntry, 0, len(pending)+len(stored))
	for _, list := range [][]models.HistoryEntry{pending, stored} {
		for _, e := range list {
			if e.ID == "" || seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
