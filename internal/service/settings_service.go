package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/mmynk/meterbill/internal/models"
	"github.com/mmynk/meterbill/internal/storage"
)

// SettingsService owns the settings singleton.
type SettingsService struct {
	store    storage.Store
	defaults models.Settings

	mu      sync.RWMutex
	current models.Settings
}

// NewSettingsService creates a settings service. Until Load succeeds the
// defaults are in effect.
func NewSettingsService(store storage.Store, defaults models.Settings) *SettingsService {
	return &SettingsService{
		store:    store,
		defaults: defaults,
		current:  defaults,
	}
}

// Load reads the persisted settings. When none exist yet the defaults are
// written once. On a persistence failure the in-memory value is kept and the
// error is returned as a warning.
func (s *SettingsService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.store.ReadSettings(ctx)
	switch {
	case err == nil:
		s.current = settings
		return nil
	case errors.Is(err, models.ErrNotFound):
		if err := s.store.WriteSettings(ctx, s.defaults); err != nil {
			slog.Warn("Failed to seed default settings", "error", err)
			return err
		}
		slog.Info("Seeded default settings")
		s.current = s.defaults
		return nil
	default:
		slog.Warn("Failed to load settings, keeping current values", "error", err)
		return err
	}
}

// Current returns the settings in effect.
func (s *SettingsService) Current() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update validates and stores new settings.
func (s *SettingsService) Update(ctx context.Context, settings models.Settings) (models.Settings, error) {
	settings.CompanyName = strings.TrimSpace(settings.CompanyName)
	settings.SystemName = strings.TrimSpace(settings.SystemName)
	if err := validateStruct(settings); err != nil {
		return models.Settings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.WriteSettings(ctx, settings); err != nil {
		slog.Warn("Failed to write settings", "error", err)
		return models.Settings{}, err
	}
	s.current = settings

	slog.Info("Settings updated", "kw_rate", settings.KwRate.String())
	return settings, nil
}
