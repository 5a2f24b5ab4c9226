package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/meterbill/internal/models"
)

// ReadSettings retrieves the single settings row.
func (s *SQLiteStore) ReadSettings(ctx context.Context) (models.Settings, error) {
	var (
		settings models.Settings
		rate     float64
		logo     sql.NullString
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT kwRate, companyName, systemName, logo FROM settings WHERE id = 1",
	).Scan(&rate, &settings.CompanyName, &settings.SystemName, &logo)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Settings{}, models.NotFound("settings", "1")
	}
	if err != nil {
		return models.Settings{}, models.NewPersistenceError("read settings", fmt.Errorf("failed to get settings: %w", err))
	}

	settings.KwRate = decimal.NewFromFloat(rate)
	if logo.Valid {
		settings.Logo = logo.String
	}
	return settings, nil
}

// WriteSettings updates the settings row, creating it if needed.
func (s *SQLiteStore) WriteSettings(ctx context.Context, settings models.Settings) error {
	return classify("write settings", writeSettings(ctx, s.db, settings))
}

// seedSettings inserts defaults only when no settings row exists yet.
func (s *SQLiteStore) seedSettings(ctx context.Context, defaults models.Settings) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (id, kwRate, companyName, systemName, logo)
		 SELECT 1, ?, ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM settings)`,
		defaults.KwRate.InexactFloat64(), defaults.CompanyName, defaults.SystemName, nullString(defaults.Logo),
	)
	if err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}
	return nil
}

func writeSettings(ctx context.Context, db execer, settings models.Settings) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (id, kwRate, companyName, systemName, logo) VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   kwRate = excluded.kwRate,
		   companyName = excluded.companyName,
		   systemName = excluded.systemName,
		   logo = excluded.logo`,
		settings.KwRate.InexactFloat64(), settings.CompanyName, settings.SystemName, nullString(settings.Logo),
	)
	if err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
