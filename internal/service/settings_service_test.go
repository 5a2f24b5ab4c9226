package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/meterbill/internal/models"
)

func TestSettingsService_LoadSeedsDefaults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.settings.Load(ctx))
	assert.True(t, h.settings.Current().KwRate.Equal(decimal.RequireFromString("0.6")))

	stored, err := h.store.ReadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ayyash Group", stored.CompanyName)
}

func TestSettingsService_LoadKeepsExisting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	custom := models.DefaultSettings()
	custom.KwRate = decimal.RequireFromString("0.75")
	custom.CompanyName = "Acme Power"
	require.NoError(t, h.store.WriteSettings(ctx, custom))

	require.NoError(t, h.settings.Load(ctx))
	assert.Equal(t, "Acme Power", h.settings.Current().CompanyName)
	assert.True(t, h.settings.Current().KwRate.Equal(decimal.RequireFromString("0.75")))
}

func TestSettingsService_LoadFailureKeepsDefaults(t *testing.T) {
	h := newHarness(t)
	h.store.fail["read settings"] = true

	err := h.settings.Load(context.Background())
	require.ErrorIs(t, err, models.ErrPersistence)
	assert.Equal(t, models.DefaultSettings().CompanyName, h.settings.Current().CompanyName)
}

func TestSettingsService_Update(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.Settings)
		wantField string
	}{
		{
			name:   "valid",
			mutate: func(s *models.Settings) { s.KwRate = decimal.RequireFromString("0.8") },
		},
		{
			name:      "zero rate",
			mutate:    func(s *models.Settings) { s.KwRate = decimal.Zero },
			wantField: "kwRate",
		},
		{
			name:      "negative rate",
			mutate:    func(s *models.Settings) { s.KwRate = decimal.RequireFromString("-1") },
			wantField: "kwRate",
		},
		{
			name:      "blank company name",
			mutate:    func(s *models.Settings) { s.CompanyName = "   " },
			wantField: "companyName",
		},
		{
			name:      "missing system name",
			mutate:    func(s *models.Settings) { s.SystemName = "" },
			wantField: "systemName",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			require.NoError(t, h.settings.Load(ctx))

			next := h.settings.Current()
			tt.mutate(&next)

			updated, err := h.settings.Update(ctx, next)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.True(t, updated.KwRate.Equal(h.settings.Current().KwRate))
				return
			}

			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Equal(t, models.DefaultSettings(), h.settings.Current())
		})
	}
}

func TestSettingsService_UpdateWriteFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.settings.Load(ctx))

	h.store.fail["write settings"] = true
	next := h.settings.Current()
	next.CompanyName = "Changed"

	_, err := h.settings.Update(ctx, next)
	require.ErrorIs(t, err, models.ErrPersistence)
	assert.Equal(t, "Ayyash Group", h.settings.Current().CompanyName)
}
