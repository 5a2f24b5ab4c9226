package models

import "github.com/shopspring/decimal"

// Settings is the singleton configuration record. Exactly one exists per store;
// it is seeded with defaults on first run and afterwards only updated.
type Settings struct {
	// KwRate is the price per consumed unit. Must be positive.
	KwRate decimal.Decimal `json:"kwRate" validate:"gt=0"`

	CompanyName string `json:"companyName" validate:"required"`
	SystemName  string `json:"systemName" validate:"required"`

	// Logo is an optional base64 encoded image (data URL).
	Logo string `json:"logo,omitempty"`
}

// DefaultSettings returns the settings used when a store has none yet.
func DefaultSettings() Settings {
	return Settings{
		KwRate:      decimal.RequireFromString("0.6"),
		CompanyName: "Ayyash Group",
		SystemName:  "Electricity Bill Management System",
	}
}

// Snapshot is a full copy of all persisted state, used for export, import and backups.
type Snapshot struct {
	Customers []Customer `json:"customers"`
	Bills     []Bill     `json:"bills"`
	Settings  Settings   `json:"settings"`
}
