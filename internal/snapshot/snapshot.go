// Package snapshot encodes and decodes the full-state JSON document used for
// export, import and backups.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/mmynk/meterbill/internal/models"
	"github.com/mmynk/meterbill/internal/storage"
)

// amountTolerance absorbs float rounding in documents written by older clients.
var amountTolerance = decimal.RequireFromString("0.005")

// Capture reads all three collections from store.
func Capture(ctx context.Context, store storage.Store) (models.Snapshot, error) {
	customers, err := store.ListCustomers(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}
	bills, err := store.ListBills(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}
	settings, err := store.ReadSettings(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}
	return models.Snapshot{
		Customers: nonNil(customers),
		Bills:     nonNil(bills),
		Settings:  settings,
	}, nil
}

// Encode writes snap as indented JSON.
func Encode(w io.Writer, snap models.Snapshot) error {
	snap.Customers = nonNil(snap.Customers)
	snap.Bills = nonNil(snap.Bills)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// Decode reads a snapshot document and checks it before anything is replaced.
// The customers, bills and settings members must all be present. Amounts that
// are off by float rounding are normalised to consumption × rate.
func Decode(r io.Reader) (models.Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return models.Snapshot{}, models.NewValidationError("", "document is not valid JSON")
	}

	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return models.Snapshot{}, models.NewValidationError("", "document must be an object")
	}
	for _, member := range []string{"customers", "bills"} {
		if v := doc.Get(member); !v.Exists() || !v.IsArray() {
			return models.Snapshot{}, models.NewValidationError(member, "missing or not a list")
		}
	}
	if v := doc.Get("settings"); !v.Exists() || !v.IsObject() {
		return models.Snapshot{}, models.NewValidationError("settings", "missing or not an object")
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.Snapshot{}, models.NewValidationError("", err.Error())
	}
	if err := Validate(&snap); err != nil {
		return models.Snapshot{}, err
	}
	return snap, nil
}

// Validate checks the integrity of a snapshot: unique identifiers and meter
// numbers, bills that reference existing customers with consistent readings,
// and usable settings. Timestamps are normalised to UTC.
func Validate(snap *models.Snapshot) error {
	customerIDs := make(map[string]bool, len(snap.Customers))
	meters := make(map[string]bool, len(snap.Customers))
	for i := range snap.Customers {
		c := &snap.Customers[i]
		switch {
		case c.ID == "":
			return models.NewValidationError("customers", fmt.Sprintf("customer %d has no id", i))
		case customerIDs[c.ID]:
			return models.NewValidationError("customers", "duplicate customer id "+c.ID)
		case c.Name == "":
			return models.NewValidationError("customers", "customer "+c.ID+" has no name")
		case c.MeterNumber == "":
			return models.NewValidationError("customers", "customer "+c.ID+" has no meter number")
		case meters[c.MeterNumber]:
			return models.NewValidationError("customers", "duplicate meter number "+c.MeterNumber)
		}
		customerIDs[c.ID] = true
		meters[c.MeterNumber] = true
		c.CreatedAt = c.CreatedAt.UTC()
	}

	billIDs := make(map[string]bool, len(snap.Bills))
	for i := range snap.Bills {
		b := &snap.Bills[i]
		switch {
		case b.ID == "":
			return models.NewValidationError("bills", fmt.Sprintf("bill %d has no id", i))
		case billIDs[b.ID]:
			return models.NewValidationError("bills", "duplicate bill id "+b.ID)
		case !customerIDs[b.CustomerID]:
			return models.NewValidationError("bills", "bill "+b.ID+" references unknown customer "+b.CustomerID)
		case b.PreviousReading < 0 || b.CurrentReading <= b.PreviousReading:
			return models.NewValidationError("bills", "bill "+b.ID+" has inconsistent readings")
		case b.Consumption != b.CurrentReading-b.PreviousReading:
			return models.NewValidationError("bills", "bill "+b.ID+" consumption does not match its readings")
		case !b.Rate.IsPositive():
			return models.NewValidationError("bills", "bill "+b.ID+" has no positive rate")
		}

		want := decimal.NewFromInt(b.Consumption).Mul(b.Rate)
		if b.Amount.Sub(want).Abs().GreaterThan(amountTolerance) {
			return models.NewValidationError("bills", "bill "+b.ID+" amount does not match consumption × rate")
		}
		b.Amount = want
		b.Date = b.Date.UTC()
		billIDs[b.ID] = true
	}
	slices.SortStableFunc(snap.Bills, models.BillsByDateDesc)

	s := snap.Settings
	switch {
	case !s.KwRate.IsPositive():
		return models.NewValidationError("settings", "kwRate must be greater than 0")
	case s.CompanyName == "":
		return models.NewValidationError("settings", "companyName is required")
	case s.SystemName == "":
		return models.NewValidationError("settings", "systemName is required")
	}

	snap.Customers = nonNil(snap.Customers)
	snap.Bills = nonNil(snap.Bills)
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
