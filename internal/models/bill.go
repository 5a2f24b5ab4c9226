package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Documents carry rates and amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Bill represents one billing period for a customer.
//
// Consumption and Amount are stored alongside the readings on purpose: they are
// computed once at creation with the rate in effect at that moment, and Rate is a
// snapshot of that value. Editing the current reading recomputes both from the
// stored PreviousReading and Rate.
type Bill struct {
	// ID is the unique identifier for the bill (UUID format).
	ID string `json:"id"`

	// CustomerID references the owning customer.
	CustomerID string `json:"customerId"`

	// PreviousReading is the current reading of the customer's prior bill, or 0.
	PreviousReading int64 `json:"previousReading"`

	// CurrentReading is always greater than PreviousReading.
	CurrentReading int64 `json:"currentReading"`

	// Consumption = CurrentReading - PreviousReading.
	Consumption int64 `json:"consumption"`

	// Rate is the unit price snapshotted from Settings.KwRate.
	Rate decimal.Decimal `json:"rate"`

	// Amount = Consumption × Rate.
	Amount decimal.Decimal `json:"amount"`

	// Date is the issue date of the bill.
	Date time.Time `json:"date"`

	// IsPaid only ever moves from false to true.
	IsPaid bool `json:"isPaid"`
}

// BillsByDateDesc orders bills newest first. Bills sharing a date keep a stable
// order by ID so listings are deterministic.
func BillsByDateDesc(a, b Bill) int {
	if c := b.Date.Compare(a.Date); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
