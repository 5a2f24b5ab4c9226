// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/mmynk/meterbill/internal/models"
)

// Store defines the storage port shared by every backend.
// Domain services depend only on this interface and never learn which
// backend is active.
//
// All I/O failures are returned as *models.PersistenceError. Update and
// delete operations on an absent id return an error wrapping models.ErrNotFound.
// List operations return an empty slice when nothing is stored.
type Store interface {
	// ListCustomers returns all customers ordered by name.
	ListCustomers(ctx context.Context) ([]models.Customer, error)

	// InsertCustomer persists a new customer. A duplicate meter number is
	// rejected with a *models.ValidationError.
	InsertCustomer(ctx context.Context, customer models.Customer) error

	// UpdateCustomer replaces name, address and meter number of an existing customer.
	UpdateCustomer(ctx context.Context, customer models.Customer) error

	// RemoveCustomer deletes a customer by ID together with all of its bills,
	// atomically.
	RemoveCustomer(ctx context.Context, id string) error

	// ListBills returns all bills ordered by date, newest first.
	ListBills(ctx context.Context) ([]models.Bill, error)

	// InsertBill persists a new bill.
	InsertBill(ctx context.Context, bill models.Bill) error

	// UpdateBill replaces an existing bill.
	UpdateBill(ctx context.Context, bill models.Bill) error

	// RemoveBill deletes a bill by ID.
	RemoveBill(ctx context.Context, id string) error

	// RemoveBillsForCustomer deletes every bill of a customer in one write.
	// Removing zero bills is not an error.
	RemoveBillsForCustomer(ctx context.Context, customerID string) error

	// SetBillPaid marks a bill as paid. Marking a paid bill again succeeds.
	SetBillPaid(ctx context.Context, id string) error

	// ReadSettings returns the settings record, or an error wrapping
	// models.ErrNotFound if none has been written yet.
	ReadSettings(ctx context.Context) (models.Settings, error)

	// WriteSettings stores the settings record.
	WriteSettings(ctx context.Context, settings models.Settings) error

	// ReplaceAll swaps all three collections for the snapshot contents.
	ReplaceAll(ctx context.Context, snapshot models.Snapshot) error

	// Close releases any resources held by the store.
	Close() error
}
