// Package app composes the domain services into the application state used by
// presentation code. One State is constructed per process and passed to every
// consumer.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmynk/meterbill/internal/calculator"
	"github.com/mmynk/meterbill/internal/models"
	"github.com/mmynk/meterbill/internal/service"
	"github.com/mmynk/meterbill/internal/snapshot"
	"github.com/mmynk/meterbill/internal/storage"
)

// State is the application state facade. Operations that span services run
// under one lock so presentation code always observes a consistent view.
type State struct {
	store     storage.Store
	settings  *service.SettingsService
	customers *service.CustomerRegistry
	bills     *service.BillLedger

	mu      sync.Mutex
	loading atomic.Bool
	ready   atomic.Bool
}

// New wires the services over store. Nothing is read until Load.
func New(store storage.Store, defaults models.Settings, opts ...service.Option) *State {
	s := &State{
		store:    store,
		settings: service.NewSettingsService(store, defaults),
	}
	s.bills = service.NewBillLedger(store, service.CustomerLookupFunc(func(id string) (models.Customer, bool) {
		return s.customers.Find(id)
	}), opts...)
	s.customers = service.NewCustomerRegistry(store, s.bills, opts...)
	return s
}

// Load reads settings, customers and bills. Failures keep the previous state
// of the affected collection and are returned joined as a warning; the state
// is ready afterwards either way.
func (s *State) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading.Store(true)
	defer s.loading.Store(false)

	err := errors.Join(
		s.settings.Load(ctx),
		s.customers.Load(ctx),
		s.bills.Load(ctx),
	)
	s.ready.Store(true)

	if err != nil {
		slog.Warn("Loaded with stale data", "error", err)
		return err
	}
	slog.Info("State loaded",
		"customers", len(s.customers.List()),
		"bills", len(s.bills.List()),
	)
	return nil
}

// IsLoading reports whether a Load is in progress.
func (s *State) IsLoading() bool {
	return s.loading.Load()
}

// Ready reports whether a Load has completed at least once.
func (s *State) Ready() bool {
	return s.ready.Load()
}

func (s *State) Customers() []models.Customer {
	return s.customers.List()
}

func (s *State) Bills() []models.Bill {
	return s.bills.List()
}

func (s *State) Settings() models.Settings {
	return s.settings.Current()
}

func (s *State) FindCustomer(id string) (models.Customer, bool) {
	return s.customers.Find(id)
}

func (s *State) AddCustomer(ctx context.Context, input models.CustomerInput) (models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customers.Add(ctx, input)
}

func (s *State) UpdateCustomer(ctx context.Context, customer models.Customer) (models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customers.Update(ctx, customer)
}

// RemoveCustomer deletes a customer and, before that, all of its bills. The
// call returns only after both are done.
func (s *State) RemoveCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customers.Remove(ctx, id)
}

// AddBill issues a bill at the current unit rate. A zero date means now.
func (s *State) AddBill(ctx context.Context, customerID string, currentReading int64, date time.Time) (models.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bills.Add(ctx, customerID, currentReading, s.settings.Current().KwRate, date)
}

func (s *State) MarkBillPaid(ctx context.Context, id string) (models.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bills.MarkPaid(ctx, id)
}

// UpdateBillReading corrects the current reading of a customer's latest bill.
// The bill keeps the rate it was issued with.
func (s *State) UpdateBillReading(ctx context.Context, id string, currentReading int64) (models.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bills.Update(ctx, id, currentReading)
}

func (s *State) RemoveBill(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bills.Remove(ctx, id)
}

func (s *State) CustomerBills(customerID string) []models.Bill {
	return s.bills.BillsFor(customerID)
}

func (s *State) UnpaidBills() []models.Bill {
	return s.bills.Unpaid()
}

// PreviousReading is the reading a new bill for the customer would start
// from, and the earliest date it may carry. ok is false when the customer has
// no bills yet.
func (s *State) PreviousReading(customerID string) (reading int64, lastDate time.Time, ok bool) {
	return s.bills.PreviousReadingFor(customerID)
}

// CustomerBalance summarises what a customer has been billed and still owes.
func (s *State) CustomerBalance(customerID string) (calculator.CustomerBalance, error) {
	if _, ok := s.customers.Find(customerID); !ok {
		return calculator.CustomerBalance{}, models.NotFound("customer", customerID)
	}
	return calculator.CalculateBalance(customerID, s.bills.BillsFor(customerID)), nil
}

func (s *State) UpdateSettings(ctx context.Context, settings models.Settings) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Update(ctx, settings)
}

// Snapshot returns a copy of the in-memory state.
func (s *State) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Snapshot{
		Customers: s.customers.List(),
		Bills:     s.bills.List(),
		Settings:  s.settings.Current(),
	}
}

// Export writes the current state as a snapshot document.
func (s *State) Export(w io.Writer) error {
	return snapshot.Encode(w, s.Snapshot())
}

// Import replaces all data with the contents of a snapshot document. The
// document is checked completely before anything is written; afterwards the
// state is reloaded from the store.
func (s *State) Import(ctx context.Context, r io.Reader) error {
	snap, err := snapshot.Decode(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.ReplaceAll(ctx, snap); err != nil {
		slog.Warn("Failed to import snapshot", "error", err)
		return err
	}

	if err := errors.Join(
		s.settings.Load(ctx),
		s.customers.Load(ctx),
		s.bills.Load(ctx),
	); err != nil {
		return fmt.Errorf("imported but failed to reload: %w", err)
	}

	slog.Info("Snapshot imported", "customers", len(snap.Customers), "bills", len(snap.Bills))
	return nil
}

// Close releases the store.
func (s *State) Close() error {
	return s.store.Close()
}
