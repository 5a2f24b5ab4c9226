package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mmynk/meterbill/internal/models"
	"github.com/mmynk/meterbill/internal/storage"
	"github.com/mmynk/meterbill/internal/storage/kv"
)

var errDiskFull = errors.New("disk full")

// flakyStore fails the named operations with a persistence error.
type flakyStore struct {
	storage.Store
	fail map[string]bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: kv.New(kv.NewMemoryBackend()), fail: map[string]bool{}}
}

func (s *flakyStore) err(op string) error {
	if s.fail[op] {
		return models.NewPersistenceError(op, errDiskFull)
	}
	return nil
}

func (s *flakyStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	if err := s.err("list customers"); err != nil {
		return nil, err
	}
	return s.Store.ListCustomers(ctx)
}

func (s *flakyStore) InsertCustomer(ctx context.Context, c models.Customer) error {
	if err := s.err("insert customer"); err != nil {
		return err
	}
	return s.Store.InsertCustomer(ctx, c)
}

func (s *flakyStore) RemoveCustomer(ctx context.Context, id string) error {
	if err := s.err("remove customer"); err != nil {
		return err
	}
	return s.Store.RemoveCustomer(ctx, id)
}

func (s *flakyStore) InsertBill(ctx context.Context, b models.Bill) error {
	if err := s.err("insert bill"); err != nil {
		return err
	}
	return s.Store.InsertBill(ctx, b)
}

func (s *flakyStore) SetBillPaid(ctx context.Context, id string) error {
	if err := s.err("set bill paid"); err != nil {
		return err
	}
	return s.Store.SetBillPaid(ctx, id)
}

func (s *flakyStore) RemoveBillsForCustomer(ctx context.Context, customerID string) error {
	if err := s.err("remove customer bills"); err != nil {
		return err
	}
	return s.Store.RemoveBillsForCustomer(ctx, customerID)
}

func (s *flakyStore) ReadSettings(ctx context.Context) (models.Settings, error) {
	if err := s.err("read settings"); err != nil {
		return models.Settings{}, err
	}
	return s.Store.ReadSettings(ctx)
}

func (s *flakyStore) WriteSettings(ctx context.Context, settings models.Settings) error {
	if err := s.err("write settings"); err != nil {
		return err
	}
	return s.Store.WriteSettings(ctx, settings)
}

// testOptions pins the clock to start and numbers IDs sequentially.
func testOptions(start time.Time) []Option {
	n := 0
	return []Option{
		WithClock(func() time.Time { return start }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%03d", n)
		}),
	}
}

type harness struct {
	store    *flakyStore
	registry *CustomerRegistry
	ledger   *BillLedger
	settings *SettingsService
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store: newFlakyStore(),
		now:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	opts := testOptions(h.now)
	h.ledger = NewBillLedger(h.store, CustomerLookupFunc(func(id string) (models.Customer, bool) {
		return h.registry.Find(id)
	}), opts...)
	h.registry = NewCustomerRegistry(h.store, h.ledger, opts...)
	h.settings = NewSettingsService(h.store, models.DefaultSettings())
	return h
}
