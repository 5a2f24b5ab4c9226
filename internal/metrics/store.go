package metrics

import (
	"context"
	"time"

	"github.com/mmynk/meterbill/internal/models"
	"github.com/mmynk/meterbill/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store records every call to the wrapped store.
type Store struct {
	next       storage.Store
	backend    string
	collectors *Collectors
}

// Instrument wraps next. backend labels the recorded series.
func Instrument(next storage.Store, backend string, collectors *Collectors) *Store {
	return &Store{next: next, backend: backend, collectors: collectors}
}

// Unwrap returns the wrapped store.
func (s *Store) Unwrap() storage.Store {
	return s.next
}

func (s *Store) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	start := time.Now()
	v, err := s.next.ListCustomers(ctx)
	s.collectors.observe(s.backend, "list_customers", start, err)
	return v, err
}

func (s *Store) InsertCustomer(ctx context.Context, customer models.Customer) error {
	start := time.Now()
	err := s.next.InsertCustomer(ctx, customer)
	s.collectors.observe(s.backend, "insert_customer", start, err)
	return err
}

func (s *Store) UpdateCustomer(ctx context.Context, customer models.Customer) error {
	start := time.Now()
	err := s.next.UpdateCustomer(ctx, customer)
	s.collectors.observe(s.backend, "update_customer", start, err)
	return err
}

func (s *Store) RemoveCustomer(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.RemoveCustomer(ctx, id)
	s.collectors.observe(s.backend, "remove_customer", start, err)
	return err
}

func (s *Store) ListBills(ctx context.Context) ([]models.Bill, error) {
	start := time.Now()
	v, err := s.next.ListBills(ctx)
	s.collectors.observe(s.backend, "list_bills", start, err)
	return v, err
}

func (s *Store) InsertBill(ctx context.Context, bill models.Bill) error {
	start := time.Now()
	err := s.next.InsertBill(ctx, bill)
	s.collectors.observe(s.backend, "insert_bill", start, err)
	return err
}

func (s *Store) UpdateBill(ctx context.Context, bill models.Bill) error {
	start := time.Now()
	err := s.next.UpdateBill(ctx, bill)
	s.collectors.observe(s.backend, "update_bill", start, err)
	return err
}

func (s *Store) RemoveBill(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.RemoveBill(ctx, id)
	s.collectors.observe(s.backend, "remove_bill", start, err)
	return err
}

func (s *Store) RemoveBillsForCustomer(ctx context.Context, customerID string) error {
	start := time.Now()
	err := s.next.RemoveBillsForCustomer(ctx, customerID)
	s.collectors.observe(s.backend, "remove_customer_bills", start, err)
	return err
}

func (s *Store) SetBillPaid(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.SetBillPaid(ctx, id)
	s.collectors.observe(s.backend, "set_bill_paid", start, err)
	return err
}

func (s *Store) ReadSettings(ctx context.Context) (models.Settings, error) {
	start := time.Now()
	v, err := s.next.ReadSettings(ctx)
	s.collectors.observe(s.backend, "read_settings", start, err)
	return v, err
}

func (s *Store) WriteSettings(ctx context.Context, settings models.Settings) error {
	start := time.Now()
	err := s.next.WriteSettings(ctx, settings)
	s.collectors.observe(s.backend, "write_settings", start, err)
	return err
}

func (s *Store) ReplaceAll(ctx context.Context, snapshot models.Snapshot) error {
	start := time.Now()
	err := s.next.ReplaceAll(ctx, snapshot)
	s.collectors.observe(s.backend, "replace_all", start, err)
	return err
}

func (s *Store) Close() error {
	return s.next.Close()
}
