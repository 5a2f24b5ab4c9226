package kv

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/mmynk/meterbill/internal/models"
	"github.com/mmynk/meterbill/internal/storage"
)

// Fixed document keys, shared with the export file layout.
const (
	KeyCustomers = "customers"
	KeyBills     = "bills"
	KeySettings  = "settings"
)

// Ensure KVStore implements storage.Store
var _ storage.Store = (*KVStore)(nil)

// KVStore implements storage.Store on top of a Backend.
// Every mutation reads the affected collection, changes it in memory and
// writes the whole document back.
type KVStore struct {
	backend Backend
	mu      sync.Mutex
}

// New creates a KVStore over backend.
func New(backend Backend) *KVStore {
	return &KVStore{backend: backend}
}

// Close closes the backend.
func (s *KVStore) Close() error {
	return s.backend.Close()
}

// ListCustomers returns all customers ordered by name.
func (s *KVStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.loadCustomers(ctx)
	if err != nil {
		return nil, models.NewPersistenceError("list customers", err)
	}
	sortCustomers(customers)
	return customers, nil
}

// InsertCustomer appends a customer, rejecting duplicate IDs and meter numbers.
func (s *KVStore) InsertCustomer(ctx context.Context, customer models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.loadCustomers(ctx)
	if err != nil {
		return models.NewPersistenceError("insert customer", err)
	}
	for _, c := range customers {
		if c.ID == customer.ID {
			return models.NewValidationError("id", "record already exists")
		}
		if c.MeterNumber == customer.MeterNumber {
			return models.NewValidationError("meterNumber", "meter number already in use")
		}
	}

	customers = append(customers, customer)
	return models.NewPersistenceError("insert customer", s.put(ctx, KeyCustomers, customers))
}

// UpdateCustomer replaces name, address and meter number of an existing customer.
func (s *KVStore) UpdateCustomer(ctx context.Context, customer models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.loadCustomers(ctx)
	if err != nil {
		return models.NewPersistenceError("update customer", err)
	}

	idx := -1
	for i, c := range customers {
		if c.ID == customer.ID {
			idx = i
			continue
		}
		if c.MeterNumber == customer.MeterNumber {
			return models.NewValidationError("meterNumber", "meter number already in use")
		}
	}
	if idx < 0 {
		return models.NotFound("customer", customer.ID)
	}

	existing := customers[idx]
	existing.Name = customer.Name
	existing.Address = customer.Address
	existing.MeterNumber = customer.MeterNumber
	customers[idx] = existing

	return models.NewPersistenceError("update customer", s.put(ctx, KeyCustomers, customers))
}

// RemoveCustomer deletes a customer and any bills still referencing it, in
// one batch, matching the cascade of the structured schema.
func (s *KVStore) RemoveCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.loadCustomers(ctx)
	if err != nil {
		return models.NewPersistenceError("remove customer", err)
	}
	bills, err := s.loadBills(ctx)
	if err != nil {
		return models.NewPersistenceError("remove customer", err)
	}

	before := len(customers)
	customers = slices.DeleteFunc(customers, func(c models.Customer) bool { return c.ID == id })
	if len(customers) == before {
		return models.NotFound("customer", id)
	}
	bills = slices.DeleteFunc(bills, func(b models.Bill) bool { return b.CustomerID == id })

	return models.NewPersistenceError("remove customer", s.putAll(ctx, map[string]any{
		KeyCustomers: customers,
		KeyBills:     bills,
	}))
}

// ListBills returns all bills, newest first.
func (s *KVStore) ListBills(ctx context.Context) ([]models.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bills, err := s.loadBills(ctx)
	if err != nil {
		return nil, models.NewPersistenceError("list bills", err)
	}
	slices.SortStableFunc(bills, models.BillsByDateDesc)
	return bills, nil
}

// InsertBill appends a bill. The owning customer must exist.
func (s *KVStore) InsertBill(ctx context.Context, bill models.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.loadCustomers(ctx)
	if err != nil {
		return models.NewPersistenceError("insert bill", err)
	}
	if !slices.ContainsFunc(customers, func(c models.Customer) bool { return c.ID == bill.CustomerID }) {
		return models.NewValidationError("customerId", "customer does not exist")
	}

	bills, err := s.loadBills(ctx)
	if err != nil {
		return models.NewPersistenceError("insert bill", err)
	}
	if slices.ContainsFunc(bills, func(b models.Bill) bool { return b.ID == bill.ID }) {
		return models.NewValidationError("id", "record already exists")
	}

	bills = append(bills, bill)
	return models.NewPersistenceError("insert bill", s.put(ctx, KeyBills, bills))
}

// UpdateBill replaces an existing bill.
func (s *KVStore) UpdateBill(ctx context.Context, bill models.Bill) error {
	return s.mutateBill(ctx, "update bill", bill.ID, func(b *models.Bill) {
		*b = bill
	})
}

// SetBillPaid marks a bill as paid.
func (s *KVStore) SetBillPaid(ctx context.Context, id string) error {
	return s.mutateBill(ctx, "set bill paid", id, func(b *models.Bill) {
		b.IsPaid = true
	})
}

// RemoveBill deletes a bill by ID.
func (s *KVStore) RemoveBill(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bills, err := s.loadBills(ctx)
	if err != nil {
		return models.NewPersistenceError("remove bill", err)
	}
	before := len(bills)
	bills = slices.DeleteFunc(bills, func(b models.Bill) bool { return b.ID == id })
	if len(bills) == before {
		return models.NotFound("bill", id)
	}
	return models.NewPersistenceError("remove bill", s.put(ctx, KeyBills, bills))
}

// RemoveBillsForCustomer deletes every bill of a customer with a single
// document write.
func (s *KVStore) RemoveBillsForCustomer(ctx context.Context, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bills, err := s.loadBills(ctx)
	if err != nil {
		return models.NewPersistenceError("remove customer bills", err)
	}
	before := len(bills)
	bills = slices.DeleteFunc(bills, func(b models.Bill) bool { return b.CustomerID == customerID })
	if len(bills) == before {
		return nil
	}
	return models.NewPersistenceError("remove customer bills", s.put(ctx, KeyBills, bills))
}

// ReadSettings returns the stored settings document.
func (s *KVStore) ReadSettings(ctx context.Context) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var settings models.Settings
	ok, err := s.load(ctx, KeySettings, &settings)
	if err != nil {
		return models.Settings{}, models.NewPersistenceError("read settings", err)
	}
	if !ok {
		return models.Settings{}, models.NotFound("settings", KeySettings)
	}
	return settings, nil
}

// WriteSettings replaces the settings document.
func (s *KVStore) WriteSettings(ctx context.Context, settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.NewPersistenceError("write settings", s.put(ctx, KeySettings, settings))
}

// ReplaceAll overwrites all three documents in one backend batch.
func (s *KVStore) ReplaceAll(ctx context.Context, snapshot models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers := snapshot.Customers
	if customers == nil {
		customers = []models.Customer{}
	}
	bills := snapshot.Bills
	if bills == nil {
		bills = []models.Bill{}
	}

	return models.NewPersistenceError("replace all", s.putAll(ctx, map[string]any{
		KeyCustomers: customers,
		KeyBills:     bills,
		KeySettings:  snapshot.Settings,
	}))
}

func (s *KVStore) mutateBill(ctx context.Context, op, id string, mutate func(*models.Bill)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bills, err := s.loadBills(ctx)
	if err != nil {
		return models.NewPersistenceError(op, err)
	}
	idx := slices.IndexFunc(bills, func(b models.Bill) bool { return b.ID == id })
	if idx < 0 {
		return models.NotFound("bill", id)
	}
	mutate(&bills[idx])
	return models.NewPersistenceError(op, s.put(ctx, KeyBills, bills))
}

func (s *KVStore) loadCustomers(ctx context.Context) ([]models.Customer, error) {
	customers := []models.Customer{}
	if _, err := s.load(ctx, KeyCustomers, &customers); err != nil {
		return nil, err
	}
	for i := range customers {
		customers[i].CreatedAt = customers[i].CreatedAt.UTC()
	}
	return customers, nil
}

func (s *KVStore) loadBills(ctx context.Context) ([]models.Bill, error) {
	bills := []models.Bill{}
	if _, err := s.load(ctx, KeyBills, &bills); err != nil {
		return nil, err
	}
	for i := range bills {
		bills[i].Date = bills[i].Date.UTC()
	}
	return bills, nil
}

// load decodes the document under key into dst. Dates come back as
// time.Time because the models decode RFC 3339 strings.
func (s *KVStore) load(ctx context.Context, key string, dst any) (bool, error) {
	data, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok || len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *KVStore) put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.backend.Put(ctx, key, data)
}

func (s *KVStore) putAll(ctx context.Context, values map[string]any) error {
	encoded := make(map[string][]byte, len(values))
	for key, value := range values {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", key, err)
		}
		encoded[key] = data
	}
	return s.backend.PutAll(ctx, encoded)
}

func sortCustomers(customers []models.Customer) {
	slices.SortStableFunc(customers, func(a, b models.Customer) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
