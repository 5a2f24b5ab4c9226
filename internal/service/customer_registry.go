package service

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/mmynk/meterbill/internal/models"
	"github.com/mmynk/meterbill/internal/storage"
)

// BillCascader drops a removed customer's bills from memory. The store
// deletes them together with the customer.
type BillCascader interface {
	ForgetCustomer(customerID string) int
}

// CustomerRegistry owns the customer collection.
type CustomerRegistry struct {
	store storage.Store
	bills BillCascader
	opts  options

	mu        sync.RWMutex
	customers []models.Customer
}

// NewCustomerRegistry creates a registry. The collection is empty until Load.
func NewCustomerRegistry(store storage.Store, bills BillCascader, opts ...Option) *CustomerRegistry {
	return &CustomerRegistry{
		store: store,
		bills: bills,
		opts:  buildOptions(opts),
	}
}

// Load replaces the in-memory collection with the stored customers. On failure
// the previous collection is kept.
func (r *CustomerRegistry) Load(ctx context.Context) error {
	customers, err := r.store.ListCustomers(ctx)
	if err != nil {
		slog.Warn("Failed to load customers", "error", err)
		return err
	}

	r.mu.Lock()
	r.customers = customers
	sortCustomers(r.customers)
	r.mu.Unlock()
	return nil
}

// List returns a copy of all customers ordered by name.
func (r *CustomerRegistry) List() []models.Customer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.customers)
}

// Find returns the customer with the given ID.
func (r *CustomerRegistry) Find(id string) (models.Customer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.customers[i], true
	}
	return models.Customer{}, false
}

// Add creates a customer with a fresh ID and creation time.
func (r *CustomerRegistry) Add(ctx context.Context, input models.CustomerInput) (models.Customer, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Address = strings.TrimSpace(input.Address)
	input.MeterNumber = strings.TrimSpace(input.MeterNumber)
	if err := validateStruct(input); err != nil {
		return models.Customer{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.meterTaken(input.MeterNumber, "") {
		return models.Customer{}, models.NewValidationError("meterNumber", "already assigned to another customer")
	}

	customer := models.Customer{
		ID:          r.opts.newID(),
		Name:        input.Name,
		Address:     input.Address,
		MeterNumber: input.MeterNumber,
		CreatedAt:   r.opts.now().UTC(),
	}
	if err := r.store.InsertCustomer(ctx, customer); err != nil {
		slog.Warn("Failed to add customer", "error", err)
		return models.Customer{}, err
	}

	r.customers = append(r.customers, customer)
	sortCustomers(r.customers)

	slog.Info("Customer added", "customer_id", customer.ID, "meter_number", customer.MeterNumber)
	return customer, nil
}

// Update replaces name, address and meter number of an existing customer. The
// creation time is preserved.
func (r *CustomerRegistry) Update(ctx context.Context, customer models.Customer) (models.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Address = strings.TrimSpace(customer.Address)
	customer.MeterNumber = strings.TrimSpace(customer.MeterNumber)
	if err := validateStruct(customer); err != nil {
		return models.Customer{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(customer.ID)
	if i < 0 {
		return models.Customer{}, models.NotFound("customer", customer.ID)
	}
	if r.meterTaken(customer.MeterNumber, customer.ID) {
		return models.Customer{}, models.NewValidationError("meterNumber", "already assigned to another customer")
	}

	customer.CreatedAt = r.customers[i].CreatedAt
	if err := r.store.UpdateCustomer(ctx, customer); err != nil {
		slog.Warn("Failed to update customer", "customer_id", customer.ID, "error", err)
		return models.Customer{}, err
	}

	r.customers[i] = customer
	sortCustomers(r.customers)

	slog.Info("Customer updated", "customer_id", customer.ID)
	return customer, nil
}

// Remove deletes a customer together with all of its bills in a single store
// write. On failure neither the customer nor its bills change.
func (r *CustomerRegistry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return models.NotFound("customer", id)
	}

	if err := r.store.RemoveCustomer(ctx, id); err != nil {
		slog.Warn("Failed to remove customer", "customer_id", id, "error", err)
		return err
	}

	r.customers = slices.Delete(r.customers, i, i+1)
	var bills int
	if r.bills != nil {
		bills = r.bills.ForgetCustomer(id)
	}

	slog.Info("Customer removed", "customer_id", id, "bills", bills)
	return nil
}

func (r *CustomerRegistry) indexOf(id string) int {
	return slices.IndexFunc(r.customers, func(c models.Customer) bool {
		return c.ID == id
	})
}

func (r *CustomerRegistry) meterTaken(meter, exceptID string) bool {
	return slices.ContainsFunc(r.customers, func(c models.Customer) bool {
		return c.MeterNumber == meter && c.ID != exceptID
	})
}

func sortCustomers(customers []models.Customer) {
	slices.SortStableFunc(customers, func(a, b models.Customer) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
