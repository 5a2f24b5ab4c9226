package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/meterbill/internal/calculator"
	"github.com/mmynk/meterbill/internal/models"
	"github.com/mmynk/meterbill/internal/storage"
)

// CustomerLookup resolves customer IDs for the ledger.
type CustomerLookup interface {
	Find(id string) (models.Customer, bool)
}

// CustomerLookupFunc adapts a function to CustomerLookup.
type CustomerLookupFunc func(id string) (models.Customer, bool)

// Find calls f(id).
func (f CustomerLookupFunc) Find(id string) (models.Customer, bool) {
	return f(id)
}

// BillLedger owns the bill collection and enforces the reading chain: the
// previous reading of a new bill is the current reading of the customer's
// latest bill, and readings never go backwards.
type BillLedger struct {
	store     storage.Store
	customers CustomerLookup
	opts      options

	mu    sync.RWMutex
	bills []models.Bill
}

// NewBillLedger creates a ledger. The collection is empty until Load.
func NewBillLedger(store storage.Store, customers CustomerLookup, opts ...Option) *BillLedger {
	return &BillLedger{
		store:     store,
		customers: customers,
		opts:      buildOptions(opts),
	}
}

// Load replaces the in-memory collection with the stored bills. On failure
// the previous collection is kept.
func (l *BillLedger) Load(ctx context.Context) error {
	bills, err := l.store.ListBills(ctx)
	if err != nil {
		slog.Warn("Failed to load bills", "error", err)
		return err
	}

	l.mu.Lock()
	l.bills = bills
	slices.SortStableFunc(l.bills, models.BillsByDateDesc)
	l.mu.Unlock()
	return nil
}

// List returns a copy of all bills, newest first.
func (l *BillLedger) List() []models.Bill {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.bills)
}

// Find returns the bill with the given ID.
func (l *BillLedger) Find(id string) (models.Bill, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := l.indexOf(id); i >= 0 {
		return l.bills[i], true
	}
	return models.Bill{}, false
}

// BillsFor returns a customer's bills, newest first.
func (l *BillLedger) BillsFor(customerID string) []models.Bill {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var bills []models.Bill
	for _, b := range l.bills {
		if b.CustomerID == customerID {
			bills = append(bills, b)
		}
	}
	return bills
}

// Unpaid returns all unpaid bills, newest first.
func (l *BillLedger) Unpaid() []models.Bill {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var bills []models.Bill
	for _, b := range l.bills {
		if !b.IsPaid {
			bills = append(bills, b)
		}
	}
	return bills
}

// PreviousReadingFor returns the current reading and date of the customer's
// latest bill. A new bill starts from that reading and may not be dated
// before lastDate. ok is false, with a zero reading, when the customer has no
// bills.
func (l *BillLedger) PreviousReadingFor(customerID string) (reading int64, lastDate time.Time, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	latest, ok := l.latest(customerID)
	if !ok {
		return 0, time.Time{}, false
	}
	return latest.CurrentReading, latest.Date, true
}

// Add issues a new bill for a customer. The previous reading is taken from
// the customer's latest bill and rate is stored with the bill. A zero date
// means now.
func (l *BillLedger) Add(ctx context.Context, customerID string, currentReading int64, rate decimal.Decimal, date time.Time) (models.Bill, error) {
	if _, ok := l.customers.Find(customerID); !ok {
		return models.Bill{}, models.NewValidationError("customerId", "customer does not exist")
	}
	if date.IsZero() {
		date = l.opts.now()
	}
	date = date.UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	var previous int64
	if latest, ok := l.latest(customerID); ok {
		previous = latest.CurrentReading
		if date.Before(latest.Date) {
			return models.Bill{}, models.NewValidationError("date",
				fmt.Sprintf("must not be before the latest bill date %s", latest.Date.Format(time.DateOnly)))
		}
	}

	charge, err := chargeFor(previous, currentReading, rate)
	if err != nil {
		return models.Bill{}, err
	}

	bill := models.Bill{
		ID:              l.opts.newID(),
		CustomerID:      customerID,
		PreviousReading: previous,
		CurrentReading:  currentReading,
		Consumption:     charge.Consumption,
		Rate:            rate,
		Amount:          charge.Amount,
		Date:            date,
	}
	if err := l.store.InsertBill(ctx, bill); err != nil {
		slog.Warn("Failed to add bill", "customer_id", customerID, "error", err)
		return models.Bill{}, err
	}

	l.bills = append(l.bills, bill)
	slices.SortStableFunc(l.bills, models.BillsByDateDesc)

	slog.Info("Bill added",
		"bill_id", bill.ID,
		"customer_id", customerID,
		"consumption", bill.Consumption,
		"amount", bill.Amount.String(),
	)
	return bill, nil
}

// MarkPaid sets a bill's paid flag. Marking a paid bill again is a no-op.
func (l *BillLedger) MarkPaid(ctx context.Context, id string) (models.Bill, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)
	if i < 0 {
		return models.Bill{}, models.NotFound("bill", id)
	}
	if l.bills[i].IsPaid {
		return l.bills[i], nil
	}

	if err := l.store.SetBillPaid(ctx, id); err != nil {
		slog.Warn("Failed to mark bill paid", "bill_id", id, "error", err)
		return models.Bill{}, err
	}
	l.bills[i].IsPaid = true

	slog.Info("Bill paid", "bill_id", id)
	return l.bills[i], nil
}

// Update corrects the current reading of a customer's latest bill and
// recomputes consumption and amount with the bill's own rate. Older bills
// cannot be edited since a later bill already continues from their reading.
func (l *BillLedger) Update(ctx context.Context, id string, currentReading int64) (models.Bill, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)
	if i < 0 {
		return models.Bill{}, models.NotFound("bill", id)
	}
	bill := l.bills[i]

	if latest, ok := l.latest(bill.CustomerID); ok && latest.ID != bill.ID {
		return models.Bill{}, models.NewValidationError("currentReading", "only the latest bill of a customer can be edited")
	}

	charge, err := chargeFor(bill.PreviousReading, currentReading, bill.Rate)
	if err != nil {
		return models.Bill{}, err
	}
	bill.CurrentReading = currentReading
	bill.Consumption = charge.Consumption
	bill.Amount = charge.Amount

	if err := l.store.UpdateBill(ctx, bill); err != nil {
		slog.Warn("Failed to update bill", "bill_id", id, "error", err)
		return models.Bill{}, err
	}
	l.bills[i] = bill

	slog.Info("Bill updated", "bill_id", id, "consumption", bill.Consumption)
	return bill, nil
}

// Remove deletes a bill.
func (l *BillLedger) Remove(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)
	if i < 0 {
		return models.NotFound("bill", id)
	}

	if err := l.store.RemoveBill(ctx, id); err != nil {
		slog.Warn("Failed to remove bill", "bill_id", id, "error", err)
		return err
	}
	l.bills = slices.Delete(l.bills, i, i+1)

	slog.Info("Bill removed", "bill_id", id)
	return nil
}

// RemoveAllForCustomer deletes every bill of a customer in one store write.
func (l *BillLedger) RemoveAllForCustomer(ctx context.Context, customerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.RemoveBillsForCustomer(ctx, customerID); err != nil {
		return err
	}

	removed := l.forget(customerID)

	slog.Info("Customer bills removed", "customer_id", customerID, "count", removed)
	return nil
}

// ForgetCustomer drops a customer's bills from memory only. The registry
// calls it once the store has deleted the customer, which removes the bills
// in the same write.
func (l *BillLedger) ForgetCustomer(customerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.forget(customerID)
}

// forget requires l.mu.
func (l *BillLedger) forget(customerID string) int {
	before := len(l.bills)
	l.bills = slices.DeleteFunc(l.bills, func(b models.Bill) bool {
		return b.CustomerID == customerID
	})
	return before - len(l.bills)
}

// latest returns the customer's most recent bill. Among bills sharing the
// latest date the highest reading wins. Callers hold l.mu.
func (l *BillLedger) latest(customerID string) (models.Bill, bool) {
	var (
		latest models.Bill
		found  bool
	)
	for _, b := range l.bills {
		if b.CustomerID != customerID {
			continue
		}
		if !found || b.Date.After(latest.Date) ||
			(b.Date.Equal(latest.Date) && b.CurrentReading > latest.CurrentReading) {
			latest = b
			found = true
		}
	}
	return latest, found
}

func (l *BillLedger) indexOf(id string) int {
	return slices.IndexFunc(l.bills, func(b models.Bill) bool {
		return b.ID == id
	})
}

func chargeFor(previous, current int64, rate decimal.Decimal) (calculator.Charge, error) {
	if current <= previous {
		return calculator.Charge{}, models.NewValidationError("currentReading",
			fmt.Sprintf("must be greater than the previous reading %d", previous))
	}
	if !rate.IsPositive() {
		return calculator.Charge{}, models.NewValidationError("rate", "must be greater than 0")
	}
	charge, err := calculator.CalculateCharge(previous, current, rate)
	if err != nil {
		return calculator.Charge{}, models.NewValidationError("currentReading", err.Error())
	}
	return charge, nil
}
