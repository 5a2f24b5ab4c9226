package sqlite

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/meterbill/internal/models"
)

// ListBills retrieves all bills, newest first.
func (s *SQLiteStore) ListBills(ctx context.Context) ([]models.Bill, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customerId, previousReading, currentReading, consumption, amount, rate, date, isPaid
		 FROM bills ORDER BY date DESC, id`,
	)
	if err != nil {
		return nil, models.NewPersistenceError("list bills", fmt.Errorf("failed to query bills: %w", err))
	}
	defer rows.Close()

	bills := []models.Bill{}
	for rows.Next() {
		var (
			bill         models.Bill
			amount, rate float64
			date         string
		)
		if err := rows.Scan(&bill.ID, &bill.CustomerID, &bill.PreviousReading, &bill.CurrentReading,
			&bill.Consumption, &amount, &rate, &date, &bill.IsPaid); err != nil {
			return nil, models.NewPersistenceError("list bills", fmt.Errorf("failed to scan bill: %w", err))
		}
		if bill.Date, err = parseTime(date); err != nil {
			return nil, models.NewPersistenceError("list bills", fmt.Errorf("failed to parse date of %s: %w", bill.ID, err))
		}
		bill.Amount = decimal.NewFromFloat(amount)
		bill.Rate = decimal.NewFromFloat(rate)
		bills = append(bills, bill)
	}

	if err := rows.Err(); err != nil {
		return nil, models.NewPersistenceError("list bills", fmt.Errorf("failed to iterate bills: %w", err))
	}

	return bills, nil
}

// InsertBill persists a new bill to the database.
func (s *SQLiteStore) InsertBill(ctx context.Context, bill models.Bill) error {
	return classify("insert bill", insertBill(ctx, s.db, bill))
}

// UpdateBill replaces the readings, derived values and paid flag of a bill.
func (s *SQLiteStore) UpdateBill(ctx context.Context, bill models.Bill) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bills SET customerId = ?, previousReading = ?, currentReading = ?, consumption = ?,
		 amount = ?, rate = ?, date = ?, isPaid = ? WHERE id = ?`,
		bill.CustomerID, bill.PreviousReading, bill.CurrentReading, bill.Consumption,
		bill.Amount.InexactFloat64(), bill.Rate.InexactFloat64(), formatTime(bill.Date), bill.IsPaid, bill.ID,
	)
	if err != nil {
		return classify("update bill", err)
	}
	return expectOne(res, "update bill", "bill", bill.ID)
}

// RemoveBill removes a bill by ID.
func (s *SQLiteStore) RemoveBill(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM bills WHERE id = ?", id)
	if err != nil {
		return models.NewPersistenceError("remove bill", fmt.Errorf("failed to delete bill: %w", err))
	}
	return expectOne(res, "remove bill", "bill", id)
}

// RemoveBillsForCustomer removes every bill of a customer in a single statement.
func (s *SQLiteStore) RemoveBillsForCustomer(ctx context.Context, customerID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM bills WHERE customerId = ?", customerID); err != nil {
		return models.NewPersistenceError("remove customer bills", fmt.Errorf("failed to delete bills: %w", err))
	}
	return nil
}

// SetBillPaid marks a bill as paid.
func (s *SQLiteStore) SetBillPaid(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE bills SET isPaid = 1 WHERE id = ?", id)
	if err != nil {
		return models.NewPersistenceError("set bill paid", fmt.Errorf("failed to update bill: %w", err))
	}
	return expectOne(res, "set bill paid", "bill", id)
}

func insertBill(ctx context.Context, db execer, bill models.Bill) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO bills (id, customerId, previousReading, currentReading, consumption, amount, rate, date, isPaid)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bill.ID,
		bill.CustomerID,
		bill.PreviousReading,
		bill.CurrentReading,
		bill.Consumption,
		bill.Amount.InexactFloat64(),
		bill.Rate.InexactFloat64(),
		formatTime(bill.Date),
		bill.IsPaid,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bill: %w", err)
	}
	return nil
}
