package sqlite

import (
	"context"
	"fmt"

	"github.com/mmynk/meterbill/internal/models"
)

// ListCustomers retrieves all customers ordered by name.
func (s *SQLiteStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, address, meterNumber, createdAt
		 FROM customers ORDER BY name, id`,
	)
	if err != nil {
		return nil, models.NewPersistenceError("list customers", fmt.Errorf("failed to query customers: %w", err))
	}
	defer rows.Close()

	customers := []models.Customer{}
	for rows.Next() {
		var (
			customer  models.Customer
			createdAt string
		)
		if err := rows.Scan(&customer.ID, &customer.Name, &customer.Address, &customer.MeterNumber, &createdAt); err != nil {
			return nil, models.NewPersistenceError("list customers", fmt.Errorf("failed to scan customer: %w", err))
		}
		if customer.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, models.NewPersistenceError("list customers", fmt.Errorf("failed to parse createdAt of %s: %w", customer.ID, err))
		}
		customers = append(customers, customer)
	}

	if err := rows.Err(); err != nil {
		return nil, models.NewPersistenceError("list customers", fmt.Errorf("failed to iterate customers: %w", err))
	}

	return customers, nil
}

// InsertCustomer inserts a new customer into the database.
func (s *SQLiteStore) InsertCustomer(ctx context.Context, customer models.Customer) error {
	return classify("insert customer", insertCustomer(ctx, s.db, customer))
}

// UpdateCustomer updates name, address and meter number. CreatedAt is immutable.
func (s *SQLiteStore) UpdateCustomer(ctx context.Context, customer models.Customer) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE customers SET name = ?, address = ?, meterNumber = ? WHERE id = ?",
		customer.Name, customer.Address, customer.MeterNumber, customer.ID,
	)
	if err != nil {
		return classify("update customer", err)
	}
	return expectOne(res, "update customer", "customer", customer.ID)
}

// RemoveCustomer deletes a customer. Bills of the customer go with it through
// the foreign key cascade.
func (s *SQLiteStore) RemoveCustomer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM customers WHERE id = ?", id)
	if err != nil {
		return models.NewPersistenceError("remove customer", fmt.Errorf("failed to delete customer: %w", err))
	}
	return expectOne(res, "remove customer", "customer", id)
}

func insertCustomer(ctx context.Context, db execer, customer models.Customer) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO customers (id, name, address, meterNumber, createdAt)
		 VALUES (?, ?, ?, ?, ?)`,
		customer.ID,
		customer.Name,
		customer.Address,
		customer.MeterNumber,
		formatTime(customer.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert customer: %w", err)
	}
	return nil
}
