package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/meterbill/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testCustomer(id, name, meter string) models.Customer {
	return models.Customer{
		ID:          id,
		Name:        name,
		Address:     "Main St",
		MeterNumber: meter,
		CreatedAt:   time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

func testBill(id, customerID string, prev, cur int64, date time.Time) models.Bill {
	rate := decimal.RequireFromString("0.6")
	consumption := cur - prev
	return models.Bill{
		ID:              id,
		CustomerID:      customerID,
		PreviousReading: prev,
		CurrentReading:  cur,
		Consumption:     consumption,
		Rate:            rate,
		Amount:          decimal.NewFromInt(consumption).Mul(rate),
		Date:            date,
	}
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	d1 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("seeds default settings", func(t *testing.T) {
		settings, err := store.ReadSettings(ctx)
		if err != nil {
			t.Fatalf("ReadSettings failed: %v", err)
		}
		if !settings.KwRate.Equal(decimal.RequireFromString("0.6")) {
			t.Errorf("KwRate = %s, want 0.6", settings.KwRate)
		}
		if settings.CompanyName == "" || settings.SystemName == "" {
			t.Errorf("expected default names, got %+v", settings)
		}
	})

	t.Run("lists customers by name", func(t *testing.T) {
		for _, c := range []models.Customer{
			testCustomer("c2", "Zaid", "M2"),
			testCustomer("c1", "Amal", "M1"),
		} {
			if err := store.InsertCustomer(ctx, c); err != nil {
				t.Fatalf("InsertCustomer failed: %v", err)
			}
		}

		customers, err := store.ListCustomers(ctx)
		if err != nil {
			t.Fatalf("ListCustomers failed: %v", err)
		}
		if len(customers) != 2 {
			t.Fatalf("expected 2 customers, got %d", len(customers))
		}
		if customers[0].Name != "Amal" || customers[1].Name != "Zaid" {
			t.Errorf("unexpected order: %s, %s", customers[0].Name, customers[1].Name)
		}
		if !customers[0].CreatedAt.Equal(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)) {
			t.Errorf("CreatedAt mismatch: got %v", customers[0].CreatedAt)
		}
	})

	t.Run("rejects duplicate meter number", func(t *testing.T) {
		err := store.InsertCustomer(ctx, testCustomer("c3", "Other", "M1"))
		if !errors.Is(err, models.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}

		dup := testCustomer("c2", "Zaid", "M1")
		err = store.UpdateCustomer(ctx, dup)
		if !errors.Is(err, models.ErrValidation) {
			t.Fatalf("expected validation error on update, got %v", err)
		}
	})

	t.Run("lists bills newest first", func(t *testing.T) {
		if err := store.InsertBill(ctx, testBill("b1", "c1", 0, 100, d1)); err != nil {
			t.Fatalf("InsertBill failed: %v", err)
		}
		if err := store.InsertBill(ctx, testBill("b2", "c1", 100, 150, d2)); err != nil {
			t.Fatalf("InsertBill failed: %v", err)
		}

		bills, err := store.ListBills(ctx)
		if err != nil {
			t.Fatalf("ListBills failed: %v", err)
		}
		if len(bills) != 2 {
			t.Fatalf("expected 2 bills, got %d", len(bills))
		}
		if bills[0].ID != "b2" {
			t.Errorf("expected newest bill first, got %s", bills[0].ID)
		}
		if !bills[1].Amount.Equal(decimal.NewFromInt(60)) {
			t.Errorf("amount = %s, want 60", bills[1].Amount)
		}
		if bills[1].Consumption != 100 || bills[1].IsPaid {
			t.Errorf("unexpected bill: %+v", bills[1])
		}
	})

	t.Run("rejects bill for unknown customer", func(t *testing.T) {
		err := store.InsertBill(ctx, testBill("b9", "missing", 0, 10, d1))
		if !errors.Is(err, models.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("marks bill paid idempotently", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			if err := store.SetBillPaid(ctx, "b1"); err != nil {
				t.Fatalf("SetBillPaid #%d failed: %v", i+1, err)
			}
		}
		bills, _ := store.ListBills(ctx)
		for _, b := range bills {
			if b.ID == "b1" && !b.IsPaid {
				t.Error("expected b1 to be paid")
			}
			if b.ID == "b2" && b.IsPaid {
				t.Error("expected b2 to stay unpaid")
			}
		}
	})

	t.Run("not found on absent ids", func(t *testing.T) {
		checks := map[string]error{
			"SetBillPaid":    store.SetBillPaid(ctx, "nope"),
			"RemoveBill":     store.RemoveBill(ctx, "nope"),
			"RemoveCustomer": store.RemoveCustomer(ctx, "nope"),
			"UpdateCustomer": store.UpdateCustomer(ctx, testCustomer("nope", "X", "MX")),
			"UpdateBill":     store.UpdateBill(ctx, testBill("nope", "c1", 0, 1, d1)),
		}
		for name, err := range checks {
			if !errors.Is(err, models.ErrNotFound) {
				t.Errorf("%s: expected not found, got %v", name, err)
			}
		}
	})

	t.Run("writes settings as a single row", func(t *testing.T) {
		want := models.Settings{
			KwRate:      decimal.RequireFromString("0.75"),
			CompanyName: "Acme Power",
			SystemName:  "Billing",
			Logo:        "data:image/png;base64,AAAA",
		}
		if err := store.WriteSettings(ctx, want); err != nil {
			t.Fatalf("WriteSettings failed: %v", err)
		}
		got, err := store.ReadSettings(ctx)
		if err != nil {
			t.Fatalf("ReadSettings failed: %v", err)
		}
		if !got.KwRate.Equal(want.KwRate) || got.CompanyName != want.CompanyName || got.Logo != want.Logo {
			t.Errorf("settings mismatch: got %+v", got)
		}

		var count int
		if err := store.db.QueryRow("SELECT COUNT(*) FROM settings").Scan(&count); err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected exactly one settings row, got %d", count)
		}
	})

	t.Run("removing customer bills leaves no orphans", func(t *testing.T) {
		if err := store.RemoveBillsForCustomer(ctx, "c1"); err != nil {
			t.Fatalf("RemoveBillsForCustomer failed: %v", err)
		}
		if err := store.RemoveCustomer(ctx, "c1"); err != nil {
			t.Fatalf("RemoveCustomer failed: %v", err)
		}
		bills, err := store.ListBills(ctx)
		if err != nil {
			t.Fatalf("ListBills failed: %v", err)
		}
		if len(bills) != 0 {
			t.Errorf("expected no bills, got %d", len(bills))
		}
	})
}

func TestRemoveCustomerCascadesInSchema(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.InsertCustomer(ctx, testCustomer("c1", "Amal", "M1")); err != nil {
		t.Fatalf("InsertCustomer failed: %v", err)
	}
	if err := store.InsertBill(ctx, testBill("b1", "c1", 0, 10, time.Now())); err != nil {
		t.Fatalf("InsertBill failed: %v", err)
	}
	if err := store.RemoveCustomer(ctx, "c1"); err != nil {
		t.Fatalf("RemoveCustomer failed: %v", err)
	}

	bills, err := store.ListBills(ctx)
	if err != nil {
		t.Fatalf("ListBills failed: %v", err)
	}
	if len(bills) != 0 {
		t.Errorf("expected foreign key cascade to remove bills, got %d", len(bills))
	}
}

func TestReplaceAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.InsertCustomer(ctx, testCustomer("old", "Old", "M-OLD")); err != nil {
		t.Fatalf("InsertCustomer failed: %v", err)
	}

	snapshot := models.Snapshot{
		Customers: []models.Customer{testCustomer("n1", "New", "M-NEW")},
		Bills:     []models.Bill{testBill("nb1", "n1", 0, 40, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))},
		Settings: models.Settings{
			KwRate:      decimal.RequireFromString("1.25"),
			CompanyName: "Imported",
			SystemName:  "Imported System",
		},
	}
	if err := store.ReplaceAll(ctx, snapshot); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	customers, _ := store.ListCustomers(ctx)
	if len(customers) != 1 || customers[0].ID != "n1" {
		t.Errorf("unexpected customers after replace: %+v", customers)
	}
	bills, _ := store.ListBills(ctx)
	if len(bills) != 1 || bills[0].ID != "nb1" {
		t.Errorf("unexpected bills after replace: %+v", bills)
	}
	settings, _ := store.ReadSettings(ctx)
	if settings.CompanyName != "Imported" {
		t.Errorf("settings not replaced: %+v", settings)
	}

	t.Run("invalid snapshot rolls back", func(t *testing.T) {
		bad := snapshot
		bad.Bills = []models.Bill{testBill("orphan", "ghost", 0, 5, time.Now())}
		err := store.ReplaceAll(ctx, bad)
		if !errors.Is(err, models.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		bills, _ := store.ListBills(ctx)
		if len(bills) != 1 || bills[0].ID != "nb1" {
			t.Errorf("expected previous contents to survive, got %+v", bills)
		}
	})
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-02-01T10:00:00.000000000Z", time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-02-01T10:00:00.000Z", time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-02-01T12:00:00+02:00", time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTime(tt.in)
			if err != nil {
				t.Fatalf("parseTime(%q) failed: %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if _, err := parseTime("yesterday"); err == nil {
		t.Error("expected error for unparseable time")
	}
}
