package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/meterbill/internal/models"
)

func customer(id, name, meter string) models.Customer {
	return models.Customer{
		ID:          id,
		Name:        name,
		MeterNumber: meter,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func bill(id, customerID string, prev, cur int64, date time.Time) models.Bill {
	rate := decimal.RequireFromString("0.6")
	return models.Bill{
		ID:              id,
		CustomerID:      customerID,
		PreviousReading: prev,
		CurrentReading:  cur,
		Consumption:     cur - prev,
		Rate:            rate,
		Amount:          decimal.NewFromInt(cur - prev).Mul(rate),
		Date:            date,
	}
}

func TestKVStore(t *testing.T) {
	backends := map[string]func(t *testing.T) Backend{
		"memory": func(t *testing.T) Backend { return NewMemoryBackend() },
		"file": func(t *testing.T) Backend {
			b, err := NewFileBackend(filepath.Join(t.TempDir(), "kv"))
			require.NoError(t, err)
			return b
		},
	}

	for name, newBackend := range backends {
		t.Run(name, func(t *testing.T) {
			store := New(newBackend(t))
			defer store.Close()
			ctx := context.Background()

			d1 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
			d2 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

			t.Run("empty collections", func(t *testing.T) {
				customers, err := store.ListCustomers(ctx)
				require.NoError(t, err)
				assert.Empty(t, customers)
				assert.NotNil(t, customers)

				bills, err := store.ListBills(ctx)
				require.NoError(t, err)
				assert.Empty(t, bills)

				_, err = store.ReadSettings(ctx)
				assert.ErrorIs(t, err, models.ErrNotFound)
			})

			t.Run("customers ordered by name", func(t *testing.T) {
				require.NoError(t, store.InsertCustomer(ctx, customer("c2", "Zaid", "M2")))
				require.NoError(t, store.InsertCustomer(ctx, customer("c1", "Amal", "M1")))

				customers, err := store.ListCustomers(ctx)
				require.NoError(t, err)
				require.Len(t, customers, 2)
				assert.Equal(t, "Amal", customers[0].Name)
				assert.Equal(t, "Zaid", customers[1].Name)
				assert.True(t, customers[0].CreatedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
			})

			t.Run("duplicate meter rejected", func(t *testing.T) {
				err := store.InsertCustomer(ctx, customer("c3", "Other", "M1"))
				assert.ErrorIs(t, err, models.ErrValidation)

				err = store.UpdateCustomer(ctx, customer("c2", "Zaid", "M1"))
				assert.ErrorIs(t, err, models.ErrValidation)
			})

			t.Run("update keeps createdAt", func(t *testing.T) {
				changed := customer("c2", "Zaid Ali", "M2")
				changed.CreatedAt = time.Now()
				require.NoError(t, store.UpdateCustomer(ctx, changed))

				customers, err := store.ListCustomers(ctx)
				require.NoError(t, err)
				assert.Equal(t, "Zaid Ali", customers[1].Name)
				assert.True(t, customers[1].CreatedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
			})

			t.Run("bills newest first with decoded dates", func(t *testing.T) {
				require.NoError(t, store.InsertBill(ctx, bill("b1", "c1", 0, 100, d1)))
				require.NoError(t, store.InsertBill(ctx, bill("b2", "c1", 100, 150, d2)))
				require.NoError(t, store.InsertBill(ctx, bill("b3", "c2", 0, 10, d1)))

				bills, err := store.ListBills(ctx)
				require.NoError(t, err)
				require.Len(t, bills, 3)
				assert.Equal(t, "b2", bills[0].ID)
				assert.True(t, bills[0].Date.Equal(d2))
				// Same-date bills fall back to ID order.
				assert.Equal(t, "b1", bills[1].ID)
				assert.True(t, bills[1].Amount.Equal(decimal.NewFromInt(60)))
			})

			t.Run("bill for unknown customer rejected", func(t *testing.T) {
				err := store.InsertBill(ctx, bill("bx", "ghost", 0, 1, d1))
				assert.ErrorIs(t, err, models.ErrValidation)
			})

			t.Run("set paid is idempotent", func(t *testing.T) {
				require.NoError(t, store.SetBillPaid(ctx, "b1"))
				require.NoError(t, store.SetBillPaid(ctx, "b1"))

				bills, err := store.ListBills(ctx)
				require.NoError(t, err)
				for _, b := range bills {
					assert.Equal(t, b.ID == "b1", b.IsPaid, "bill %s", b.ID)
				}
			})

			t.Run("absent ids are not found", func(t *testing.T) {
				assert.ErrorIs(t, store.SetBillPaid(ctx, "nope"), models.ErrNotFound)
				assert.ErrorIs(t, store.RemoveBill(ctx, "nope"), models.ErrNotFound)
				assert.ErrorIs(t, store.UpdateBill(ctx, bill("nope", "c1", 0, 1, d1)), models.ErrNotFound)
				assert.ErrorIs(t, store.RemoveCustomer(ctx, "nope"), models.ErrNotFound)
				assert.ErrorIs(t, store.UpdateCustomer(ctx, customer("nope", "X", "MX")), models.ErrNotFound)
			})

			t.Run("remove customer bills", func(t *testing.T) {
				require.NoError(t, store.RemoveBillsForCustomer(ctx, "c1"))
				require.NoError(t, store.RemoveBillsForCustomer(ctx, "c1"))

				bills, err := store.ListBills(ctx)
				require.NoError(t, err)
				require.Len(t, bills, 1)
				assert.Equal(t, "c2", bills[0].CustomerID)
			})

			t.Run("remove customer cascades", func(t *testing.T) {
				require.NoError(t, store.RemoveCustomer(ctx, "c2"))

				bills, err := store.ListBills(ctx)
				require.NoError(t, err)
				assert.Empty(t, bills)
			})

			t.Run("settings round trip", func(t *testing.T) {
				want := models.DefaultSettings()
				want.Logo = "data:image/png;base64,AAAA"
				require.NoError(t, store.WriteSettings(ctx, want))

				got, err := store.ReadSettings(ctx)
				require.NoError(t, err)
				assert.True(t, want.KwRate.Equal(got.KwRate))
				assert.Equal(t, want.CompanyName, got.CompanyName)
				assert.Equal(t, want.Logo, got.Logo)
			})

			t.Run("replace all", func(t *testing.T) {
				snapshot := models.Snapshot{
					Customers: []models.Customer{customer("n1", "New", "MN")},
					Bills:     []models.Bill{bill("nb1", "n1", 0, 5, d1)},
					Settings:  models.DefaultSettings(),
				}
				require.NoError(t, store.ReplaceAll(ctx, snapshot))

				customers, err := store.ListCustomers(ctx)
				require.NoError(t, err)
				require.Len(t, customers, 1)
				assert.Equal(t, "n1", customers[0].ID)

				bills, err := store.ListBills(ctx)
				require.NoError(t, err)
				require.Len(t, bills, 1)
			})
		})
	}
}

func TestKVStore_DecodesOriginalDocuments(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	// Documents as written by the browser fallback: numbers for money, ISO dates.
	require.NoError(t, backend.Put(ctx, KeyCustomers, []byte(
		`[{"id":"1700000000000","name":"Amal","address":"","meterNumber":"M1","createdAt":"2024-01-05T10:00:00.000Z"}]`)))
	require.NoError(t, backend.Put(ctx, KeyBills, []byte(
		`[{"id":"1700000000001","customerId":"1700000000000","previousReading":0,"currentReading":100,"consumption":100,"rate":0.6,"amount":60,"date":"2024-02-01T00:00:00.000Z","isPaid":false}]`)))

	store := New(backend)

	customers, err := store.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, 2024, customers[0].CreatedAt.Year())

	bills, err := store.ListBills(ctx)
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.True(t, bills[0].Rate.Equal(decimal.RequireFromString("0.6")))
	assert.True(t, bills[0].Date.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestKVStore_CorruptDocument(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()
	require.NoError(t, backend.Put(ctx, KeyBills, []byte(`{not json`)))

	store := New(backend)
	_, err := store.ListBills(ctx)

	assert.ErrorIs(t, err, models.ErrPersistence)
}

func TestFileBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "kv")
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := backend.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, backend.Put(ctx, "bills", []byte(`[]`)))
	value, ok, err := backend.Get(ctx, "bills")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, string(value))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	assert.Error(t, backend.Put(ctx, "../escape", []byte(`x`)))
}

func TestFileBackend_PutAllWritesBillsFirst(t *testing.T) {
	ctx := context.Background()
	batch := map[string][]byte{
		KeyCustomers: []byte(`[]`),
		KeyBills:     []byte(`[]`),
		KeySettings:  []byte(`{}`),
	}

	// A directory in place of a document makes its rename fail.
	block := func(t *testing.T, dir, key string) {
		t.Helper()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, key+".json", "x"), 0o755))
	}

	t.Run("bills fail", func(t *testing.T) {
		dir := t.TempDir()
		backend, err := NewFileBackend(dir)
		require.NoError(t, err)
		block(t, dir, KeyBills)

		require.Error(t, backend.PutAll(ctx, batch))
		for _, key := range []string{KeyCustomers, KeySettings} {
			_, ok, err := backend.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok, "%s written after failed bills", key)
		}
	})

	t.Run("customers fail", func(t *testing.T) {
		dir := t.TempDir()
		backend, err := NewFileBackend(dir)
		require.NoError(t, err)
		block(t, dir, KeyCustomers)

		require.Error(t, backend.PutAll(ctx, batch))
		_, ok, err := backend.Get(ctx, KeyBills)
		require.NoError(t, err)
		assert.True(t, ok)
		_, ok, err = backend.Get(ctx, KeySettings)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRedisBackend_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	store := New(NewRedisBackendWithClient(client, "test:"))
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := store.ListCustomers(ctx)
	assert.ErrorIs(t, err, models.ErrPersistence)

	err = store.WriteSettings(ctx, models.DefaultSettings())
	assert.ErrorIs(t, err, models.ErrPersistence)
}
