package calculator

import (
	"github.com/mmynk/meterbill/internal/models"
	"github.com/shopspring/decimal"
)

// CustomerBalance summarizes the billing position of one customer.
type CustomerBalance struct {
	CustomerID  string
	TotalBilled decimal.Decimal // Sum of all bill amounts
	TotalPaid   decimal.Decimal // Sum of paid bill amounts
	Outstanding decimal.Decimal // TotalBilled - TotalPaid
	Consumption int64           // Total units billed
	BillCount   int
	UnpaidCount int
}

// CalculateBalance aggregates the bills belonging to customerID.
// Bills of other customers are ignored, so the full ledger can be passed in.
func CalculateBalance(customerID string, bills []models.Bill) CustomerBalance {
	balance := CustomerBalance{
		CustomerID:  customerID,
		TotalBilled: decimal.Zero,
		TotalPaid:   decimal.Zero,
	}

	for _, bill := range bills {
		if bill.CustomerID != customerID {
			continue
		}
		balance.BillCount++
		balance.Consumption += bill.Consumption
		balance.TotalBilled = balance.TotalBilled.Add(bill.Amount)
		if bill.IsPaid {
			balance.TotalPaid = balance.TotalPaid.Add(bill.Amount)
		} else {
			balance.UnpaidCount++
		}
	}

	balance.Outstanding = balance.TotalBilled.Sub(balance.TotalPaid)
	return balance
}
