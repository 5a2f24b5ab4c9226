package bridge

import "github.com/mmynk/meterbill/internal/models"

// Empty is the message of procedures without arguments or results.
type Empty struct{}

// IDRequest addresses a single record.
type IDRequest struct {
	ID string `json:"id"`
}

type CustomersResponse struct {
	Customers []models.Customer `json:"customers"`
}

type BillsResponse struct {
	Bills []models.Bill `json:"bills"`
}

// PingResponse describes the store behind the host.
type PingResponse struct {
	Backend string `json:"backend"`
}
