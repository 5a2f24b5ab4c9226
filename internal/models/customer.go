package models

import "time"

// Customer represents a metered customer.
type Customer struct {
	// ID is the unique identifier for the customer (UUID format).
	ID string `json:"id"`

	// Name is the display name of the customer.
	Name string `json:"name" validate:"required"`

	// Address is free text and may be empty.
	Address string `json:"address"`

	// MeterNumber identifies the customer's meter. Unique across all customers,
	// compared case-sensitively.
	MeterNumber string `json:"meterNumber" validate:"required"`

	// CreatedAt is assigned on creation and never changes afterwards.
	CreatedAt time.Time `json:"createdAt"`
}

// CustomerInput holds the caller-supplied fields of a new customer.
type CustomerInput struct {
	Name        string `json:"name" validate:"required"`
	Address     string `json:"address"`
	MeterNumber string `json:"meterNumber" validate:"required"`
}
