// Package models defines the core domain models for meterbill.
//
// # Models
//
//   - Customer: a metered customer, identified by a unique meter number
//   - Bill: one billing period for a customer, derived from two meter readings
//   - Settings: the singleton configuration record (unit rate, names, logo)
//   - Snapshot: the full-state export/import document
//
// # Design Principles
//
//  1. **Frozen charges**: a bill's consumption, rate and amount are fixed when the
//     bill is created. Later settings changes never touch existing bills.
//  2. **ID references**: bills point at customers by ID string, never by pointer.
//  3. **Document friendly**: JSON field names match the persisted document layout
//     used by the fallback store and by export files.
package models
