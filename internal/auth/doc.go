// Package auth issues and validates the bearer tokens exchanged between the
// billing application and the host process.
package auth
