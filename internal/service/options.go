// Package service implements the domain services: the settings service, the
// customer registry and the bill ledger. Each service keeps an in-memory copy
// of its collection and writes through a storage.Store; memory only changes
// after the store accepted the write.
package service

import "time"

// Option configures a service.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

// WithClock overrides the time source used for creation timestamps and
// default bill dates.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		o.newID = newID
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:   time.Now,
		newID: newUUID,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
