package storage

import (
	"context"
	"errors"

	"market-scanner/models"
)

// CompositeSink fans each listing out to several sinks. A fatal error from
// any member is fatal for the composite; other errors are joined so the
// caller can count them without losing the remaining sinks' writes.
type CompositeSink struct {
	sinks []Sink
}

// NewCompositeSink combines the given sinks.
func NewCompositeSink(sinks ...Sink) *CompositeSink {
	return &CompositeSink{sinks: sinks}
}

// Accept delivers the listing to every member sink.
func (c *CompositeSink) Accept(ctx context.Context, l *models.Listing) error {
	var errs []error
	for _, s := range c.sinks {
		if err := s.Accept(ctx, l); err != nil {
			if errors.Is(err, ErrSinkFatal) {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all member sinks, returning the first error.
func (c *CompositeSink) Close() error {
	var first error
	for _, s := range c.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
