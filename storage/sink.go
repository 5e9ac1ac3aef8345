package storage

import (
	"context"
	"errors"

	"market-scanner/models"
)

// ErrSinkFatal wraps sink failures that must abort the run, such as a lost
// database connection that will not recover mid-run. Ordinary sink errors
// are logged and counted but never stop data collection.
var ErrSinkFatal = errors.New("sink: fatal")

// Sink receives canonical listings as they are produced. Implementations
// own persistence and any downstream side effects (embedding triggers);
// the scanner's only obligation is to deliver complete normalized records.
// Sinks must tolerate interleaved writes across areas and sources.
type Sink interface {
	Accept(ctx context.Context, listing *models.Listing) error
	Close() error
}
