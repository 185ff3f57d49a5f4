package ports

import (
	"context"

	"github.com/cyface-de/cyup/internal/domain"
)

// SessionRegistry maps measurement identifiers to upload sessions.
// All implementations must behave identically from the caller's view;
// durable ones keep sessions across restarts.
type SessionRegistry interface {
	// Get returns the session registered for the measurement.
	// The boolean is false if none exists. Get has no side effects.
	Get(ctx context.Context, measurementID uint64) (domain.Session, bool, error)

	// Register inserts or replaces the session keyed by its measurement id.
	// The event log of an existing entry is kept.
	Register(ctx context.Context, session domain.Session) error

	// Remove deletes the session and its event log. Removing an unknown
	// id is not an error.
	Remove(ctx context.Context, measurementID uint64) error

	// Record appends one event to the measurement's protocol log, creating
	// the log if needed.
	Record(ctx context.Context, measurementID uint64, event domain.Event) error

	// List returns all registered sessions ordered by measurement id.
	List(ctx context.Context) ([]domain.Session, error)
}
