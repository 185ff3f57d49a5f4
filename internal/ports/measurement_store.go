package ports

import (
	"context"

	"github.com/cyface-de/cyup/internal/domain"
)

// MeasurementStore gives read access to captured measurements and accepts
// the synchronized flag once an upload completed.
type MeasurementStore interface {
	// Load returns the measurement with all tracks.
	// Returns domain.ErrMeasurementNotFound for unknown ids.
	Load(ctx context.Context, id uint64) (domain.Measurement, error)

	// ListUnsynchronized returns ids of finished measurements not yet uploaded.
	ListUnsynchronized(ctx context.Context) ([]uint64, error)

	// MarkSynchronized flags the measurement as uploaded.
	MarkSynchronized(ctx context.Context, id uint64) error
}

// MeasurementWriter accepts measurements captured elsewhere, e.g. imported
// from a JSON export.
type MeasurementWriter interface {
	// Save inserts or replaces the measurement with all tracks.
	Save(ctx context.Context, m domain.Measurement) error
}
