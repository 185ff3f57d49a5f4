package app

import (
	"fmt"

	"github.com/cyface-de/cyup/internal/domain"
)

// Status is the outcome of an upload run.
type Status int

const (
	StatusPending Status = iota
	StatusSucceeded
	StatusFailed
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusSucceeded:
		return "Succeeded"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Upload is the in-memory state of one protocol run for a measurement.
// It is owned by a single run and is not safe for concurrent use.
type Upload struct {
	Measurement domain.Measurement

	// Session mirrors the registry entry, including the events recorded
	// during this run.
	Session domain.Session

	// FailedUploadsCounter counts failed attempts of the current run.
	FailedUploadsCounter int

	Status    Status
	LastError error

	// PayloadSize is the compressed size, known after the first Payload call.
	PayloadSize int

	encode  func(domain.Measurement) ([]byte, error)
	payload []byte
}

// Payload returns the compressed wire payload, encoding it on first use.
func (u *Upload) Payload() ([]byte, error) {
	if u.payload != nil {
		return u.payload, nil
	}
	b, err := u.encode(u.Measurement)
	if err != nil {
		return nil, fmt.Errorf("%w: measurement %d: %v", domain.ErrCorruptPayload, u.Measurement.ID, err)
	}
	u.payload = b
	u.PayloadSize = len(b)
	return b, nil
}

// Release drops the cached payload bytes.
func (u *Upload) Release() {
	u.payload = nil
}

// Succeeded returns true once the server confirmed the complete payload.
func (u *Upload) Succeeded() bool {
	return u.Status == StatusSucceeded
}

// LastEvent returns the most recent protocol event of the session.
func (u *Upload) LastEvent() *domain.Event {
	return u.Session.LastEvent()
}
