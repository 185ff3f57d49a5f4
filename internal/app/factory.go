package app

import (
	"github.com/cyface-de/cyup/internal/domain"
	"github.com/cyface-de/cyup/pkg/ccyf"
)

// Factory creates Upload values. Construction never encodes the payload;
// that happens on the first Upload.Payload call.
type Factory struct {
	encode func(domain.Measurement) ([]byte, error)
}

// NewFactory creates a factory using the ccyf codec.
func NewFactory() *Factory {
	return &Factory{encode: ccyf.SerializeCompressed}
}

// New creates an upload with a fresh session for a measurement that has
// no registered session.
func (f *Factory) New(m domain.Measurement) *Upload {
	return f.Resume(m, domain.NewSession(m.ID))
}

// Resume wraps an already registered session.
func (f *Factory) Resume(m domain.Measurement, session domain.Session) *Upload {
	return &Upload{
		Measurement: m,
		Session:     session,
		Status:      StatusPending,
		encode:      f.encode,
	}
}
