// Package memory provides a process-local session registry. Sessions are
// lost when the process exits.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cyface-de/cyup/internal/domain"
)

// Registry implements ports.SessionRegistry in memory.
type Registry struct {
	mu       sync.Mutex
	sessions map[uint64]domain.Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uint64]domain.Session)}
}

// Get returns a copy of the registered session.
func (r *Registry) Get(_ context.Context, id uint64) (domain.Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, false, nil
	}
	return clone(s), true, nil
}

// Register inserts or replaces the session, keeping an existing event log.
func (r *Registry) Register(_ context.Context, s domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := domain.Session{
		MeasurementID: s.MeasurementID,
		Location:      s.Location,
		CreatedAt:     s.CreatedAt,
	}
	if prev, ok := r.sessions[s.MeasurementID]; ok {
		entry.Events = prev.Events
		entry.CreatedAt = prev.CreatedAt
	}
	r.sessions[s.MeasurementID] = entry
	return nil
}

// Remove deletes the session and its events.
func (r *Registry) Remove(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// Record appends an event, creating the session entry if needed.
func (r *Registry) Record(_ context.Context, id uint64, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		s = domain.NewSession(id)
	}
	s.Events = append(s.Events, e)
	r.sessions[id] = s
	return nil
}

// List returns copies of all sessions ordered by measurement id.
func (r *Registry) List(_ context.Context) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, clone(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MeasurementID < out[j].MeasurementID })
	return out, nil
}

func clone(s domain.Session) domain.Session {
	s.Events = append([]domain.Event(nil), s.Events...)
	return s
}
