package domain

import "time"

// RequestType names the protocol step an Event was recorded for.
type RequestType string

const (
	RequestPreRequest  RequestType = "pre-request"
	RequestUpload      RequestType = "upload"
	RequestStatusCheck RequestType = "status"
)

// Session is the persisted protocol state of one measurement upload.
// It lives from the first upload attempt until the server has confirmed
// the data, and survives process restarts in durable registries.
type Session struct {
	// MeasurementID keys the session. At most one session exists per id.
	MeasurementID uint64 `json:"measurement_id"`

	// Location is the resource URL assigned by the server on a successful
	// pre-request. Empty until then.
	Location string `json:"location,omitempty"`

	// Events is the append-only protocol log, oldest first.
	Events []Event `json:"events,omitempty"`

	// CreatedAt is when the session was first registered.
	CreatedAt time.Time `json:"created_at"`
}

// NewSession creates an empty session for the given measurement.
func NewSession(measurementID uint64) Session {
	return Session{
		MeasurementID: measurementID,
		CreatedAt:     time.Now(),
	}
}

// HasLocation returns true once the server has assigned an upload resource.
func (s Session) HasLocation() bool {
	return s.Location != ""
}

// LastEvent returns the most recent protocol event, or nil if none was recorded.
func (s Session) LastEvent() *Event {
	if len(s.Events) == 0 {
		return nil
	}
	return &s.Events[len(s.Events)-1]
}

// Event is one entry of the protocol log.
type Event struct {
	RequestType RequestType `json:"type"`
	StatusCode  int         `json:"status_code"`
	Message     string      `json:"message,omitempty"`
	Error       string      `json:"error,omitempty"`
	Time        time.Time   `json:"time"`
}

// Failed returns true if the event describes a transport error or a
// non-2xx response.
func (e Event) Failed() bool {
	return e.Error != "" || e.StatusCode/100 != 2
}
