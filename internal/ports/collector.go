package ports

import (
	"context"
	"net/http"
)

// Collector issues the requests of the resumable upload protocol against
// the remote collection service. Implementations only transport; they do
// not interpret status codes.
type Collector interface {
	// PreRequest announces an upload and asks the server for a resource location.
	PreRequest(ctx context.Context, req PreRequest) (Response, error)

	// Transfer sends the complete compressed payload to the resource location.
	Transfer(ctx context.Context, req Transfer) (Response, error)

	// StatusCheck asks the server how much of the payload it already holds.
	StatusCheck(ctx context.Context, req StatusCheck) (Response, error)
}

// Response is the outcome of one protocol request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// PreRequest describes the upload announcement.
type PreRequest struct {
	Token       string
	PayloadSize int
	Metadata    Metadata
}

// Transfer describes the payload transmission.
type Transfer struct {
	Token    string
	Location string
	Payload  []byte
}

// StatusCheck describes the idempotent completion query.
type StatusCheck struct {
	Token       string
	Location    string
	PayloadSize int
}

// Metadata is the measurement description sent with the pre-request.
type Metadata struct {
	DeviceID      string   `json:"deviceId"`
	MeasurementID string   `json:"measurementId"`
	OSVersion     string   `json:"osVersion"`
	DeviceType    string   `json:"deviceType"`
	AppVersion    string   `json:"appVersion"`
	Length        float64  `json:"length"`
	LocationCount int      `json:"locationCount"`
	StartLocation *GeoMeta `json:"startLocation,omitempty"`
	EndLocation   *GeoMeta `json:"endLocation,omitempty"`
	Modality      string   `json:"modality"`
	FormatVersion int      `json:"formatVersion"`
}

// GeoMeta is a location summary inside Metadata.
type GeoMeta struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Timestamp int64   `json:"timestamp"`
}
