package domain

import "errors"

// Domain errors represent error conditions of the upload subsystem.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrUnauthorized is returned when the collector rejects the bearer token
	// (401/403). The caller must refresh the token and upload again.
	ErrUnauthorized = errors.New("cyup: unauthorized")

	// ErrInvalidEndpoint is returned when the configured collector endpoint
	// or a server-assigned location cannot be used to build a request.
	ErrInvalidEndpoint = errors.New("cyup: invalid endpoint")

	// ErrCorruptPayload is returned when a measurement cannot be serialized
	// or compressed. It is a defect, never retried.
	ErrCorruptPayload = errors.New("cyup: corrupt payload")

	// ErrMeasurementNotFinished is returned when an upload is requested for
	// a measurement that is still being captured.
	ErrMeasurementNotFinished = errors.New("cyup: measurement not finished")

	// ErrMeasurementNotFound is returned by stores for unknown identifiers.
	ErrMeasurementNotFound = errors.New("cyup: measurement not found")

	// ErrUploadFailed is reported for uploads that exhausted their attempts.
	// The session is kept so a later call can resume.
	ErrUploadFailed = errors.New("cyup: upload failed")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("cyup: invalid configuration")
)
