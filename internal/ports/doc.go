// Package ports defines the interfaces that connect the application layer
// to infrastructure adapters.
//
// # Port Interfaces
//
//   - [Collector]: the three requests of the upload protocol
//   - [SessionRegistry]: lookup, registration and event log of upload sessions
//   - [MeasurementStore]: read access to finished measurements
//   - [MeasurementWriter]: imports measurements captured elsewhere
//   - [TokenSource]: bearer tokens for the collector
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//   - [Logger]: structured logging abstraction
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them.
package ports
