// Package domain contains the core entities of the upload agent.
//
// This package is the innermost layer. It has no dependencies on
// infrastructure concerns (HTTP, storage, logging).
//
// # Entities
//
//   - [Measurement]: a finished recording with its [Track]s
//   - [Session]: persisted upload protocol state of one measurement
//   - [Event]: one entry of a session's append-only protocol log
package domain
