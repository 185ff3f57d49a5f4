// Package fs provides file-backed adapters: the bearer token file and the
// persisted device identifier.
package fs
