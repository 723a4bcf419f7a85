// Package timeouts defines shared timeout constants used across the service.
// Centralizing these values keeps the durations discoverable and prevents
// drift between handlers.
package timeouts

import "time"

// Storage caps a single challenge or credential store call made on behalf of
// one request. Expiry surfaces as a persistence error to the caller.
const Storage = 2 * time.Second

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
