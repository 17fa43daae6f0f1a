// Package metrics provides interfaces and implementations for collecting
// lookup daemon metrics. This package defines the Collector interface for
// recording metrics and the Server interface for exposing them.
package metrics

import "context"

// Collector defines the interface for recording lookup daemon metrics.
type Collector interface {
	// Connection metrics
	ConnectionOpened()
	ConnectionClosed()
	TLSConnectionEstablished()

	// Request metrics (table first)
	// status should be a proto.StatText label
	RequestProcessed(table string, status string)
	RequestDuration(table string, seconds float64)

	// Codec metrics
	// kind should be "malformed" or "stream"
	DecodeError(kind string)

	// Proxy client metrics
	ProxySessionOpened()
	ProxySessionFailed(stage string)
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is canceled
	// or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}
