package metrics

// NoopCollector is a no-op implementation of the Collector interface.
// All methods are empty stubs that do nothing.
type NoopCollector struct{}

// ConnectionOpened is a no-op.
func (n *NoopCollector) ConnectionOpened() {}

// ConnectionClosed is a no-op.
func (n *NoopCollector) ConnectionClosed() {}

// TLSConnectionEstablished is a no-op.
func (n *NoopCollector) TLSConnectionEstablished() {}

// RequestProcessed is a no-op.
func (n *NoopCollector) RequestProcessed(table string, status string) {}

// RequestDuration is a no-op.
func (n *NoopCollector) RequestDuration(table string, seconds float64) {}

// DecodeError is a no-op.
func (n *NoopCollector) DecodeError(kind string) {}

// ProxySessionOpened is a no-op.
func (n *NoopCollector) ProxySessionOpened() {}

// ProxySessionFailed is a no-op.
func (n *NoopCollector) ProxySessionFailed(stage string) {}
