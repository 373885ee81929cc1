package metrics

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncLogin is a no-op.
func (n *NoopRecorder) IncLogin(outcome string) {}

// IncLoginRateLimited is a no-op.
func (n *NoopRecorder) IncLoginRateLimited() {}

// IncTokenValidation is a no-op.
func (n *NoopRecorder) IncTokenValidation(status string) {}

// IncPrincipalCacheHit is a no-op.
func (n *NoopRecorder) IncPrincipalCacheHit() {}

// IncPrincipalCacheMiss is a no-op.
func (n *NoopRecorder) IncPrincipalCacheMiss() {}

// IncUserCreated is a no-op.
func (n *NoopRecorder) IncUserCreated() {}

// IncUserUpdated is a no-op.
func (n *NoopRecorder) IncUserUpdated() {}

// IncUserDeleted is a no-op.
func (n *NoopRecorder) IncUserDeleted() {}

// IncAuditPublished is a no-op.
func (n *NoopRecorder) IncAuditPublished(status string) {}

// IncAuditProcessed is a no-op.
func (n *NoopRecorder) IncAuditProcessed(status string) {}

// SetAuditQueueDepth is a no-op.
func (n *NoopRecorder) SetAuditQueueDepth(depth int64) {}
