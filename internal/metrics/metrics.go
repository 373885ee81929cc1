// Package metrics provides lightweight hooks for instrumentation.
package metrics

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Login metrics
	IncLogin(outcome string) // outcome: "success", "rejected", "error"
	IncLoginRateLimited()

	// Token validation metrics, labelled by validation status
	IncTokenValidation(status string)

	// Principal cache metrics
	IncPrincipalCacheHit()
	IncPrincipalCacheMiss()

	// User management metrics
	IncUserCreated()
	IncUserUpdated()
	IncUserDeleted()

	// Audit stream metrics
	IncAuditPublished(status string) // status: "success", "dropped"
	IncAuditProcessed(status string) // status: "success", "failed", "dead_lettered"
	SetAuditQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
