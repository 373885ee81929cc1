package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/userdesk/userdesk/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeLabelled(w, "userdesk_logins_total", "outcome", snap.Logins)
	writeMetric(w, "userdesk_logins_rate_limited_total %d\n", snap.LoginsRateLimited)
	writeLabelled(w, "userdesk_token_validations_total", "status", snap.TokenValidations)

	writeMetric(w, "userdesk_principal_cache_hits_total %d\n", snap.PrincipalCacheHits)
	writeMetric(w, "userdesk_principal_cache_misses_total %d\n", snap.PrincipalCacheMisses)

	writeMetric(w, "userdesk_users_created_total %d\n", snap.UsersCreated)
	writeMetric(w, "userdesk_users_updated_total %d\n", snap.UsersUpdated)
	writeMetric(w, "userdesk_users_deleted_total %d\n", snap.UsersDeleted)

	writeLabelled(w, "userdesk_audit_events_published_total", "status", snap.AuditPublished)
	writeLabelled(w, "userdesk_audit_events_processed_total", "status", snap.AuditProcessed)
	writeMetric(w, "userdesk_audit_queue_depth %d\n", snap.AuditQueueDepth)
}

// writeLabelled writes one line per label value, in sorted order.
func writeLabelled(w http.ResponseWriter, name, label string, counts map[string]uint64) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, k, counts[k])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
