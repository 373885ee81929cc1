package metrics

import (
	"sync"
	"sync/atomic"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Logins               map[string]uint64
	LoginsRateLimited    uint64
	TokenValidations     map[string]uint64
	PrincipalCacheHits   uint64
	PrincipalCacheMisses uint64
	UsersCreated         uint64
	UsersUpdated         uint64
	UsersDeleted         uint64
	AuditPublished       map[string]uint64
	AuditProcessed       map[string]uint64
	AuditQueueDepth      int64
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	loginsRateLimited    uint64
	principalCacheHits   uint64
	principalCacheMisses uint64
	usersCreated         uint64
	usersUpdated         uint64
	usersDeleted         uint64
	auditQueueDepth      int64

	mu               sync.Mutex
	logins           map[string]uint64
	tokenValidations map[string]uint64
	auditPublished   map[string]uint64
	auditProcessed   map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		logins:           make(map[string]uint64),
		tokenValidations: make(map[string]uint64),
		auditPublished:   make(map[string]uint64),
		auditProcessed:   make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	logins := copyCounts(m.logins)
	validations := copyCounts(m.tokenValidations)
	published := copyCounts(m.auditPublished)
	processed := copyCounts(m.auditProcessed)
	m.mu.Unlock()

	return Snapshot{
		Logins:               logins,
		LoginsRateLimited:    atomic.LoadUint64(&m.loginsRateLimited),
		TokenValidations:     validations,
		PrincipalCacheHits:   atomic.LoadUint64(&m.principalCacheHits),
		PrincipalCacheMisses: atomic.LoadUint64(&m.principalCacheMisses),
		UsersCreated:         atomic.LoadUint64(&m.usersCreated),
		UsersUpdated:         atomic.LoadUint64(&m.usersUpdated),
		UsersDeleted:         atomic.LoadUint64(&m.usersDeleted),
		AuditPublished:       published,
		AuditProcessed:       processed,
		AuditQueueDepth:      atomic.LoadInt64(&m.auditQueueDepth),
	}
}

// IncLogin increments the login counter for outcome.
func (m *InMemoryRecorder) IncLogin(outcome string) {
	m.mu.Lock()
	m.logins[outcome]++
	m.mu.Unlock()
}

// IncLoginRateLimited increments the throttled login counter.
func (m *InMemoryRecorder) IncLoginRateLimited() {
	atomic.AddUint64(&m.loginsRateLimited, 1)
}

// IncTokenValidation increments the validation counter for status.
func (m *InMemoryRecorder) IncTokenValidation(status string) {
	m.mu.Lock()
	m.tokenValidations[status]++
	m.mu.Unlock()
}

// IncPrincipalCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncPrincipalCacheHit() {
	atomic.AddUint64(&m.principalCacheHits, 1)
}

// IncPrincipalCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncPrincipalCacheMiss() {
	atomic.AddUint64(&m.principalCacheMisses, 1)
}

// IncUserCreated increments user created counter.
func (m *InMemoryRecorder) IncUserCreated() {
	atomic.AddUint64(&m.usersCreated, 1)
}

// IncUserUpdated increments user updated counter.
func (m *InMemoryRecorder) IncUserUpdated() {
	atomic.AddUint64(&m.usersUpdated, 1)
}

// IncUserDeleted increments user deleted counter.
func (m *InMemoryRecorder) IncUserDeleted() {
	atomic.AddUint64(&m.usersDeleted, 1)
}

// IncAuditPublished increments audit publish counter by status.
func (m *InMemoryRecorder) IncAuditPublished(status string) {
	m.mu.Lock()
	m.auditPublished[status]++
	m.mu.Unlock()
}

// IncAuditProcessed increments audit processing counter by status.
func (m *InMemoryRecorder) IncAuditProcessed(status string) {
	m.mu.Lock()
	m.auditProcessed[status]++
	m.mu.Unlock()
}

// SetAuditQueueDepth records pending plus unread audit stream entries.
func (m *InMemoryRecorder) SetAuditQueueDepth(depth int64) {
	atomic.StoreInt64(&m.auditQueueDepth, depth)
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
