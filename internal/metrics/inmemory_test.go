package metrics

import (
	"sync"
	"testing"
)

func TestInMemoryRecorder_Counts(t *testing.T) {
	m := NewInMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncLogin("success")
			m.IncTokenValidation("expired")
			m.IncUserCreated()
		}()
	}
	wg.Wait()

	m.IncLogin("rejected")
	m.IncPrincipalCacheHit()
	m.IncPrincipalCacheMiss()
	m.IncUserUpdated()
	m.IncUserDeleted()
	m.IncLoginRateLimited()
	m.IncAuditPublished("success")
	m.IncAuditPublished("dropped")
	m.IncAuditProcessed("dead_lettered")
	m.SetAuditQueueDepth(12)

	snap := m.Snapshot()
	if snap.Logins["success"] != 50 || snap.Logins["rejected"] != 1 {
		t.Errorf("unexpected logins %v", snap.Logins)
	}
	if snap.TokenValidations["expired"] != 50 {
		t.Errorf("unexpected validations %v", snap.TokenValidations)
	}
	if snap.UsersCreated != 50 || snap.UsersUpdated != 1 || snap.UsersDeleted != 1 {
		t.Errorf("unexpected user counters %+v", snap)
	}
	if snap.PrincipalCacheHits != 1 || snap.PrincipalCacheMisses != 1 || snap.LoginsRateLimited != 1 {
		t.Errorf("unexpected counters %+v", snap)
	}
	if snap.AuditPublished["success"] != 1 || snap.AuditPublished["dropped"] != 1 || snap.AuditProcessed["dead_lettered"] != 1 {
		t.Errorf("unexpected audit counters %+v", snap)
	}
	if snap.AuditQueueDepth != 12 {
		t.Errorf("unexpected audit queue depth %d", snap.AuditQueueDepth)
	}
}

func TestInMemoryRecorder_SnapshotIsCopy(t *testing.T) {
	m := NewInMemory()
	m.IncLogin("success")

	snap := m.Snapshot()
	snap.Logins["success"] = 99

	if got := m.Snapshot().Logins["success"]; got != 1 {
		t.Errorf("snapshot mutation leaked into recorder: %d", got)
	}
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoop()
	r.IncLogin("success")
	r.IncTokenValidation("accepted")
	r.IncUserDeleted()
}
