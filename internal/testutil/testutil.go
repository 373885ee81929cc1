// Package testutil holds helpers shared by the integration and e2e suites.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/userdesk/userdesk/internal/model"
)

// RequireEnv returns the value of key, skipping the test when it is unset.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	v := os.Getenv(key)
	if v == "" {
		t.Skipf("%s not set", key)
	}
	return v
}

// dbLockKey is the advisory lock every database test holds, so packages
// run by `go test ./...` in parallel do not reset each other's schema.
const dbLockKey int64 = 0x75736572 // "user"

// LockDB holds the shared advisory lock on a dedicated connection until the
// test ends.
func LockDB(t testing.TB, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("lock db: acquire connection: %v", err)
	}
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", dbLockKey); err != nil {
		conn.Release()
		t.Fatalf("lock db: %v", err)
	}

	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", dbLockKey)
		conn.Release()
	})
}

var seq atomic.Int64

// UniqueEmail returns an address no other call in this process returns.
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d-%d@example.com", prefix, time.Now().UnixNano(), seq.Add(1))
}

// placeholderHash is a well-formed argon2id PHC string that matches no
// password anyone will type.
const placeholderHash = "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"

// NewTestUser returns an active, unsaved user.
func NewTestUser(t testing.TB, email string) *model.User {
	t.Helper()
	return &model.User{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		CINumber:     fmt.Sprintf("CI-%d", seq.Add(1)),
		Email:        email,
		PasswordHash: placeholderHash,
		Active:       true,
	}
}

// NewInactiveTestUser returns an unsaved user that cannot authenticate.
func NewInactiveTestUser(t testing.TB, email string) *model.User {
	t.Helper()
	u := NewTestUser(t, email)
	u.Active = false
	return u
}
