package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/userdesk/userdesk/internal/auth"
	"github.com/userdesk/userdesk/internal/model"
)

const (
	// principalCachePrefix is the Redis key prefix for cached principals.
	principalCachePrefix = "principal:email:"
	// principalGenPrefix keys the per-email invalidation counter.
	principalGenPrefix = "principal:gen:"
	// principalGenTTL must outlive any principal lookup; a counter that
	// expires mid-lookup could let a stale write through.
	principalGenTTL = 24 * time.Hour
	// defaultPrincipalTTL applies when the cache is built without a TTL.
	defaultPrincipalTTL = time.Minute
)

// CachedPrincipal represents an authenticated user stored in Redis.
// The password hash is never cached.
type CachedPrincipal struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	CINumber  string    `json:"ci_number"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func principalKey(email string) string {
	return principalCachePrefix + auth.QuickHash(model.NormalizeEmail(email))
}

func principalGenKey(email string) string {
	return principalGenPrefix + auth.QuickHash(model.NormalizeEmail(email))
}

// setPrincipalScript writes the entry only while the generation counter
// still holds the value the caller read before its store lookup.
var setPrincipalScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// GetPrincipal retrieves a cached principal by email.
// Returns nil if not found (cache miss).
func (c *Cache) GetPrincipal(ctx context.Context, email string) (*model.User, error) {
	data, err := c.client.Get(ctx, principalKey(email)).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var cached CachedPrincipal
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &model.User{
		ID:        cached.ID,
		FirstName: cached.FirstName,
		LastName:  cached.LastName,
		CINumber:  cached.CINumber,
		Email:     cached.Email,
		Active:    cached.Active,
		CreatedAt: cached.CreatedAt,
		UpdatedAt: cached.UpdatedAt,
	}, nil
}

// PrincipalGeneration returns the invalidation counter for email. Read it
// before loading the user from the store and pass it to SetPrincipal.
func (c *Cache) PrincipalGeneration(ctx context.Context, email string) (int64, error) {
	gen, err := c.client.Get(ctx, principalGenKey(email)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// SetPrincipal caches user unless DeletePrincipal ran for its email since
// generation was read. It reports whether the entry was written.
func (c *Cache) SetPrincipal(ctx context.Context, user *model.User, generation int64) (bool, error) {
	cached := CachedPrincipal{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		CINumber:  user.CINumber,
		Email:     user.Email,
		Active:    user.Active,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return false, fmt.Errorf("marshal principal: %w", err)
	}

	written, err := setPrincipalScript.Run(ctx, c.client,
		[]string{principalKey(user.Email), principalGenKey(user.Email)},
		generation, data, c.principalTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("set principal: %w", err)
	}
	return written == 1, nil
}

// DeletePrincipal drops the cached entry and bumps the generation, so a
// lookup already in flight cannot write its older copy back.
// Called whenever the user is updated or deleted.
func (c *Cache) DeletePrincipal(ctx context.Context, email string) error {
	genKey := principalGenKey(email)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, principalGenTTL)
		pipe.Del(ctx, principalKey(email))
		return nil
	})
	return err
}
