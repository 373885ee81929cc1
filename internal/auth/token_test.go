package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userdesk/userdesk/internal/codec"
	"github.com/userdesk/userdesk/internal/model"
)

type fakeLookup struct {
	users map[string]*model.User
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeLookup) FindActiveByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[email]
	if !ok || !u.Active {
		return nil, nil
	}
	return u, nil
}

type failingCodec struct{}

func (failingCodec) Encrypt(string) (string, error) { return "", errors.New("boom") }
func (failingCodec) Decrypt(string) (string, error) { return "", errors.New("boom") }

var mintTime = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, policy ExpiryPolicy, now time.Time) (*TokenManager, *fakeLookup) {
	t.Helper()

	c, err := codec.New("test-secret")
	require.NoError(t, err)

	lookup := &fakeLookup{users: map[string]*model.User{
		"a@b.com":    {ID: 5, Email: "a@b.com", Active: true},
		"gone@b.com": {ID: 6, Email: "gone@b.com", Active: false},
	}}

	clock := now
	m, err := NewTokenManager(c, lookup,
		WithExpiryPolicy(policy),
		WithClock(func() time.Time { return clock }),
	)
	require.NoError(t, err)

	return m, lookup
}

func TestNewTokenManager_Defaults(t *testing.T) {
	t.Parallel()

	c, err := codec.New("test-secret")
	require.NoError(t, err)

	m, err := NewTokenManager(c, &fakeLookup{})
	require.NoError(t, err)
	assert.Equal(t, ExpiryPolicyLegacy, m.Policy())
	assert.Equal(t, 4*time.Hour, m.TTL())
}

func TestNewTokenManager_RejectsBadOptions(t *testing.T) {
	t.Parallel()

	c, err := codec.New("test-secret")
	require.NoError(t, err)

	_, err = NewTokenManager(nil, &fakeLookup{})
	assert.Error(t, err)

	_, err = NewTokenManager(c, nil)
	assert.Error(t, err)

	_, err = NewTokenManager(c, &fakeLookup{}, WithTTL(0))
	assert.Error(t, err)

	_, err = NewTokenManager(c, &fakeLookup{}, WithExpiryPolicy("sideways"))
	assert.ErrorIs(t, err, ErrInvalidExpiryPolicy)
}

func TestParseExpiryPolicy(t *testing.T) {
	t.Parallel()

	p, err := ParseExpiryPolicy("Legacy")
	require.NoError(t, err)
	assert.Equal(t, ExpiryPolicyLegacy, p)

	p, err = ParseExpiryPolicy(" strict ")
	require.NoError(t, err)
	assert.Equal(t, ExpiryPolicyStrict, p)

	_, err = ParseExpiryPolicy("")
	assert.ErrorIs(t, err, ErrInvalidExpiryPolicy)
}

func TestExpiryPolicy_Expired(t *testing.T) {
	t.Parallel()

	expiry := mintTime.Add(4 * time.Hour)

	tests := []struct {
		name   string
		policy ExpiryPolicy
		now    time.Time
		want   bool
	}{
		{"legacy before expiry", ExpiryPolicyLegacy, mintTime, true},
		{"legacy at expiry", ExpiryPolicyLegacy, expiry, false},
		{"legacy after expiry", ExpiryPolicyLegacy, expiry.Add(time.Second), false},
		{"strict before expiry", ExpiryPolicyStrict, mintTime, false},
		{"strict at expiry", ExpiryPolicyStrict, expiry, true},
		{"strict after expiry", ExpiryPolicyStrict, expiry.Add(time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Expired(tt.now, expiry))
		})
	}
}

func TestMint_SegmentsDecodeToEmailAndExpiry(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, ExpiryPolicyStrict, mintTime)

	token, err := m.Mint("a@b.com")
	require.NoError(t, err)

	segments := strings.Split(token, TokenDelimiter)
	require.Len(t, segments, 2)

	email, expiry, err := m.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", email)
	assert.WithinDuration(t, mintTime.Add(4*time.Hour), expiry, time.Second)
}

func TestMint_ExpiryPlaintextFormat(t *testing.T) {
	t.Parallel()

	c, err := codec.New("test-secret")
	require.NoError(t, err)

	m, err := NewTokenManager(c, &fakeLookup{},
		WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 999, time.UTC) }),
	)
	require.NoError(t, err)

	token, err := m.Mint("a@b.com")
	require.NoError(t, err)

	_, stamp, _ := strings.Cut(token, TokenDelimiter)
	plain, err := c.Decrypt(stamp)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02_07-04-05", plain)
}

func TestMint_UsesReferenceZone(t *testing.T) {
	t.Parallel()

	c, err := codec.New("test-secret")
	require.NoError(t, err)

	zone := time.FixedZone("UTC-3", -3*60*60)
	m, err := NewTokenManager(c, &fakeLookup{},
		WithLocation(zone),
		WithClock(func() time.Time { return mintTime }),
	)
	require.NoError(t, err)

	token, err := m.Mint("a@b.com")
	require.NoError(t, err)

	_, stamp, _ := strings.Cut(token, TokenDelimiter)
	plain, err := c.Decrypt(stamp)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-18_13-00-00", plain)

	_, expiry, err := m.Decode(token)
	require.NoError(t, err)
	assert.True(t, expiry.Equal(mintTime.Add(4*time.Hour)))
}

func TestMint_CodecFailure(t *testing.T) {
	t.Parallel()

	m, err := NewTokenManager(failingCodec{}, &fakeLookup{})
	require.NoError(t, err)

	_, err = m.Mint("a@b.com")
	assert.Error(t, err)
}

func TestValidate_Missing(t *testing.T) {
	t.Parallel()

	m, lookup := newTestManager(t, ExpiryPolicyStrict, mintTime)

	res := m.Validate(context.Background(), "")
	assert.Equal(t, ResultMissing, res.Status)
	assert.Equal(t, http.StatusUnauthorized, res.Status.HTTPStatus())
	assert.Equal(t, "Missing Authorization Token", res.Status.Message())
	assert.Zero(t, lookup.calls)
}

func TestValidate_StrictAcceptsFreshToken(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, ExpiryPolicyStrict, mintTime)

	token, err := m.Mint("a@b.com")
	require.NoError(t, err)

	res := m.Validate(context.Background(), token)
	require.True(t, res.Accepted())
	assert.Equal(t, int64(5), res.Principal.ID)
}

func TestValidate_StrictRejectsPastExpiry(t *testing.T) {
	t.Parallel()

	issuer, _ := newTestManager(t, ExpiryPolicyStrict, mintTime)
	token, err := issuer.Mint("a@b.com")
	require.NoError(t, err)

	later, _ := newTestManager(t, ExpiryPolicyStrict, mintTime.Add(4*time.Hour+time.Second))
	res := later.Validate(context.Background(), token)
	assert.Equal(t, ResultExpired, res.Status)
	assert.Equal(t, "Expired Authorization Token", res.Status.Message())
	assert.Nil(t, res.Principal)
}

func TestValidate_LegacyInvertsExpiry(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, ExpiryPolicyLegacy, mintTime)
	token, err := m.Mint("a@b.com")
	require.NoError(t, err)

	res := m.Validate(context.Background(), token)
	assert.Equal(t, ResultExpired, res.Status)

	later, _ := newTestManager(t, ExpiryPolicyLegacy, mintTime.Add(5*time.Hour))
	res = later.Validate(context.Background(), token)
	assert.True(t, res.Accepted())
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, ExpiryPolicyStrict, mintTime)

	good, err := m.Mint("a@b.com")
	require.NoError(t, err)
	identity, stamp, _ := strings.Cut(good, TokenDelimiter)

	inactive, err := m.Mint("gone@b.com")
	require.NoError(t, err)
	unknown, err := m.Mint("nobody@b.com")
	require.NoError(t, err)

	c, err := codec.New("test-secret")
	require.NoError(t, err)
	junkStamp, err := c.Encrypt("not a timestamp")
	require.NoError(t, err)
	foreign, err := codec.Encrypt("a@b.com", "other-secret")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"single segment", identity},
		{"empty segments", "."},
		{"garbage", "garbage.garbage"},
		{"truncated identity", identity[:len(identity)-6] + "." + stamp},
		{"truncated expiry", identity + "." + stamp[:10]},
		{"swapped segments", stamp + "." + identity},
		{"foreign secret", foreign + "." + stamp},
		{"inactive user", inactive},
		{"unknown user", unknown},
		{"non-timestamp expiry", identity + "." + junkStamp},
		{"bearer prefix", "Bearer " + good},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res ValidationResult
			require.NotPanics(t, func() {
				res = m.Validate(context.Background(), tt.token)
			})
			assert.Equal(t, ResultInvalid, res.Status)
			assert.Equal(t, "Invalid Authorization Token", res.Status.Message())
			assert.Equal(t, http.StatusUnauthorized, res.Status.HTTPStatus())
			assert.False(t, res.Accepted())
		})
	}
}

func TestValidate_ExtraSegmentsIgnored(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, ExpiryPolicyStrict, mintTime)
	token, err := m.Mint("a@b.com")
	require.NoError(t, err)

	res := m.Validate(context.Background(), token+".trailing")
	assert.True(t, res.Accepted())
}

func TestDecode_SharesValidateParsing(t *testing.T) {
	t.Parallel()

	m, lookup := newTestManager(t, ExpiryPolicyStrict, mintTime)
	token, err := m.Mint("a@b.com")
	require.NoError(t, err)
	identity, _, _ := strings.Cut(token, TokenDelimiter)

	cases := map[string]error{
		"single-segment": ErrTokenMalformed,
		"garbage.parts":  ErrTokenUndecryptable,
		identity + ".x":  ErrTokenUndecryptable,
	}
	for raw, want := range cases {
		_, _, err := m.Decode(raw)
		assert.ErrorIs(t, err, want, raw)

		res := m.Validate(context.Background(), raw)
		assert.Equal(t, ResultInvalid, res.Status, raw)
		assert.ErrorIs(t, res.Err, want, raw)
	}

	email, _, err := m.Decode(token + ".trailing")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", email)
	assert.Zero(t, lookup.calls, "Decode never consults the store")
}

func TestValidate_StoreFailure(t *testing.T) {
	t.Parallel()

	m, lookup := newTestManager(t, ExpiryPolicyStrict, mintTime)
	token, err := m.Mint("a@b.com")
	require.NoError(t, err)

	lookup.err = errors.New("connection refused")

	res := m.Validate(context.Background(), token)
	assert.Equal(t, ResultUnavailable, res.Status)
	assert.Equal(t, http.StatusServiceUnavailable, res.Status.HTTPStatus())
	assert.ErrorContains(t, res.Err, "connection refused")
}

func TestValidate_Idempotent(t *testing.T) {
	t.Parallel()

	m, lookup := newTestManager(t, ExpiryPolicyStrict, mintTime)
	token, err := m.Mint("a@b.com")
	require.NoError(t, err)

	before := *lookup.users["a@b.com"]

	var wg sync.WaitGroup
	results := make([]ValidationResult, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.Validate(context.Background(), token)
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		require.True(t, res.Accepted())
		assert.Equal(t, results[0].Expiry, res.Expiry)
		assert.Equal(t, int64(5), res.Principal.ID)
	}
	assert.Equal(t, before, *lookup.users["a@b.com"])
}

func TestValidationStatus_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "missing", ResultMissing.String())
	assert.Equal(t, "invalid", ResultInvalid.String())
	assert.Equal(t, "expired", ResultExpired.String())
	assert.Equal(t, "unavailable", ResultUnavailable.String())
	assert.Equal(t, "accepted", ResultAccepted.String())
	assert.Equal(t, "unset", ValidationStatus(0).String())
	assert.False(t, ValidationResult{}.Accepted())
}
