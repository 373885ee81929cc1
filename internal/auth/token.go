package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/userdesk/userdesk/internal/model"
)

// Token format: encrypt(email) + "." + encrypt(expiry)
// Expiry plaintext: 2026-10-18_21-30-00 (reference zone, seconds precision)
const (
	// DefaultTokenTTL is how long a minted token stays valid.
	DefaultTokenTTL = 4 * time.Hour
	// TokenDelimiter separates the identity and expiry segments.
	TokenDelimiter = "."

	expiryDateLayout  = "2006-01-02"
	expiryClockLayout = "15:04:05"
	expiryJoin        = "_"
)

var (
	// ErrTokenMalformed indicates a token without two segments.
	ErrTokenMalformed = errors.New("malformed token")
	// ErrTokenUndecryptable indicates a segment failed to decrypt.
	ErrTokenUndecryptable = errors.New("token segment could not be decrypted")
	// ErrExpiryMalformed indicates the decrypted expiry is not a timestamp.
	ErrExpiryMalformed = errors.New("malformed token expiry")
	// ErrInvalidExpiryPolicy indicates an unknown expiry policy name.
	ErrInvalidExpiryPolicy = errors.New("invalid expiry policy")
)

// Codec encrypts token segments. Implemented by codec.Codec.
type Codec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// PrincipalLookup resolves the identity carried by a token.
// FindActiveByEmail returns (nil, nil) when no active user has that email;
// a non-nil error means the store could not be consulted.
type PrincipalLookup interface {
	FindActiveByEmail(ctx context.Context, email string) (*model.User, error)
}

// ExpiryPolicy selects the direction of the expiry comparison.
type ExpiryPolicy string

const (
	// ExpiryPolicyLegacy treats a token as expired while now is before its
	// encoded expiry, and accepts it afterwards. This is the comparison the
	// deployed service has always made; it is almost certainly inverted.
	ExpiryPolicyLegacy ExpiryPolicy = "legacy"
	// ExpiryPolicyStrict accepts a token only while now is strictly before
	// its encoded expiry.
	ExpiryPolicyStrict ExpiryPolicy = "strict"
)

// ParseExpiryPolicy converts a configuration value to an ExpiryPolicy.
func ParseExpiryPolicy(s string) (ExpiryPolicy, error) {
	switch p := ExpiryPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ExpiryPolicyLegacy, ExpiryPolicyStrict:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidExpiryPolicy, s)
	}
}

// Expired applies the policy to the current time and a decoded expiry.
func (p ExpiryPolicy) Expired(now, expiry time.Time) bool {
	if p == ExpiryPolicyLegacy {
		return now.Before(expiry)
	}
	return !now.Before(expiry)
}

// ValidationStatus is the outcome of validating an Authorization header.
type ValidationStatus int

const (
	statusUnset ValidationStatus = iota
	// ResultMissing means no token was presented.
	ResultMissing
	// ResultInvalid means the token could not be decoded or names no active user.
	ResultInvalid
	// ResultExpired means the expiry policy rejected the token.
	ResultExpired
	// ResultUnavailable means the user store could not be consulted.
	ResultUnavailable
	// ResultAccepted means the request may proceed as Principal.
	ResultAccepted
)

// String returns the short reason used in logs.
func (s ValidationStatus) String() string {
	switch s {
	case ResultMissing:
		return "missing"
	case ResultInvalid:
		return "invalid"
	case ResultExpired:
		return "expired"
	case ResultUnavailable:
		return "unavailable"
	case ResultAccepted:
		return "accepted"
	default:
		return "unset"
	}
}

// HTTPStatus is the response code for a rejected request.
func (s ValidationStatus) HTTPStatus() int {
	switch s {
	case ResultAccepted:
		return http.StatusOK
	case ResultUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}

// Message is the client-facing text for a rejected request.
func (s ValidationStatus) Message() string {
	switch s {
	case ResultMissing:
		return "Missing Authorization Token"
	case ResultExpired:
		return "Expired Authorization Token"
	case ResultUnavailable:
		return "Service Unavailable"
	case ResultAccepted:
		return ""
	default:
		return "Invalid Authorization Token"
	}
}

// ValidationResult is the tagged outcome of TokenManager.Validate.
// Principal is set only when Status is ResultAccepted.
type ValidationResult struct {
	Status    ValidationStatus
	Principal *model.User
	Expiry    time.Time
	Err       error
}

// Accepted reports whether the request may proceed.
func (r ValidationResult) Accepted() bool {
	return r.Status == ResultAccepted && r.Principal != nil
}

func reject(status ValidationStatus, err error) ValidationResult {
	return ValidationResult{Status: status, Err: err}
}

// TokenManager mints and validates session tokens. It is immutable after
// construction and safe for concurrent use.
type TokenManager struct {
	codec  Codec
	lookup PrincipalLookup
	ttl    time.Duration
	loc    *time.Location
	policy ExpiryPolicy
	now    func() time.Time
}

// TokenOption configures a TokenManager.
type TokenOption func(*TokenManager)

// WithTTL overrides the validity window (default 4h).
func WithTTL(ttl time.Duration) TokenOption {
	return func(m *TokenManager) { m.ttl = ttl }
}

// WithLocation sets the reference zone expiries are written in (default UTC).
func WithLocation(loc *time.Location) TokenOption {
	return func(m *TokenManager) { m.loc = loc }
}

// WithExpiryPolicy sets the expiry comparison (default legacy).
func WithExpiryPolicy(p ExpiryPolicy) TokenOption {
	return func(m *TokenManager) { m.policy = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) { m.now = now }
}

// NewTokenManager builds a TokenManager over codec and lookup.
func NewTokenManager(codec Codec, lookup PrincipalLookup, opts ...TokenOption) (*TokenManager, error) {
	if codec == nil {
		return nil, errors.New("token manager requires a codec")
	}
	if lookup == nil {
		return nil, errors.New("token manager requires a principal lookup")
	}

	m := &TokenManager{
		codec:  codec,
		lookup: lookup,
		ttl:    DefaultTokenTTL,
		loc:    time.UTC,
		policy: ExpiryPolicyLegacy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", m.ttl)
	}
	if m.loc == nil {
		m.loc = time.UTC
	}
	if _, err := ParseExpiryPolicy(string(m.policy)); err != nil {
		return nil, err
	}

	return m, nil
}

// Policy returns the configured expiry policy.
func (m *TokenManager) Policy() ExpiryPolicy {
	return m.policy
}

// TTL returns the configured validity window.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Mint issues a token for email that expires TTL from now.
func (m *TokenManager) Mint(email string) (string, error) {
	expiry := m.now().In(m.loc).Add(m.ttl)

	identity, err := m.codec.Encrypt(email)
	if err != nil {
		return "", fmt.Errorf("encrypt identity: %w", err)
	}

	stamp, err := m.codec.Encrypt(m.formatExpiry(expiry))
	if err != nil {
		return "", fmt.Errorf("encrypt expiry: %w", err)
	}

	return identity + TokenDelimiter + stamp, nil
}

// Decode decrypts a token into its identity and expiry without
// consulting the user store or the clock.
func (m *TokenManager) Decode(token string) (string, time.Time, error) {
	email, rawExpiry, err := m.open(token)
	if err != nil {
		return "", time.Time{}, err
	}
	expiry, err := m.parseExpiry(rawExpiry)
	if err != nil {
		return email, time.Time{}, err
	}
	return email, expiry, nil
}

// open splits a token and decrypts both segments. Segments past the
// second are ignored.
func (m *TokenManager) open(token string) (email, rawExpiry string, err error) {
	segments := strings.Split(token, TokenDelimiter)
	if len(segments) < 2 {
		return "", "", ErrTokenMalformed
	}
	if email, err = m.codec.Decrypt(segments[0]); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrTokenUndecryptable, err)
	}
	if rawExpiry, err = m.codec.Decrypt(segments[1]); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrTokenUndecryptable, err)
	}
	return email, rawExpiry, nil
}

// Validate runs the per-request state machine over the raw Authorization
// header value. It never panics; every failure is a rejected result.
// The principal is looked up before the expiry is parsed, so an
// unreachable store reports Unavailable whatever the second segment holds.
func (m *TokenManager) Validate(ctx context.Context, header string) ValidationResult {
	if header == "" {
		return reject(ResultMissing, nil)
	}

	email, rawExpiry, err := m.open(header)
	if err != nil {
		return reject(ResultInvalid, err)
	}

	user, err := m.lookup.FindActiveByEmail(ctx, email)
	if err != nil {
		return reject(ResultUnavailable, err)
	}
	if !user.CanAuthenticate() {
		return reject(ResultInvalid, nil)
	}

	expiry, err := m.parseExpiry(rawExpiry)
	if err != nil {
		return reject(ResultInvalid, err)
	}

	if m.policy.Expired(m.now().In(m.loc), expiry) {
		return ValidationResult{Status: ResultExpired, Expiry: expiry}
	}

	return ValidationResult{Status: ResultAccepted, Principal: user, Expiry: expiry}
}

func (m *TokenManager) formatExpiry(t time.Time) string {
	t = t.In(m.loc)
	clock := strings.ReplaceAll(t.Format(expiryClockLayout), ":", "-")
	return t.Format(expiryDateLayout) + expiryJoin + clock
}

func (m *TokenManager) parseExpiry(raw string) (time.Time, error) {
	date, clock, ok := strings.Cut(raw, expiryJoin)
	if !ok {
		return time.Time{}, ErrExpiryMalformed
	}

	clock = strings.ReplaceAll(clock, "-", ":")
	t, err := time.ParseInLocation(expiryDateLayout+" "+expiryClockLayout, date+" "+clock, m.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrExpiryMalformed, err)
	}

	return t, nil
}
