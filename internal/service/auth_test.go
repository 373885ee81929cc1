package service

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userdesk/userdesk/internal/auth"
	"github.com/userdesk/userdesk/internal/metrics"
	"github.com/userdesk/userdesk/internal/model"
)

func newLoginFixture(t *testing.T) (*memStore, *model.User) {
	t.Helper()
	hash, err := auth.HashPassword("correct")
	require.NoError(t, err)

	store := newMemStore()
	user := store.put(&model.User{Email: "a@b.com", PasswordHash: hash, Active: true})
	return store, user
}

func TestAuthService_Login_Success(t *testing.T) {
	store, user := newLoginFixture(t)
	rec := metrics.NewInMemory()
	svc := NewAuthService(store, stubMinter{}, rec)

	res, err := svc.Login(context.Background(), LoginInput{Email: "A@B.com", Password: "correct"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)
	assert.Equal(t, "enc(a@b.com).enc(expiry)", res.Token)
	assert.EqualValues(t, 1, rec.Snapshot().Logins["success"])
}

func TestAuthService_Login_Rejected(t *testing.T) {
	store, _ := newLoginFixture(t)
	store.put(&model.User{Email: "off@b.com", PasswordHash: "h", Active: false})
	rec := metrics.NewInMemory()
	svc := NewAuthService(store, stubMinter{}, rec)

	tests := []struct {
		name  string
		input LoginInput
	}{
		{"wrong password", LoginInput{Email: "a@b.com", Password: "wrong"}},
		{"unknown user", LoginInput{Email: "who@b.com", Password: "correct"}},
		{"inactive user", LoginInput{Email: "off@b.com", Password: "correct"}},
		{"empty password", LoginInput{Email: "a@b.com"}},
		{"empty email", LoginInput{Password: "correct"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Login(context.Background(), tt.input)
			assert.ErrorIs(t, err, ErrUnauthorized)
			assert.Nil(t, res)
		})
	}

	assert.EqualValues(t, len(tests), rec.Snapshot().Logins["rejected"])
}

func TestAuthService_Login_StoreFailure(t *testing.T) {
	store, _ := newLoginFixture(t)
	store.err = errStoreDown
	svc := NewAuthService(store, stubMinter{}, nil)

	_, err := svc.Login(context.Background(), LoginInput{Email: "a@b.com", Password: "correct"})
	assert.ErrorIs(t, err, errStoreDown)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestAuthService_Login_MintFailure(t *testing.T) {
	store, _ := newLoginFixture(t)
	mintErr := errors.New("cipher unavailable")
	svc := NewAuthService(store, stubMinter{err: mintErr}, nil)

	_, err := svc.Login(context.Background(), LoginInput{Email: "a@b.com", Password: "correct"})
	assert.ErrorIs(t, err, mintErr)
}

func TestAuthService_Login_CorruptHash(t *testing.T) {
	store := newMemStore()
	store.put(&model.User{Email: "a@b.com", PasswordHash: "not-a-phc-string", Active: true})
	svc := NewAuthService(store, stubMinter{}, nil)

	_, err := svc.Login(context.Background(), LoginInput{Email: "a@b.com", Password: "correct"})
	assert.ErrorIs(t, err, auth.ErrInvalidHash)
}

func TestAuthService_Login_RealTokenManager(t *testing.T) {
	store, _ := newLoginFixture(t)
	users := NewUserService(store, nil, nil)

	tm, err := auth.NewTokenManager(hexCodec{}, users)
	require.NoError(t, err)

	svc := NewAuthService(store, tm, nil)
	res, err := svc.Login(context.Background(), LoginInput{Email: "a@b.com", Password: "correct"})
	require.NoError(t, err)

	email, _, err := tm.Decode(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", email)
}

// hexCodec is a reversible, delimiter-free stand-in for the AES codec.
type hexCodec struct{}

func (hexCodec) Encrypt(s string) (string, error) { return hex.EncodeToString([]byte(s)), nil }

func (hexCodec) Decrypt(s string) (string, error) {
	b, err := hex.DecodeString(s)
	return string(b), err
}
