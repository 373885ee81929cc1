package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/userdesk/userdesk/internal/auth"
	"github.com/userdesk/userdesk/internal/metrics"
	"github.com/userdesk/userdesk/internal/model"
	"github.com/userdesk/userdesk/internal/repository"
)

// Login outcomes reported to metrics.
const (
	loginSuccess  = "success"
	loginRejected = "rejected"
	loginError    = "error"
)

// AuthService handles the login flow.
type AuthService struct {
	store   UserStore
	tokens  TokenMinter
	metrics metrics.Recorder
}

// NewAuthService creates a new AuthService.
// The store is consulted directly; cached principals carry no password hash.
func NewAuthService(store UserStore, tokens TokenMinter, recorder metrics.Recorder) *AuthService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AuthService{
		store:   store,
		tokens:  tokens,
		metrics: recorder,
	}
}

// LoginInput holds login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult is a successful login.
type LoginResult struct {
	User  *model.User
	Token string
}

// Login verifies credentials and mints a session token.
// Bad credentials return ErrUnauthorized; store and codec failures are
// returned wrapped.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := model.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		s.metrics.IncLogin(loginRejected)
		return nil, ErrUnauthorized
	}

	user, err := s.store.FindActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Spend the same time as a real verification
			auth.BurnVerify(input.Password)
			s.metrics.IncLogin(loginRejected)
			return nil, ErrUnauthorized
		}
		s.metrics.IncLogin(loginError)
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !user.CanAuthenticate() {
		auth.BurnVerify(input.Password)
		s.metrics.IncLogin(loginRejected)
		return nil, ErrUnauthorized
	}

	match, err := auth.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		s.metrics.IncLogin(loginError)
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !match {
		s.metrics.IncLogin(loginRejected)
		return nil, ErrUnauthorized
	}

	token, err := s.tokens.Mint(user.Email)
	if err != nil {
		s.metrics.IncLogin(loginError)
		return nil, fmt.Errorf("failed to mint token: %w", err)
	}

	s.metrics.IncLogin(loginSuccess)
	return &LoginResult{User: user, Token: token}, nil
}
