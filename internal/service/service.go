// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"

	"github.com/userdesk/userdesk/internal/model"
)

// Service errors.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized user")
)

// UserStore persists users. Implemented by repository.Repository.
// Lookups return repository.ErrUserNotFound when no row matches.
type UserStore interface {
	FindActiveByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	Save(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter model.UserFilter, sort model.UserSort, limit, page int) (*model.UserPage, error)
}

// PrincipalCache caches resolved principals. Implemented by cache.Cache.
// A miss is (nil, nil). SetPrincipal must refuse the write when
// DeletePrincipal ran for the email after generation was read.
type PrincipalCache interface {
	GetPrincipal(ctx context.Context, email string) (*model.User, error)
	PrincipalGeneration(ctx context.Context, email string) (int64, error)
	SetPrincipal(ctx context.Context, user *model.User, generation int64) (bool, error)
	DeletePrincipal(ctx context.Context, email string) error
}

// TokenMinter issues session tokens. Implemented by auth.TokenManager.
type TokenMinter interface {
	Mint(email string) (string, error)
}
