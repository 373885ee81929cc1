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

// Listing limits.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// UserService handles user business logic.
type UserService struct {
	store   UserStore
	cache   PrincipalCache
	metrics metrics.Recorder
}

// NewUserService creates a new UserService. cache may be nil.
func NewUserService(store UserStore, cache PrincipalCache, recorder metrics.Recorder) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &UserService{
		store:   store,
		cache:   cache,
		metrics: recorder,
	}
}

// FindActiveByEmail resolves the principal named by a session token.
// It returns (nil, nil) when no active user has that email, so it can
// serve as an auth.PrincipalLookup.
func (s *UserService) FindActiveByEmail(ctx context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)

	// The generation is read before the store so an invalidation that
	// lands during the lookup makes the cache write below a no-op.
	var (
		gen       int64
		cacheable bool
	)
	if s.cache != nil {
		if cached, _ := s.cache.GetPrincipal(ctx, email); cached != nil {
			s.metrics.IncPrincipalCacheHit()
			return cached, nil
		}
		s.metrics.IncPrincipalCacheMiss()

		var err error
		gen, err = s.cache.PrincipalGeneration(ctx, email)
		cacheable = err == nil
	}

	user, err := s.store.FindActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find principal: %w", err)
	}

	if cacheable {
		// Cache failures are non-fatal
		_, _ = s.cache.SetPrincipal(ctx, user, gen)
	}

	return user, nil
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsersInput defines input for listing users.
type ListUsersInput struct {
	Filter model.UserFilter
	Sort   model.UserSort
	Limit  int
	Page   int
}

// ListUsers returns one page of active users.
func (s *UserService) ListUsers(ctx context.Context, input ListUsersInput) (*model.UserPage, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	page := input.Page
	if page < 1 {
		page = 1
	}

	sort := input.Sort
	if sort.IsSet() && !model.SortableFields[sort.Field] {
		// Unknown columns fall back to default ordering
		sort = model.UserSort{}
	}

	filter := input.Filter
	filter.Email = model.NormalizeEmail(filter.Email)

	result, err := s.store.List(ctx, filter, sort, limit, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return result, nil
}

// CreateUserInput defines input for creating a user.
type CreateUserInput struct {
	FirstName string
	LastName  string
	CINumber  string
	Email     string
	Password  string
	Active    *bool
}

// CreateUser validates input, hashes the password and stores a new user.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*model.User, error) {
	email := model.NormalizeEmail(input.Email)
	if err := validateProfile(input.FirstName, input.LastName, input.CINumber, email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}

	user := &model.User{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		CINumber:     input.CINumber,
		Email:        email,
		PasswordHash: hash,
		Active:       active,
	}

	if err := s.store.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.IncUserCreated()
	return user, nil
}

// UpdateUserInput defines input for updating a user. Nil fields are left unchanged.
type UpdateUserInput struct {
	FirstName *string
	LastName  *string
	CINumber  *string
	Email     *string
	Password  *string
	Active    *bool
}

// UpdateUser applies a partial update to a user.
func (s *UserService) UpdateUser(ctx context.Context, id int64, input UpdateUserInput) (*model.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	previousEmail := user.Email

	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.CINumber != nil {
		user.CINumber = *input.CINumber
	}
	if input.Email != nil {
		user.Email = model.NormalizeEmail(*input.Email)
	}
	if input.Active != nil {
		user.Active = *input.Active
	}

	if err := validateProfile(user.FirstName, user.LastName, user.CINumber, user.Email); err != nil {
		return nil, err
	}

	if input.Password != nil {
		if err := ValidatePassword(*input.Password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(*input.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.store.Save(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repository.ErrEmailExists):
			return nil, ErrEmailExists
		default:
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}

	s.invalidate(ctx, previousEmail, user.Email)
	s.metrics.IncUserUpdated()
	return user, nil
}

// DeleteUser permanently removes a user.
func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.invalidate(ctx, user.Email)
	s.metrics.IncUserDeleted()
	return nil
}

// invalidate drops cached principals for the given emails.
func (s *UserService) invalidate(ctx context.Context, emails ...string) {
	if s.cache == nil {
		return
	}
	seen := make(map[string]bool, len(emails))
	for _, email := range emails {
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		// Cache failures are non-fatal; entries expire on their own
		_ = s.cache.DeletePrincipal(ctx, email)
	}
}
