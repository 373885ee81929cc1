package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/userdesk/userdesk/internal/model"
	"github.com/userdesk/userdesk/internal/repository"
)

var errStoreDown = errors.New("connection refused")

// memStore is an in-memory UserStore.
type memStore struct {
	mu     sync.Mutex
	users  map[int64]*model.User
	nextID int64
	err    error
	calls  int
}

func newMemStore() *memStore {
	return &memStore{users: make(map[int64]*model.User)}
}

func (s *memStore) put(u *model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *u
	cp.ID = s.nextID
	s.users[cp.ID] = &cp
	out := cp
	return &out
}

func (s *memStore) FindActiveByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	for _, u := range s.users {
		if u.Email == email && u.Active {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *memStore) FindByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) Save(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, u := range s.users {
		if u.Email == user.Email && u.ID != user.ID {
			return repository.ErrEmailExists
		}
	}
	now := time.Now().UTC()
	if user.ID == 0 {
		s.nextID++
		user.ID = s.nextID
		user.CreatedAt = now
	} else if _, ok := s.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	user.UpdatedAt = now
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memStore) List(_ context.Context, filter model.UserFilter, us model.UserSort, limit, page int) (*model.UserPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}

	var matched []*model.User
	for _, u := range s.users {
		if !u.Active {
			continue
		}
		if filter.LastName != "" && u.LastName != filter.LastName {
			continue
		}
		if filter.Email != "" && u.Email != filter.Email {
			continue
		}
		cp := *u
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool {
		if us.Field == "last_name" {
			c := strings.Compare(matched[i].LastName, matched[j].LastName)
			if c != 0 {
				if us.Direction == model.SortDesc {
					return c > 0
				}
				return c < 0
			}
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	return &model.UserPage{Users: matched[start:end], Page: page, Limit: limit, Total: total}, nil
}

// gatedStore parks FindActiveByEmail after it has read the row until
// release is closed.
type gatedStore struct {
	*memStore
	loaded  chan struct{}
	release chan struct{}
}

func (s *gatedStore) FindActiveByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := s.memStore.FindActiveByEmail(ctx, email)
	close(s.loaded)
	<-s.release
	return u, err
}

// memCache is an in-memory PrincipalCache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]*model.User
	gens    map[string]int64
	deleted []string
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*model.User), gens: make(map[string]int64)}
}

func (c *memCache) GetPrincipal(_ context.Context, email string) (*model.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.entries[email]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (c *memCache) PrincipalGeneration(_ context.Context, email string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[email], nil
}

func (c *memCache) SetPrincipal(_ context.Context, user *model.User, generation int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[user.Email] != generation {
		return false, nil
	}
	cp := *user
	cp.PasswordHash = ""
	c.entries[user.Email] = &cp
	return true, nil
}

func (c *memCache) DeletePrincipal(_ context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, email)
	c.gens[email]++
	c.deleted = append(c.deleted, email)
	return nil
}

// stubMinter mints predictable tokens.
type stubMinter struct {
	err error
}

func (m stubMinter) Mint(email string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "enc(" + email + ").enc(expiry)", nil
}
