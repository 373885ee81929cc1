// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
)

// User is an account record and the authenticated principal.
// Email is the stable identity encoded into session tokens.
type User struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	CINumber     string    `json:"ci_number"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CanAuthenticate reports whether the user may hold a session.
func (u *User) CanAuthenticate() bool {
	return u != nil && u.Active
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SortDirection is the ordering of a user listing.
type SortDirection string

// Sort directions.
const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortableFields lists the columns a listing can be ordered by.
var SortableFields = map[string]bool{
	"id":         true,
	"first_name": true,
	"last_name":  true,
	"ci_number":  true,
	"email":      true,
	"created_at": true,
	"updated_at": true,
}

// ParseSortDirection accepts "asc"/"desc" case-insensitively.
func ParseSortDirection(s string) (SortDirection, bool) {
	switch strings.ToLower(s) {
	case "asc":
		return SortAsc, true
	case "desc":
		return SortDesc, true
	default:
		return "", false
	}
}

// UserFilter holds exact-match filters for listing users.
// Empty fields are ignored.
type UserFilter struct {
	FirstName string
	LastName  string
	CINumber  string
	Email     string
}

// UserSort orders a listing. A zero value means default ordering (id asc).
type UserSort struct {
	Field     string
	Direction SortDirection
}

// IsSet reports whether an explicit ordering was requested.
func (s UserSort) IsSet() bool {
	return s.Field != "" && s.Direction != ""
}

// UserPage is one page of a user listing.
type UserPage struct {
	Users []*User
	Page  int
	Limit int
	Total int64
}

// Pages returns the number of pages for the current limit.
func (p *UserPage) Pages() int64 {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + int64(p.Limit) - 1) / int64(p.Limit)
}
