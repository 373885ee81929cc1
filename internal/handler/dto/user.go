// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/userdesk/userdesk/internal/model"
)

// LoginRequest represents the request body for POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	User  *UserResponse `json:"user"`
	Token string        `json:"token"`
}

// CreateUserRequest represents the request body for creating a user.
type CreateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	CINumber  string `json:"ci_number"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Active    *bool  `json:"active,omitempty"`
}

// UpdateUserRequest represents the request body for updating a user.
// Omitted fields are left unchanged.
type UpdateUserRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	CINumber  *string `json:"ci_number,omitempty"`
	Email     *string `json:"email,omitempty"`
	Password  *string `json:"password,omitempty"`
	Active    *bool   `json:"active,omitempty"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	CINumber  string    `json:"ci_number"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserListResponse represents a page of users.
type UserListResponse struct {
	Users      []*UserResponse `json:"users"`
	Pagination Pagination      `json:"pagination"`
}

// Pagination provides page-based pagination info.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// MessageResponse is the body of every error and of delete confirmations.
// Error carries a sanitized cause on 503 responses only.
type MessageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// ToUserResponse converts a User model to UserResponse DTO.
func ToUserResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		CINumber:  user.CINumber,
		Email:     user.Email,
		Active:    user.Active,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

// ToUserListResponse converts a UserPage to its response DTO.
func ToUserListResponse(page *model.UserPage) *UserListResponse {
	users := make([]*UserResponse, 0, len(page.Users))
	for _, u := range page.Users {
		users = append(users, ToUserResponse(u))
	}
	return &UserListResponse{
		Users: users,
		Pagination: Pagination{
			Page:  page.Page,
			Limit: page.Limit,
			Total: page.Total,
			Pages: page.Pages(),
		},
	}
}

// AuditEventResponse represents one audit record in API responses.
type AuditEventResponse struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	ActorID    int64     `json:"actor_id,omitempty"`
	SubjectID  int64     `json:"subject_id,omitempty"`
	ClientKey  string    `json:"client_key"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AuditListResponse is the audit trail of one account.
type AuditListResponse struct {
	Events []*AuditEventResponse `json:"events"`
}

// ToAuditListResponse converts audit events to their response DTO.
func ToAuditListResponse(events []*model.AuditEvent) *AuditListResponse {
	out := make([]*AuditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, &AuditEventResponse{
			ID:         e.ID,
			Type:       string(e.Type),
			ActorID:    e.ActorID,
			SubjectID:  e.SubjectID,
			ClientKey:  e.ClientKey,
			OccurredAt: e.OccurredAt,
		})
	}
	return &AuditListResponse{Events: out}
}
