package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/userdesk/userdesk/internal/auth"
	"github.com/userdesk/userdesk/internal/handler/dto"
	"github.com/userdesk/userdesk/internal/model"
	"github.com/userdesk/userdesk/internal/service"
)

// UserManager is the user CRUD surface. Implemented by service.UserService.
type UserManager interface {
	ListUsers(ctx context.Context, input service.ListUsersInput) (*model.UserPage, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	CreateUser(ctx context.Context, input service.CreateUserInput) (*model.User, error)
	UpdateUser(ctx context.Context, id int64, input service.UpdateUserInput) (*model.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// UserHandler handles HTTP requests for user operations.
// Every route sits behind the Authenticate middleware.
type UserHandler struct {
	svc    UserManager
	audit  Auditor
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler. audit may be nil.
func NewUserHandler(svc UserManager, audit Auditor, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		svc:    svc,
		audit:  audit,
		logger: logger,
	}
}

// List handles GET /users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ListUsers(r.Context(), parseListQuery(r.URL.Query()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserListResponse(page))
}

// Get handles GET /users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, msgUserNotFound)
		return
	}

	user, err := h.svc.GetUser(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// Create handles POST /users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	user, err := h.svc.CreateUser(r.Context(), service.CreateUserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		CINumber:  req.CINumber,
		Email:     req.Email,
		Password:  req.Password,
		Active:    req.Active,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("user_created",
		"user_id", user.ID,
		"actor_id", auth.UserIDFromContext(r.Context()),
	)
	record(h.audit, r, model.AuditUserCreated, user.ID)

	writeJSON(w, http.StatusCreated, dto.ToUserResponse(user))
}

// Update handles PUT /users/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, msgUserNotFound)
		return
	}

	var req dto.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	user, err := h.svc.UpdateUser(r.Context(), id, service.UpdateUserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		CINumber:  req.CINumber,
		Email:     req.Email,
		Password:  req.Password,
		Active:    req.Active,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("user_updated",
		"user_id", user.ID,
		"actor_id", auth.UserIDFromContext(r.Context()),
		"password_changed", req.Password != nil,
	)
	record(h.audit, r, model.AuditUserUpdated, user.ID)

	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// Delete handles DELETE /users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, msgUserNotFound)
		return
	}

	if err := h.svc.DeleteUser(r.Context(), id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("user_deleted",
		"user_id", id,
		"actor_id", auth.UserIDFromContext(r.Context()),
	)
	record(h.audit, r, model.AuditUserDeleted, id)

	writeMessage(w, http.StatusOK, msgUserDeleted)
}

// parseUserID reads the {id} path parameter. Non-numeric ids name no user.
func parseUserID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseListQuery reads listing parameters. Malformed numbers fall back to
// defaults; sorting applies only when both field and direction are valid.
func parseListQuery(q url.Values) service.ListUsersInput {
	input := service.ListUsersInput{
		Filter: model.UserFilter{
			FirstName: q.Get("first_name"),
			LastName:  q.Get("last_name"),
			CINumber:  q.Get("ci_number"),
			Email:     q.Get("email"),
		},
	}

	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		input.Limit = limit
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		input.Page = page
	}

	field := q.Get("sortField")
	if dir, ok := model.ParseSortDirection(q.Get("sortDirection")); ok && model.SortableFields[field] {
		input.Sort = model.UserSort{Field: field, Direction: dir}
	}

	return input
}
