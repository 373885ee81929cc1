package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/userdesk/userdesk/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

// errInvalidSort guards the ORDER BY whitelist. The service drops unknown
// sort fields first, so callers never see it.
var errInvalidSort = errors.New("invalid sort field")

const userColumns = `id, first_name, last_name, ci_number, email, password_hash, active, created_at, updated_at`

// FindActiveByEmail retrieves an active user by email address.
func (r *Repository) FindActiveByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 AND active = TRUE
	`

	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// FindByID retrieves a user by ID regardless of active state.
func (r *Repository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// Save inserts a user when ID is zero and updates it otherwise.
// ID and timestamps are written back into user.
func (r *Repository) Save(ctx context.Context, user *model.User) error {
	if user.ID == 0 {
		return r.insertUser(ctx, user)
	}
	return r.updateUser(ctx, user)
}

func (r *Repository) insertUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (first_name, last_name, ci_number, email, password_hash, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		user.CINumber,
		user.Email,
		user.PasswordHash,
		user.Active,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *Repository) updateUser(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET first_name = $2, last_name = $3, ci_number = $4, email = $5,
		    password_hash = $6, active = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.CINumber,
		user.Email,
		user.PasswordHash,
		user.Active,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	return nil
}

// Delete removes a user permanently.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// List returns one page of active users matching filter.
// page is 1-based; limit must be positive.
func (r *Repository) List(ctx context.Context, filter model.UserFilter, sort model.UserSort, limit, page int) (*model.UserPage, error) {
	where, args := buildUserWhere(filter)

	orderBy, err := buildUserOrder(sort)
	if err != nil {
		return nil, err
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM users WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, userColumns, where, orderBy, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*model.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return &model.UserPage{
		Users: users,
		Page:  page,
		Limit: limit,
		Total: total,
	}, nil
}

// buildUserWhere renders the WHERE clause for a listing.
// Only active users are ever listed.
func buildUserWhere(filter model.UserFilter) (string, []any) {
	clauses := []string{"active = TRUE"}
	var args []any

	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	add("first_name", filter.FirstName)
	add("last_name", filter.LastName)
	add("ci_number", filter.CINumber)
	add("email", filter.Email)

	return strings.Join(clauses, " AND "), args
}

// buildUserOrder renders the ORDER BY clause. Column names come from a
// whitelist, never from the request.
func buildUserOrder(sort model.UserSort) (string, error) {
	if !sort.IsSet() {
		return "id ASC", nil
	}
	if !model.SortableFields[sort.Field] {
		return "", errInvalidSort
	}

	dir := "ASC"
	if sort.Direction == model.SortDesc {
		dir = "DESC"
	}

	if sort.Field == "id" {
		return "id " + dir, nil
	}
	return sort.Field + " " + dir + ", id ASC", nil
}

// scanUser scans a single row into a User model.
func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.CINumber,
		&user.Email,
		&user.PasswordHash,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return &user, err
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
