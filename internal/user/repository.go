// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carterperez-dev/bizdesk/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, id string, fields Fields) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkVerified(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
	CountByRole(ctx context.Context) ([]RoleCount, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const userColumns = `id, email, password_hash, first_name, last_name, phone,
		       role, is_verified, created_at, updated_at`

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, phone,
			role, is_verified
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, user, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Role,
		user.IsVerified,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user User
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var user User
	err := r.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &user, nil
}

func (r *repository) Update(
	ctx context.Context,
	id string,
	fields Fields,
) (*User, error) {
	if fields.Empty() {
		return r.GetByID(ctx, id)
	}

	query, args := buildUpdate(id, fields)

	var user User
	err := r.db.GetContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	return &user, nil
}

// buildUpdate maps the present fields onto a fixed column whitelist. Only
// placeholders are interpolated; every value travels as a bind argument.
func buildUpdate(id string, fields Fields) (string, []any) {
	columns := []struct {
		name  string
		value *string
	}{
		{"first_name", fields.FirstName},
		{"last_name", fields.LastName},
		{"phone", fields.Phone},
		{"role", fields.Role},
	}

	sets := make([]string, 0, len(columns)+1)
	args := make([]any, 0, len(columns)+1)
	args = append(args, id)

	for _, c := range columns {
		if c.value == nil {
			continue
		}
		args = append(args, *c.value)
		sets = append(sets, fmt.Sprintf("%s = $%d", c.name, len(args)))
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf(`
		UPDATE users
		SET %s
		WHERE id = $1
		RETURNING `+userColumns,
		strings.Join(sets, ", "),
	)

	return query, args
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "update password", query, id, passwordHash)
}

func (r *repository) MarkVerified(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET is_verified = true, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "mark verified", query, id)
}

// Delete is a hard delete. Rows referencing the user (notifications, sales
// seller ids) are the caller's concern.
func (r *repository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "delete user", `DELETE FROM users WHERE id = $1`, id)
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	conditions := []string{"TRUE"}
	var args []any

	if params.Search != "" {
		args = append(args, "%"+escapeLike(params.Search)+"%")
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%[1]d OR first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d)",
			len(args),
		))
	}

	if params.Role != "" {
		args = append(args, params.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}

	whereClause := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM users WHERE " + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT `+userColumns+`
		FROM users
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, len(args)+1, len(args)+2)

	args = append(args, params.PageSize, params.Offset())

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func (r *repository) CountByRole(ctx context.Context) ([]RoleCount, error) {
	query := `
		SELECT role,
		       COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE NOT is_verified) AS unverified
		FROM users
		GROUP BY role
		ORDER BY role`

	var counts []RoleCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}

	return counts, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
