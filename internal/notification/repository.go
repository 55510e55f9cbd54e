// AngelaMos | 2026
// repository.go

package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/carterperez-dev/bizdesk/internal/core"
)

type Repository interface {
	CreateForRole(ctx context.Context, role, title, message, kind string) (int64, error)
	ListForUser(ctx context.Context, userID string, params ListParams) ([]Notification, int, error)
	MarkRead(ctx context.Context, userID, id string) error
	CountUnread(ctx context.Context, userID string) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// CreateForRole fans one notification out to every user holding role in a
// single statement.
func (r *repository) CreateForRole(
	ctx context.Context,
	role, title, message, kind string,
) (int64, error) {
	query := `
		INSERT INTO notifications (id, user_id, title, message, kind)
		SELECT gen_random_uuid(), id, $2, $3, $4
		FROM users
		WHERE role = $1`

	result, err := r.db.ExecContext(ctx, query, role, title, message, kind)
	if err != nil {
		return 0, fmt.Errorf("create notifications: %w", err)
	}

	return result.RowsAffected()
}

func (r *repository) ListForUser(
	ctx context.Context,
	userID string,
	params ListParams,
) ([]Notification, int, error) {
	params.Normalize()

	conditions := []string{"user_id = $1"}
	if params.UnreadOnly {
		conditions = append(conditions, "NOT is_read")
	}
	whereClause := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM notifications WHERE " + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	query := `
		SELECT id, user_id, title, message, kind, is_read, created_at
		FROM notifications
		WHERE ` + whereClause + `
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	var items []Notification
	if err := r.db.SelectContext(ctx, &items, query, userID, params.PageSize, params.Offset()); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	return items, total, nil
}

// MarkRead is scoped to the owner so one user cannot touch another's rows.
func (r *repository) MarkRead(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("mark notification read: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}
