// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/bizdesk/internal/core"
)

type Repository interface {
	Upsert(ctx context.Context, code *OneTimeCode) error
	FindByEmail(ctx context.Context, email string) (*OneTimeCode, error)
	IncrementAttempts(ctx context.Context, email string) error
	Consume(ctx context.Context, email, codeHash string, now time.Time) error
	Restore(ctx context.Context, code *OneTimeCode) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Upsert replaces any previous code for the email and resets its attempts.
func (r *repository) Upsert(ctx context.Context, code *OneTimeCode) error {
	query := `
		INSERT INTO otp_codes (email, code_hash, expires_at, attempts)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (email) DO UPDATE
		SET code_hash  = EXCLUDED.code_hash,
		    expires_at = EXCLUDED.expires_at,
		    attempts   = 0,
		    created_at = NOW()
		RETURNING created_at`

	err := r.db.GetContext(ctx, &code.CreatedAt, query,
		code.Email,
		code.CodeHash,
		code.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert otp: %w", err)
	}

	code.Attempts = 0
	return nil
}

// Restore re-inserts a consumed code with its original expiry and attempts.
// It never overwrites a code issued in the meantime.
func (r *repository) Restore(ctx context.Context, code *OneTimeCode) error {
	query := `
		INSERT INTO otp_codes (email, code_hash, expires_at, attempts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		code.Email,
		code.CodeHash,
		code.ExpiresAt,
		code.Attempts,
	)
	if err != nil {
		return fmt.Errorf("restore otp: %w", err)
	}
	return nil
}

func (r *repository) FindByEmail(
	ctx context.Context,
	email string,
) (*OneTimeCode, error) {
	query := `
		SELECT email, code_hash, expires_at, attempts, created_at
		FROM otp_codes
		WHERE email = $1`

	var code OneTimeCode
	err := r.db.GetContext(ctx, &code, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find otp: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find otp: %w", err)
	}

	return &code, nil
}

func (r *repository) IncrementAttempts(ctx context.Context, email string) error {
	query := `UPDATE otp_codes SET attempts = attempts + 1 WHERE email = $1`

	if _, err := r.db.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("increment otp attempts: %w", err)
	}
	return nil
}

// Consume deletes the row only if it still holds the same unexpired code, so
// two concurrent submissions of one code cannot both succeed.
func (r *repository) Consume(
	ctx context.Context,
	email, codeHash string,
	now time.Time,
) error {
	query := `
		DELETE FROM otp_codes
		WHERE email = $1 AND code_hash = $2 AND expires_at > $3`

	result, err := r.db.ExecContext(ctx, query, email, codeHash, now)
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("consume otp: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM otp_codes WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired otps: %w", err)
	}

	return result.RowsAffected()
}
