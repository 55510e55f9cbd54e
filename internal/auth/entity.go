// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// OneTimeCode is the single live code for an email. Only the SHA-256 digest
// of the code is stored.
type OneTimeCode struct {
	Email     string    `db:"email"`
	CodeHash  string    `db:"code_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	Attempts  int       `db:"attempts"`
	CreatedAt time.Time `db:"created_at"`
}

func (c *OneTimeCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

func (c *OneTimeCode) IsExhausted(maxAttempts int) bool {
	return maxAttempts > 0 && c.Attempts >= maxAttempts
}

func (c *OneTimeCode) IsUsable(now time.Time, maxAttempts int) bool {
	return !c.IsExpired(now) && !c.IsExhausted(maxAttempts)
}
