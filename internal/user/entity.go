// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Phone        *string   `db:"phone"`
	Role         string    `db:"role"`
	IsVerified   bool      `db:"is_verified"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdministrator
}

const (
	RoleAdministrator = "administrator"
	RoleController    = "controller"
	RoleClient        = "client"
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdministrator, RoleController, RoleClient:
		return true
	}
	return false
}

// Fields is a partial update. A nil pointer leaves the column untouched.
// Email is deliberately absent: it never changes after creation.
type Fields struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Role      *string
}

func (f Fields) Empty() bool {
	return f.FirstName == nil && f.LastName == nil &&
		f.Phone == nil && f.Role == nil
}
