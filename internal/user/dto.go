// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

type UpdateMeRequest struct {
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName,omitempty"  validate:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone,omitempty"     validate:"omitempty,max=32"`
}

type UpdateUserRequest struct {
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName,omitempty"  validate:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone,omitempty"     validate:"omitempty,max=32"`
	Role      *string `json:"role,omitempty"      validate:"omitempty,oneof=administrator controller client"`
}

func (r UpdateMeRequest) Fields() Fields {
	return Fields{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
	}
}

func (r UpdateUserRequest) Fields() Fields {
	return Fields{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
		Role:      r.Role,
	}
}

type UserResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Phone      *string   `json:"phone,omitempty"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type ListUsersParams struct {
	Page     int
	PageSize int
	Search   string
	Role     string
}

func (p *ListUsersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type RoleCount struct {
	Role       string `db:"role"       json:"role"`
	Total      int    `db:"total"      json:"total"`
	Unverified int    `db:"unverified" json:"unverified"`
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Phone:      u.Phone,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func ToUserResponseList(users []User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, ToUserResponse(&u))
	}
	return responses
}
