// AngelaMos | 2026
// dto.go

package auth

import (
	"time"
)

type RegisterRequest struct {
	Email     string  `json:"email"     validate:"required,email,max=255"`
	Password  string  `json:"password"  validate:"required,min=8,max=128"`
	FirstName string  `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string  `json:"lastName"  validate:"required,min=1,max=100"`
	Phone     *string `json:"phone"     validate:"omitempty,max=32"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
	Code  string `json:"otp"  validate:"required,len=6,numeric"`
}

type ResendOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"       validate:"required,email,max=255"`
	Code        string `json:"otp"         validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=128"`
}

type CreateUserRequest struct {
	Email     string  `json:"email"     validate:"required,email,max=255"`
	Password  string  `json:"password"  validate:"required,min=8,max=128"`
	FirstName string  `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string  `json:"lastName"  validate:"required,min=1,max=100"`
	Phone     *string `json:"phone"     validate:"omitempty,max=32"`
	Role      string  `json:"role"      validate:"required,oneof=administrator controller client"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// UserResponse never carries the password hash.
type UserResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Phone      *string   `json:"phone,omitempty"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
}

type VerifyOTPResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        UserResponse `json:"user"`
	Message     string       `json:"message"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Role        string    `json:"role"`
}

type CreateUserResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

func toUserResponse(u *UserInfo) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Phone:      u.Phone,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
}
