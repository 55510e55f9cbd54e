// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/bizdesk/internal/auth"
	"github.com/carterperez-dev/bizdesk/internal/core"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) Create(
	ctx context.Context,
	nu auth.NewUser,
) (*auth.UserInfo, error) {
	role := nu.Role
	if role == "" {
		role = RoleClient
	}
	if !ValidRole(role) {
		return nil, fmt.Errorf(
			"create user: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	user := &User{
		ID:           uuid.New().String(),
		Email:        normalizeEmail(nu.Email),
		PasswordHash: nu.PasswordHash,
		FirstName:    nu.FirstName,
		LastName:     nu.LastName,
		Phone:        nu.Phone,
		Role:         role,
		IsVerified:   nu.IsVerified,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) MarkVerified(ctx context.Context, userID string) error {
	return s.repo.MarkVerified(ctx, userID)
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateUser(
	ctx context.Context,
	id string,
	fields Fields,
) (*User, error) {
	if fields.Role != nil && !ValidRole(*fields.Role) {
		return nil, fmt.Errorf(
			"update user: invalid role %q: %w",
			*fields.Role,
			core.ErrInvalidInput,
		)
	}

	return s.repo.Update(ctx, id, fields)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) CountByRole(ctx context.Context) ([]RoleCount, error) {
	return s.repo.CountByRole(ctx)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	return s.repo.GetByID(ctx, userID)
}

// UpdateMe never lets a caller change their own role.
func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	fields Fields,
) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	fields.Role = nil
	return s.repo.Update(ctx, userID, fields)
}

func (s *Service) DeleteUser(
	ctx context.Context,
	requesterID, targetID string,
) error {
	if requesterID == targetID {
		return fmt.Errorf("cannot delete own account: %w", core.ErrForbidden)
	}

	return s.repo.Delete(ctx, targetID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Phone:        u.Phone,
		Role:         u.Role,
		IsVerified:   u.IsVerified,
		CreatedAt:    u.CreatedAt,
	}
}

var _ auth.UserProvider = (*Service)(nil)
