// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/bizdesk/internal/audit"
	"github.com/carterperez-dev/bizdesk/internal/core"
	"github.com/carterperez-dev/bizdesk/internal/mail"
	"github.com/carterperez-dev/bizdesk/internal/metrics"
	"github.com/carterperez-dev/bizdesk/internal/middleware"
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrNotVerified          = errors.New("email not verified")
	ErrEmailExists          = errors.New("email already exists")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrMailDelivery         = errors.New("mail delivery failed")
)

type UserInfo struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        *string
	Role         string
	IsVerified   bool
	CreatedAt    time.Time
}

type NewUser struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        *string
	Role         string
	IsVerified   bool
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(ctx context.Context, user NewUser) (*UserInfo, error)
	MarkVerified(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

type ServiceConfig struct {
	Repo        Repository
	JWT         *JWTManager
	Users       UserProvider
	Registry    Registry
	Mailer      mail.Sender
	Audit       *audit.Logger
	Logger      *slog.Logger
	OTPTTL      time.Duration
	MaxAttempts int
}

type Service struct {
	repo        Repository
	jwt         *JWTManager
	users       UserProvider
	registry    Registry
	mailer      mail.Sender
	audit       *audit.Logger
	logger      *slog.Logger
	otpTTL      time.Duration
	maxAttempts int

	now          func() time.Time
	generateCode func() (string, error)
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auditLog := cfg.Audit
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	ttl := cfg.OTPTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &Service{
		repo:         cfg.Repo,
		jwt:          cfg.JWT,
		users:        cfg.Users,
		registry:     cfg.Registry,
		mailer:       cfg.Mailer,
		audit:        auditLog,
		logger:       logger,
		otpTTL:       ttl,
		maxAttempts:  cfg.MaxAttempts,
		now:          time.Now,
		generateCode: core.GenerateOTP,
	}
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
) (*RegisterResponse, error) {
	ctx, span := core.StartSpan(ctx, "auth.register")
	defer span.End()

	email := normalizeEmail(req.Email)

	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	_, err = s.users.Create(ctx, NewUser{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		IsVerified:   false,
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	code, err := s.issueCode(ctx, email)
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	if err := s.send(ctx, mail.VerificationMessage(email, code, s.otpTTL)); err != nil {
		s.logger.WarnContext(ctx, "verification mail not sent",
			"email", email,
			"error", err,
		)
	}

	metrics.ObserveAuthEvent("register", metrics.ResultSuccess)
	s.audit.Log(ctx, "auth.register", "", email, "success")

	return &RegisterResponse{
		Message: "Registration successful. Check your email for the verification code.",
		Email:   email,
	}, nil
}

func (s *Service) VerifyOTP(
	ctx context.Context,
	req VerifyOTPRequest,
) (*VerifyOTPResponse, error) {
	ctx, span := core.StartSpan(ctx, "auth.verify_otp")
	defer span.End()

	email := normalizeEmail(req.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			metrics.ObserveAuthEvent("verify_otp", metrics.ResultDenied)
			return nil, ErrInvalidOrExpiredCode
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if _, err := s.consumeCode(ctx, email, req.Code); err != nil {
		if errors.Is(err, ErrInvalidOrExpiredCode) {
			metrics.ObserveAuthEvent("verify_otp", metrics.ResultDenied)
		}
		return nil, err
	}

	if !user.IsVerified {
		if err := s.users.MarkVerified(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("mark verified: %w", err)
		}
		user.IsVerified = true
	}

	issued, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	metrics.ObserveAuthEvent("verify_otp", metrics.ResultSuccess)
	s.audit.Log(ctx, "auth.verify_otp", user.ID, email, "success")

	return &VerifyOTPResponse{
		AccessToken: issued.Token,
		TokenType:   "Bearer",
		ExpiresAt:   issued.ExpiresAt,
		User:        toUserResponse(user),
		Message:     "Email verified successfully.",
	}, nil
}

// ResendOTP answers identically whether or not a code was issued.
func (s *Service) ResendOTP(
	ctx context.Context,
	req ResendOTPRequest,
) (*MessageResponse, error) {
	email := normalizeEmail(req.Email)
	ack := &MessageResponse{
		Message: "If the account is awaiting verification, a new code has been sent.",
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ack, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user.IsVerified {
		return ack, nil
	}

	code, err := s.issueCode(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := s.send(ctx, mail.VerificationMessage(email, code, s.otpTTL)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMailDelivery, err)
	}

	metrics.ObserveAuthEvent("resend_otp", metrics.ResultSuccess)
	return ack, nil
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
) (*LoginResponse, error) {
	ctx, span := core.StartSpan(ctx, "auth.login")
	defer span.End()

	email := normalizeEmail(req.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			s.loginDenied(ctx, email, "unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(
		req.Password,
		&user.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		s.loginDenied(ctx, email, "wrong password")
		return nil, ErrInvalidCredentials
	}

	if newHash != "" {
		if err := s.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
			s.logger.WarnContext(ctx, "password rehash not saved",
				"user_id", user.ID,
				"error", err,
			)
		}
	}

	if !user.IsVerified {
		s.loginDenied(ctx, email, "not verified")
		return nil, ErrNotVerified
	}

	issued, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("user.role", user.Role))
	metrics.ObserveAuthEvent("login", metrics.ResultSuccess)
	s.audit.Log(ctx, "auth.login", user.ID, email, "success")

	return &LoginResponse{
		AccessToken: issued.Token,
		TokenType:   "Bearer",
		ExpiresAt:   issued.ExpiresAt,
		Role:        user.Role,
	}, nil
}

func (s *Service) loginDenied(ctx context.Context, email, reason string) {
	metrics.ObserveAuthEvent("login", metrics.ResultDenied)
	s.audit.Denied(ctx, "auth.login", email, reason)
}

// ForgotPassword answers identically for unknown emails. A mail failure for
// a known account is returned so the caller can retry.
func (s *Service) ForgotPassword(
	ctx context.Context,
	req ForgotPasswordRequest,
) (*MessageResponse, error) {
	ctx, span := core.StartSpan(ctx, "auth.forgot_password")
	defer span.End()

	email := normalizeEmail(req.Email)
	ack := &MessageResponse{
		Message: "If an account exists for this email, a reset code has been sent.",
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ack, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	code, err := s.issueCode(ctx, user.Email)
	if err != nil {
		return nil, err
	}

	if err := s.send(ctx, mail.PasswordResetMessage(user.Email, code, s.otpTTL)); err != nil {
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("%w: %w", ErrMailDelivery, err)
	}

	metrics.ObserveAuthEvent("forgot_password", metrics.ResultSuccess)
	s.audit.Log(ctx, "auth.forgot_password", user.ID, user.Email, "code_sent")

	return ack, nil
}

func (s *Service) ResetPassword(
	ctx context.Context,
	req ResetPasswordRequest,
) (*MessageResponse, error) {
	ctx, span := core.StartSpan(ctx, "auth.reset_password")
	defer span.End()

	email := normalizeEmail(req.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			metrics.ObserveAuthEvent("reset_password", metrics.ResultDenied)
			return nil, ErrInvalidOrExpiredCode
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	passwordHash, err := core.HashPassword(req.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	otp, err := s.consumeCode(ctx, email, req.Code)
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredCode) {
			metrics.ObserveAuthEvent("reset_password", metrics.ResultDenied)
		}
		return nil, err
	}

	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		s.restoreCode(ctx, otp)
		return nil, fmt.Errorf("update password: %w", err)
	}

	// The code proved control of the mailbox.
	if !user.IsVerified {
		if err := s.users.MarkVerified(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("mark verified: %w", err)
		}
	}

	metrics.ObserveAuthEvent("reset_password", metrics.ResultSuccess)
	s.audit.Log(ctx, "auth.reset_password", user.ID, email, "success")

	return &MessageResponse{
		Message: "Password has been reset. You can now log in.",
	}, nil
}

// Logout revokes the token until its own expiry. Revoking an already
// revoked token is a no-op.
func (s *Service) Logout(ctx context.Context, token string) (*MessageResponse, error) {
	if token == "" {
		return nil, fmt.Errorf("logout: %w", core.ErrTokenInvalid)
	}

	claims, err := s.jwt.VerifyAccessToken(ctx, token)
	if err != nil {
		metrics.ObserveAuthEvent("logout", metrics.ResultDenied)
		return nil, fmt.Errorf("logout: %w", err)
	}

	if err := s.registry.Revoke(ctx, token, claims.ExpiresAt); err != nil {
		return nil, fmt.Errorf("logout: %w", err)
	}

	metrics.ObserveAuthEvent("logout", metrics.ResultSuccess)
	s.audit.Log(ctx, "auth.logout", claims.UserID, claims.Email, "success",
		"token_id", claims.TokenID,
	)

	return &MessageResponse{Message: "Logged out successfully."}, nil
}

// CreateUser provisions an already verified account. The welcome mail is
// best effort.
func (s *Service) CreateUser(
	ctx context.Context,
	actorID string,
	req CreateUserRequest,
) (*CreateUserResponse, error) {
	email := normalizeEmail(req.Email)

	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, NewUser{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Role:         req.Role,
		IsVerified:   true,
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.send(ctx, mail.WelcomeMessage(email, user.FirstName, user.Role)); err != nil {
		s.logger.WarnContext(ctx, "welcome mail not sent",
			"user_id", user.ID,
			"error", err,
		)
	}

	metrics.ObserveAuthEvent("create_user", metrics.ResultSuccess)
	s.audit.Log(ctx, "auth.create_user", actorID, email, "success",
		"role", user.Role,
	)

	return &CreateUserResponse{
		Message: "User created successfully.",
		User:    toUserResponse(user),
	}, nil
}

func (s *Service) Me(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

// Authenticate is the gate used by the HTTP middleware: a token is usable
// iff its signature verifies, it has not expired and it is not revoked.
// A registry failure rejects the request.
func (s *Service) Authenticate(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.registry.IsRevoked(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("authenticate: %w", core.ErrTokenRevoked)
	}

	return claims, nil
}

// PurgeExpiredCodes deletes stale OTP rows. Expired rows are never accepted,
// so this only reclaims space.
func (s *Service) PurgeExpiredCodes(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}

func (s *Service) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return ErrEmailExists
	}
	if !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("check email: %w", err)
	}
	return nil
}

// issueCode replaces any live code for email and returns the clear code.
func (s *Service) issueCode(ctx context.Context, email string) (string, error) {
	code, err := s.generateCode()
	if err != nil {
		return "", err
	}

	otp := &OneTimeCode{
		Email:     email,
		CodeHash:  core.HashToken(code),
		ExpiresAt: s.now().Add(s.otpTTL),
	}

	if err := s.repo.Upsert(ctx, otp); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	return code, nil
}

// consumeCode deletes the code on a match and returns the consumed row.
func (s *Service) consumeCode(ctx context.Context, email, code string) (*OneTimeCode, error) {
	otp, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidOrExpiredCode
		}
		return nil, fmt.Errorf("find otp: %w", err)
	}

	now := s.now()
	if !otp.IsUsable(now, s.maxAttempts) {
		return nil, ErrInvalidOrExpiredCode
	}

	if !core.CompareTokenHash(code, otp.CodeHash) {
		if err := s.repo.IncrementAttempts(ctx, email); err != nil {
			s.logger.WarnContext(ctx, "otp attempt not recorded",
				"email", email,
				"error", err,
			)
		}
		return nil, ErrInvalidOrExpiredCode
	}

	if err := s.repo.Consume(ctx, email, otp.CodeHash, now); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidOrExpiredCode
		}
		return nil, err
	}

	return otp, nil
}

// restoreCode puts a consumed code back after the step it guarded failed,
// so the user can retry with the same code. A newer code always wins.
func (s *Service) restoreCode(ctx context.Context, otp *OneTimeCode) {
	if err := s.repo.Restore(context.WithoutCancel(ctx), otp); err != nil {
		s.logger.WarnContext(ctx, "otp not restored",
			"email", otp.Email,
			"error", err,
		)
	}
}

func (s *Service) issueToken(user *UserInfo) (*IssuedToken, error) {
	issued, err := s.jwt.CreateAccessToken(TokenSubject{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}
	return issued, nil
}

func (s *Service) send(ctx context.Context, msg mail.Message) error {
	err := s.mailer.Send(ctx, msg)
	metrics.ObserveMail(msg.Template, err)
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
