// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/bizdesk/internal/core"
	"github.com/carterperez-dev/bizdesk/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts /auth. limiter guards the unauthenticated
// credential endpoints and may be nil.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly, limiter func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter)
			}
			r.Post("/register", h.Register)
			r.Post("/verify-otp", h.VerifyOTP)
			r.Post("/resend-otp", h.ResendOTP)
			r.Post("/login", h.Login)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Post("/reset-password", h.ResetPassword)
		})

		r.Delete("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/me", h.GetMe)

			r.With(adminOnly).Post("/create-user", h.CreateUser)
		})
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.VerifyOTP(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req ResendOTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.ResendOTP(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.ForgotPassword(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.ResetPassword(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractToken(r)
	if token == "" {
		core.JSONError(w, core.UnauthorizedError("missing authorization token"))
		return
	}

	resp, err := h.service.Logout(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	user, err := h.service.Me(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, user)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.CreateUser(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmailExists):
		core.JSONError(w, core.DuplicateError("email"))
	case errors.Is(err, ErrInvalidCredentials):
		core.JSONError(w, core.NewAppError(
			err,
			"invalid email or password",
			http.StatusUnauthorized,
			"INVALID_CREDENTIALS",
		))
	case errors.Is(err, ErrNotVerified):
		core.JSONError(w, core.NewAppError(
			err,
			"email not verified, check your inbox for the verification code",
			http.StatusForbidden,
			"NOT_VERIFIED",
		))
	case errors.Is(err, ErrInvalidOrExpiredCode):
		core.JSONError(w, core.NewAppError(
			err,
			"invalid or expired code",
			http.StatusBadRequest,
			"INVALID_OTP",
		))
	case errors.Is(err, ErrMailDelivery):
		core.JSONError(w, core.NewAppError(
			err,
			"could not send the code, try again later",
			http.StatusServiceUnavailable,
			"MAIL_UNAVAILABLE",
		))
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenRevoked):
		core.JSONError(w, core.TokenRevokedError())
	case errors.Is(err, core.ErrTokenInvalid):
		core.JSONError(w, core.TokenInvalidError())
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "invalid role")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	default:
		core.InternalServerError(w, err)
	}
}
