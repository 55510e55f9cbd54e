// AngelaMos | 2026
// handler.go

package notification

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carterperez-dev/bizdesk/internal/core"
	"github.com/carterperez-dev/bizdesk/internal/middleware"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/notifications", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Get("/unread-count", h.UnreadCount)
		r.Post("/{notificationID}/read", h.MarkRead)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	params := ListParams{
		Page:       queryInt(r, "page", 1),
		PageSize:   queryInt(r, "page_size", 20),
		UnreadOnly: r.URL.Query().Get("unread") == "true",
	}
	params.Normalize()

	items, total, err := h.repo.ListForUser(r.Context(), userID, params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToResponseList(items), params.Page, params.PageSize, total)
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.repo.CountUnread(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, map[string]int{"unread": n})
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "notificationID")
	if _, err := uuid.Parse(id); err != nil {
		core.NotFound(w, "notification")
		return
	}

	err := h.repo.MarkRead(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "notification")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	parsed, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return defaultVal
	}
	return parsed
}
