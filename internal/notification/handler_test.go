// AngelaMos | 2026
// handler_test.go

package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carterperez-dev/bizdesk/internal/core"
	"github.com/carterperez-dev/bizdesk/internal/middleware"
)

type inbox struct {
	byUser    map[string][]Notification
	markCalls int
}

func (i *inbox) CreateForRole(context.Context, string, string, string, string) (int64, error) {
	return 0, nil
}

func (i *inbox) ListForUser(_ context.Context, userID string, p ListParams) ([]Notification, int, error) {
	var out []Notification
	for _, n := range i.byUser[userID] {
		if p.UnreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, len(out), nil
}

func (i *inbox) MarkRead(_ context.Context, userID, id string) error {
	i.markCalls++
	for k, n := range i.byUser[userID] {
		if n.ID == id {
			i.byUser[userID][k].IsRead = true
			return nil
		}
	}
	return fmt.Errorf("mark read: %w", core.ErrNotFound)
}

func (i *inbox) CountUnread(_ context.Context, userID string) (int, error) {
	n := 0
	for _, item := range i.byUser[userID] {
		if !item.IsRead {
			n++
		}
	}
	return n, nil
}

func asUser(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithClaims(r.Context(), &middleware.AccessTokenClaims{
				UserID: id,
				Role:   middleware.RoleAdministrator,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newRouter(repo Repository, userID string) chi.Router {
	r := chi.NewRouter()
	NewHandler(repo).RegisterRoutes(r, asUser(userID))
	return r
}

func TestListUnreadOnly(t *testing.T) {
	repo := &inbox{byUser: map[string][]Notification{
		"admin-1": {
			{ID: "n1", Title: "New sale", Kind: "sale"},
			{ID: "n2", Title: "Sale reversed", Kind: "sale_reversal", IsRead: true},
		},
	}}

	rec := httptest.NewRecorder()
	newRouter(repo, "admin-1").ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/notifications/?unread=true", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Data []Response `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].ID != "n1" {
		t.Fatalf("expected only unread n1, got %+v", body.Data)
	}
}

func TestMarkReadScopedToOwner(t *testing.T) {
	id := uuid.NewString()
	repo := &inbox{byUser: map[string][]Notification{
		"admin-1": {{ID: id}},
	}}
	path := "/notifications/" + id + "/read"

	rec := httptest.NewRecorder()
	newRouter(repo, "admin-2").ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, path, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign notification should be 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	newRouter(repo, "admin-1").ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, path, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if !repo.byUser["admin-1"][0].IsRead {
		t.Fatalf("notification not marked read")
	}
}

func TestMarkReadMalformedIDIsNotFound(t *testing.T) {
	repo := &inbox{byUser: map[string][]Notification{}}

	rec := httptest.NewRecorder()
	newRouter(repo, "admin-1").ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/notifications/not-a-uuid/read", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if repo.markCalls != 0 {
		t.Fatalf("malformed id reached the store")
	}
}
