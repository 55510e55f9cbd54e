// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

var (
	up   = CheckerFunc(func(context.Context) error { return nil })
	down = CheckerFunc(func(context.Context) error { return errors.New("refused") })
)

func readiness(t *testing.T, h *Handler) (int, ReadinessResponse) {
	t.Helper()

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var body ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, body
}

func TestReadinessAllHealthy(t *testing.T) {
	code, body := readiness(t, NewHandler(
		Dependency{Name: "database", Checker: up},
		Dependency{Name: "redis", Checker: up},
	))

	if code != http.StatusOK || body.Status != "ok" || len(body.Checks) != 2 {
		t.Fatalf("unexpected readiness %d %+v", code, body)
	}
	if body.Checks[0].Name != "database" || body.Checks[1].Name != "redis" {
		t.Fatalf("checks out of order: %+v", body.Checks)
	}
}

func TestReadinessRequiredFailure(t *testing.T) {
	code, body := readiness(t, NewHandler(
		Dependency{Name: "database", Checker: down},
		Dependency{Name: "redis", Checker: up},
	))

	if code != http.StatusServiceUnavailable || body.Status != "unavailable" {
		t.Fatalf("expected unavailable, got %d %+v", code, body)
	}
}

func TestReadinessOptionalFailureDegrades(t *testing.T) {
	code, body := readiness(t, NewHandler(
		Dependency{Name: "database", Checker: up},
		Dependency{Name: "amqp", Checker: down, Optional: true},
	))

	if code != http.StatusOK || body.Status != "degraded" {
		t.Fatalf("expected degraded 200, got %d %+v", code, body)
	}
	if body.Checks[1].Healthy || body.Checks[1].Message != "ping failed" {
		t.Fatalf("amqp check should report failure: %+v", body.Checks[1])
	}
}

func TestLivenessDuringShutdown(t *testing.T) {
	h := NewHandler()
	h.SetShutdown(true)

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 during shutdown, got %d", rec.Code)
	}
}
