// AngelaMos | 2026
// audit.go

package audit

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5/middleware"
)

// Logger writes security-relevant events on a dedicated "audit" message so
// they can be routed separately from request logs.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With("component", "audit")}
}

func (a *Logger) Log(
	ctx context.Context,
	action, actorID, subject, status string,
	attrs ...any,
) {
	base := []any{
		"action", action,
		"actor_id", actorID,
		"subject", subject,
		"status", status,
		"request_id", middleware.GetReqID(ctx),
	}
	a.logger.InfoContext(ctx, "audit", append(base, attrs...)...)
}

func (a *Logger) Denied(ctx context.Context, action, subject, reason string) {
	a.Log(ctx, action, "", subject, "denied", "reason", reason)
}
