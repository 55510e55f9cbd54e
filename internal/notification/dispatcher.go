// AngelaMos | 2026
// dispatcher.go

package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/carterperez-dev/bizdesk/internal/metrics"
)

const (
	RoleAdministrator = "administrator"

	defaultDispatchTimeout = 5 * time.Second
)

// Dispatcher delivers notifications off the request path. Failures are
// logged and counted, never returned.
type Dispatcher struct {
	repo    Repository
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(repo Repository, logger *slog.Logger, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Dispatcher{repo: repo, logger: logger, timeout: timeout}
}

// NotifyAdmins returns immediately. The write outlives the request context
// but is bounded by the dispatcher timeout.
func (d *Dispatcher) NotifyAdmins(ctx context.Context, title, message, kind string) {
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		n, err := d.repo.CreateForRole(bg, RoleAdministrator, title, message, kind)
		metrics.ObserveNotification(err)
		if err != nil {
			d.logger.WarnContext(bg, "admin notification failed",
				"kind", kind,
				"error", err,
			)
			return
		}

		d.logger.DebugContext(bg, "admin notification sent",
			"kind", kind,
			"recipients", n,
		)
	}()
}

// Wait blocks until every dispatched notification has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
