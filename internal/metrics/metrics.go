// AngelaMos | 2026
// metrics.go

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bizdesk"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	authEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_events_total",
		Help:      "Auth lifecycle events by event and result",
	}, []string{"event", "result"})

	mailDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_deliveries_total",
		Help:      "Outbound mail hand-offs by template and result",
	}, []string{"template", "result"})

	shopOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shop_operations_total",
		Help:      "Sale and reversal attempts by result",
	}, []string{"operation", "result"})

	shopUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shop_units_total",
		Help:      "Units moved by committed sales and reversals",
	}, []string{"operation"})

	shopAmountCents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shop_amount_cents_total",
		Help:      "Money moved by committed sales and reversals, in cents",
	}, []string{"operation"})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_dispatched_total",
		Help:      "Best-effort notification dispatches by result",
	}, []string{"result"})
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultDenied  = "denied"
)

func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

func ObserveAuthEvent(event, result string) {
	authEvents.WithLabelValues(event, result).Inc()
}

func ObserveMail(template string, err error) {
	mailDeliveries.WithLabelValues(template, resultOf(err)).Inc()
}

// ObserveShop counts an attempt; units and cents are recorded only for
// committed operations.
func ObserveShop(operation string, err error, units int, amountCents int64) {
	shopOperations.WithLabelValues(operation, resultOf(err)).Inc()
	if err != nil {
		return
	}
	shopUnits.WithLabelValues(operation).Add(float64(units))
	shopAmountCents.WithLabelValues(operation).Add(float64(amountCents))
}

func ObserveNotification(err error) {
	notifications.WithLabelValues(resultOf(err)).Inc()
}

func resultOf(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
