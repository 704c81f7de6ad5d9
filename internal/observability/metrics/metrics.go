package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamtasks_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "teamtasks_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamtasks_operations_total",
		Help: "Service operations by entity, operation and result kind",
	}, []string{"entity", "operation", "result"})

	authzDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamtasks_authz_denied_total",
		Help: "Authorization denials by action",
	}, []string{"action"})

	sideChannelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamtasks_side_channel_total",
		Help: "Best-effort cache/notification calls by channel and result",
	}, []string{"channel", "result"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamtasks_cache_lookups_total",
		Help: "Read-through cache lookups by view and result",
	}, []string{"view", "result"})

	overdueReminders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamtasks_overdue_reminders_total",
		Help: "Overdue reminders handled by the worker",
	}, []string{"result"})

	circuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "teamtasks_circuit_state",
		Help: "Side-channel circuit breaker state (0 closed, 1 open, 2 half-open)",
	}, []string{"channel"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveOperation counts a service operation. result is "ok" or an error kind.
func ObserveOperation(entity, operation, result string) {
	operationsTotal.WithLabelValues(entity, operation, result).Inc()
}

// ObserveAuthzDenied counts a policy denial
func ObserveAuthzDenied(action string) {
	authzDenied.WithLabelValues(action).Inc()
}

// ObserveSideChannel counts a cache invalidation or notification attempt
func ObserveSideChannel(channel, result string) {
	sideChannelCalls.WithLabelValues(channel, result).Inc()
}

// ObserveCacheLookup counts a hit or miss for a cached view
func ObserveCacheLookup(view string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(view, result).Inc()
}

// ObserveOverdueReminder counts reminders sent, skipped or failed
func ObserveOverdueReminder(result string, count int) {
	if count <= 0 {
		return
	}
	overdueReminders.WithLabelValues(result).Add(float64(count))
}

// SetCircuitState publishes the breaker state for a channel
func SetCircuitState(channel string, state int) {
	circuitState.WithLabelValues(channel).Set(float64(state))
}
