// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_cache_operations_total",
			Help: "Session cache operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_created_total",
			Help: "Total number of sessions created",
		},
	)

	SessionsDestroyed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_destroyed_total",
			Help: "Total number of sessions destroyed by reason",
		},
		[]string{"reason"},
	)

	SessionsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_swept_total",
			Help: "Expired sessions removed from the durable store by the sweeper",
		},
	)

	LoginFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "login_failures_total",
			Help: "Failed login attempts recorded by the throttle",
		},
	)

	LoginLockouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "login_lockouts_total",
			Help: "Login attempts rejected because the identifier is locked",
		},
	)

	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "session_store_duration_seconds",
			Help:    "Durable session store call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)
