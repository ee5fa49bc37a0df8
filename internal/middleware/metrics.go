package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis command errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// LikeToggles counts like-toggle outcomes (liked/unliked/conflict).
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_like_toggles_total",
		Help: "Total number of like toggle operations by outcome",
	}, []string{"outcome"})

	// CommentsCreated counts created comments by kind (root/reply).
	CommentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_comments_created_total",
		Help: "Total number of comments created by kind",
	}, []string{"kind"})

	// ActivityEvents counts activity events seen on the broadcast channel.
	// Instances publish as well as subscribe, so this reflects cluster-wide
	// write traffic, not just the local process.
	ActivityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_activity_events_total",
		Help: "Total number of activity events received by type",
	}, []string{"type"})
)

// InitMetrics creates the Prometheus HTTP middleware for the given service name.
func InitMetrics(service string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(service)
}
