// Package observability provides metrics and tracing for the application.
package observability

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traveldesk_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// TravelRequestTransitions counts status transitions by target status.
	TravelRequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traveldesk_travel_request_transitions_total",
		Help: "Total number of travel request status transitions by target status",
	}, []string{"status"})

	// NotificationsDispatched counts notification dispatch outcomes.
	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traveldesk_notifications_dispatched_total",
		Help: "Total number of status-change notifications by dispatch outcome",
	}, []string{"outcome"})

	// NotificationQueueDrops counts notifications dropped on a saturated queue.
	NotificationQueueDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "traveldesk_notification_queue_drops_total",
		Help: "Total number of notifications dropped because the dispatch queue was full",
	})
)

var (
	promMiddlewareOnce sync.Once
	promMiddleware     *fiberprometheus.FiberPrometheus
)

// InitMetrics creates the Prometheus HTTP middleware for the given service
// name. The middleware registers collectors in the default registry, so it is
// created at most once per process.
func InitMetrics(service string) *fiberprometheus.FiberPrometheus {
	promMiddlewareOnce.Do(func() {
		promMiddleware = fiberprometheus.New(service)
	})
	return promMiddleware
}
