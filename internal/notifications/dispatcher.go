package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"traveldesk/internal/middleware"
	"traveldesk/internal/models"
	"traveldesk/internal/observability"
	"traveldesk/internal/repository"

	"github.com/google/uuid"
)

// statusEvent is the wire payload published to the owner's Redis channel.
type statusEvent struct {
	EventID         string              `json:"event_id"`
	TravelRequestID uint                `json:"travel_request_id"`
	Status          models.TravelStatus `json:"status"`
	Destination     string              `json:"destination"`
	Message         string              `json:"message"`
	OccurredAt      time.Time           `json:"occurred_at"`
}

// Dispatcher queues status-change notifications and delivers them from a
// background worker: one in-app notification row plus one Redis pub/sub
// message per transition. Enqueueing never blocks and never fails the
// triggering operation; when the queue is saturated the notification is
// dropped and counted.
type Dispatcher struct {
	repo     repository.NotificationRepository
	notifier *Notifier
	queue    chan *models.TravelRequest
	done     chan struct{}
	once     sync.Once
}

// NewDispatcher creates a Dispatcher and starts its delivery worker.
func NewDispatcher(repo repository.NotificationRepository, notifier *Notifier, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &Dispatcher{
		repo:     repo,
		notifier: notifier,
		queue:    make(chan *models.TravelRequest, queueSize),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify enqueues a notification for the given request's owner. Safe to call
// from any goroutine; returns immediately.
func (d *Dispatcher) Notify(tr *models.TravelRequest) {
	if d == nil || tr == nil {
		return
	}
	select {
	case d.queue <- tr:
	default:
		observability.NotificationQueueDrops.Inc()
		middleware.Logger.Warn("notification queue full, dropping status notification",
			slog.Any("travel_request_id", tr.ID),
			slog.String("status", string(tr.Status)),
		)
	}
}

// Close stops accepting notifications and waits for queued deliveries to
// finish or ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.once.Do(func() { close(d.queue) })
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for tr := range d.queue {
		d.deliver(tr)
	}
}

func (d *Dispatcher) deliver(tr *models.TravelRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := statusMessage(tr)

	record := &models.Notification{
		UserID:          tr.UserID,
		TravelRequestID: tr.ID,
		Status:          tr.Status,
		Destination:     tr.Destination,
		Message:         msg,
	}
	if err := d.repo.Create(ctx, record); err != nil {
		observability.NotificationsDispatched.WithLabelValues("store_error").Inc()
		middleware.Logger.ErrorContext(ctx, "failed to persist status notification",
			slog.Any("travel_request_id", tr.ID),
			slog.String("error", err.Error()),
		)
	}

	payload, err := json.Marshal(statusEvent{
		EventID:         uuid.NewString(),
		TravelRequestID: tr.ID,
		Status:          tr.Status,
		Destination:     tr.Destination,
		Message:         msg,
		OccurredAt:      time.Now().UTC(),
	})
	if err != nil {
		observability.NotificationsDispatched.WithLabelValues("encode_error").Inc()
		return
	}

	if err := d.notifier.PublishUser(ctx, tr.UserID, string(payload)); err != nil {
		observability.NotificationsDispatched.WithLabelValues("publish_error").Inc()
		middleware.Logger.WarnContext(ctx, "failed to publish status notification",
			slog.Any("travel_request_id", tr.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	observability.NotificationsDispatched.WithLabelValues("ok").Inc()
}

func statusMessage(tr *models.TravelRequest) string {
	switch tr.Status {
	case models.TravelStatusApproved:
		return fmt.Sprintf("Your travel request to %s was approved.", tr.Destination)
	case models.TravelStatusCancelled:
		msg := fmt.Sprintf("Your travel request to %s was cancelled.", tr.Destination)
		if tr.CancellationReason != nil && *tr.CancellationReason != "" {
			msg = fmt.Sprintf("%s Reason: %s", msg, *tr.CancellationReason)
		}
		return msg
	default:
		return fmt.Sprintf("Your travel request to %s is now %s.", tr.Destination, tr.Status)
	}
}
