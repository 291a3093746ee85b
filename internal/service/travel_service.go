// Package service implements the travel request lifecycle and query operations.
package service

import (
	"context"
	"strings"
	"time"

	"traveldesk/internal/authz"
	"traveldesk/internal/models"
	"traveldesk/internal/observability"
	"traveldesk/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxDestinationLen = 255
	maxReasonLen      = 1000
)

// StatusNotifier receives the refreshed request after every successful status
// transition. Implementations must not block; delivery failures stay on their
// side of the boundary.
type StatusNotifier interface {
	Notify(tr *models.TravelRequest)
}

// TravelService coordinates access control, lifecycle transitions and
// filtered retrieval for travel requests.
type TravelService struct {
	requests repository.TravelRequestRepository
	notify   StatusNotifier
	now      func() time.Time
}

// NewTravelService creates a new travel request service.
func NewTravelService(requests repository.TravelRequestRepository, notify StatusNotifier) *TravelService {
	return &TravelService{
		requests: requests,
		notify:   notify,
		now:      time.Now,
	}
}

// CreateRequestInput carries the caller-supplied fields for a new request.
type CreateRequestInput struct {
	Destination   string
	DepartureDate time.Time
	ReturnDate    time.Time
	Reason        string
}

// UpdateRequestInput carries a partial edit of a still-pending request.
// Zero-valued fields are left unchanged.
type UpdateRequestInput struct {
	ID            uint
	Destination   string
	DepartureDate *time.Time
	ReturnDate    *time.Time
	Reason        *string
}

// ListRequestsInput carries the optional list filters plus the page number.
type ListRequestsInput struct {
	Status      string
	Destination string
	StartDate   *time.Time
	EndDate     *time.Time
	Page        int
}

// UpdateStatusInput carries the administrative transition parameters.
type UpdateStatusInput struct {
	ID                 uint
	Status             models.TravelStatus
	CancellationReason string
}

// CreateRequest validates and stores a new travel request owned by p.
func (s *TravelService) CreateRequest(ctx context.Context, p authz.Principal, in CreateRequestInput) (*models.TravelRequest, error) {
	if err := authz.Can(p, authz.ActionCreate, nil); err != nil {
		return nil, err
	}

	now := s.now()
	if err := validateItinerary(in.Destination, in.DepartureDate, in.ReturnDate, now); err != nil {
		return nil, err
	}
	if len(in.Reason) > maxReasonLen {
		return nil, models.NewFieldValidationError("reason", "Reason too long (max 1000 characters)")
	}

	tr := &models.TravelRequest{
		UserID:        p.ID,
		ApplicantName: p.Name,
		Destination:   strings.TrimSpace(in.Destination),
		DepartureDate: in.DepartureDate,
		ReturnDate:    in.ReturnDate,
		Status:        models.TravelStatusRequested,
		Reason:        in.Reason,
	}
	if err := s.requests.Create(ctx, tr); err != nil {
		return nil, err
	}
	return s.requests.GetByID(ctx, tr.ID)
}

// GetRequest returns a single request if p may view it. A request that exists
// but belongs to someone else yields FORBIDDEN, not NOT_FOUND.
func (s *TravelService) GetRequest(ctx context.Context, p authz.Principal, id uint) (*models.TravelRequest, error) {
	tr, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(p, authz.ActionView, tr); err != nil {
		return nil, err
	}
	return tr, nil
}

// ListRequests returns one page of requests matching the given filters.
// Non-admin principals only ever see their own requests.
func (s *TravelService) ListRequests(ctx context.Context, p authz.Principal, in ListRequestsInput) (*repository.TravelRequestPage, error) {
	filters := repository.TravelRequestFilters{
		Destination: in.Destination,
	}

	if in.Status != "" {
		status := models.TravelStatus(in.Status)
		if !status.Valid() {
			return nil, models.NewFieldValidationError("status", "Status must be one of: requested, approved, cancelled")
		}
		filters.Status = &status
	}

	// A half-open range is ignored entirely rather than partially applied.
	if in.StartDate != nil && in.EndDate != nil {
		filters.StartDate = in.StartDate
		filters.EndDate = in.EndDate
	}

	ownerID := p.ID
	if p.IsAdmin {
		ownerID = 0
	}

	return s.requests.List(ctx, ownerID, filters, in.Page)
}

// UpdateRequest edits a request that is still awaiting review. Only the owner
// may edit, and only while the status is "requested".
func (s *TravelService) UpdateRequest(ctx context.Context, p authz.Principal, in UpdateRequestInput) (*models.TravelRequest, error) {
	tr, err := s.requests.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if err := authz.Can(p, authz.ActionUpdateOwn, tr); err != nil {
		return nil, err
	}

	if in.Destination != "" {
		tr.Destination = strings.TrimSpace(in.Destination)
	}
	if in.DepartureDate != nil {
		tr.DepartureDate = *in.DepartureDate
	}
	if in.ReturnDate != nil {
		tr.ReturnDate = *in.ReturnDate
	}
	if in.Reason != nil {
		if len(*in.Reason) > maxReasonLen {
			return nil, models.NewFieldValidationError("reason", "Reason too long (max 1000 characters)")
		}
		tr.Reason = *in.Reason
	}

	if err := validateItinerary(tr.Destination, tr.DepartureDate, tr.ReturnDate, s.now()); err != nil {
		return nil, err
	}

	if err := s.requests.Update(ctx, tr); err != nil {
		return nil, err
	}
	return tr, nil
}

// UpdateStatus applies the administrative approve/cancel transition. The full
// derived field set is recomputed from the target status, overwriting whatever
// state the request was in before. Only a non-owning admin may call this.
func (s *TravelService) UpdateStatus(ctx context.Context, p authz.Principal, in UpdateStatusInput) (*models.TravelRequest, error) {
	switch in.Status {
	case models.TravelStatusApproved, models.TravelStatusCancelled:
	default:
		return nil, models.NewFieldValidationError("status", `Status must be "approved" or "cancelled"`)
	}
	if in.Status == models.TravelStatusCancelled && strings.TrimSpace(in.CancellationReason) == "" {
		return nil, models.NewFieldValidationError("cancellation_reason",
			"Cancellation reason is required when cancelling a request")
	}

	span, ctx := observability.NewSpan(ctx, "travel_request.update_status")
	defer span.End()
	span.AddAttributes(
		attribute.Int("travel_request.id", int(in.ID)),
		attribute.String("travel_request.target_status", string(in.Status)),
	)

	updated, err := s.requests.Transition(ctx, in.ID, func(tr *models.TravelRequest) (models.StatusChange, error) {
		if err := authz.Can(p, authz.ActionUpdateStatus, tr); err != nil {
			return models.StatusChange{}, err
		}
		if in.Status == models.TravelStatusApproved {
			return models.ApprovedChange(s.now()), nil
		}
		return models.CancelledChange(s.now(), in.CancellationReason), nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	s.recordTransition(updated)
	return updated, nil
}

// SelfCancel cancels an approved request on behalf of its owner. The request
// must still be more than 24 hours before departure; otherwise the state is
// left untouched and a DOMAIN_ERROR is returned.
func (s *TravelService) SelfCancel(ctx context.Context, p authz.Principal, id uint) (*models.TravelRequest, error) {
	span, ctx := observability.NewSpan(ctx, "travel_request.self_cancel")
	defer span.End()
	span.AddAttributes(attribute.Int("travel_request.id", int(id)))

	updated, err := s.requests.Transition(ctx, id, func(tr *models.TravelRequest) (models.StatusChange, error) {
		if err := authz.Can(p, authz.ActionSelfCancel, tr); err != nil {
			return models.StatusChange{}, err
		}

		now := s.now()
		if !tr.CanBeCancelled(now) {
			if tr.Status != models.TravelStatusApproved {
				return models.StatusChange{}, models.NewDomainError("Only approved requests can be cancelled")
			}
			return models.StatusChange{}, models.NewDomainError("Cancellation window closed: departure is less than 24 hours away")
		}

		return models.CancelledChange(now, models.SelfCancellationReason), nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	s.recordTransition(updated)
	return updated, nil
}

func (s *TravelService) recordTransition(tr *models.TravelRequest) {
	observability.TravelRequestTransitions.WithLabelValues(string(tr.Status)).Inc()
	if s.notify != nil {
		s.notify.Notify(tr)
	}
}

// validateItinerary enforces the date invariants: departure strictly after
// now, return strictly after departure.
func validateItinerary(destination string, departure, ret time.Time, now time.Time) error {
	if strings.TrimSpace(destination) == "" {
		return models.NewFieldValidationError("destination", "Destination is required")
	}
	if len(destination) > maxDestinationLen {
		return models.NewFieldValidationError("destination", "Destination too long (max 255 characters)")
	}
	if departure.IsZero() {
		return models.NewFieldValidationError("departure_date", "Departure date is required")
	}
	if ret.IsZero() {
		return models.NewFieldValidationError("return_date", "Return date is required")
	}
	if !departure.After(now) {
		return models.NewFieldValidationError("departure_date", "Departure date must be in the future")
	}
	if !ret.After(departure) {
		return models.NewFieldValidationError("return_date", "Return date must be after the departure date")
	}
	return nil
}
