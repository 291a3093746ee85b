package server

import (
	"log/slog"
	"time"

	"traveldesk/internal/models"
	"traveldesk/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createTravelRequestBody struct {
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date"`
	Reason        string `json:"reason"`
}

type updateTravelRequestBody struct {
	Destination   string  `json:"destination"`
	DepartureDate *string `json:"departure_date"`
	ReturnDate    *string `json:"return_date"`
	Reason        *string `json:"reason"`
}

type updateStatusBody struct {
	Status             string `json:"status"`
	CancellationReason string `json:"cancellation_reason"`
}

// parseBodyDate parses a required YYYY-MM-DD body field.
func parseBodyDate(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, models.NewFieldValidationError(field, "Required")
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, models.NewFieldValidationError(field, "Must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

// CreateTravelRequest handles POST /api/travel-requests
func (s *Server) CreateTravelRequest(c *fiber.Ctx) error {
	p, err := s.principal(c)
	if err != nil {
		return respondError(c, err)
	}

	var body createTravelRequestBody
	if err := c.BodyParser(&body); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	departure, err := parseBodyDate("departure_date", body.DepartureDate)
	if err != nil {
		return respondError(c, err)
	}
	ret, err := parseBodyDate("return_date", body.ReturnDate)
	if err != nil {
		return respondError(c, err)
	}

	tr, err := s.travelService.CreateRequest(c.Context(), p, service.CreateRequestInput{
		Destination:   body.Destination,
		DepartureDate: departure,
		ReturnDate:    ret,
		Reason:        body.Reason,
	})
	if err != nil {
		return respondError(c, err)
	}

	slog.InfoContext(c.Context(), "travel request created",
		"request_id", tr.ID, "destination", tr.Destination)
	return c.Status(fiber.StatusCreated).JSON(tr)
}

// ListTravelRequests handles GET /api/travel-requests
func (s *Server) ListTravelRequests(c *fiber.Ctx) error {
	p, err := s.principal(c)
	if err != nil {
		return respondError(c, err)
	}

	startDate, err := parseDateQuery(c, "start_date")
	if err != nil {
		return respondError(c, err)
	}
	endDate, err := parseDateQuery(c, "end_date")
	if err != nil {
		return respondError(c, err)
	}

	page, err := s.travelService.ListRequests(c.Context(), p, service.ListRequestsInput{
		Status:      c.Query("status"),
		Destination: c.Query("destination"),
		StartDate:   startDate,
		EndDate:     endDate,
		Page:        parsePage(c),
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(page)
}

// GetTravelRequest handles GET /api/travel-requests/:id
func (s *Server) GetTravelRequest(c *fiber.Ctx) error {
	p, err := s.principal(c)
	if err != nil {
		return respondError(c, err)
	}

	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	tr, err := s.travelService.GetRequest(c.Context(), p, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tr)
}

// UpdateTravelRequest handles PUT /api/travel-requests/:id
func (s *Server) UpdateTravelRequest(c *fiber.Ctx) error {
	p, err := s.principal(c)
	if err != nil {
		return respondError(c, err)
	}

	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var body updateTravelRequestBody
	if err := c.BodyParser(&body); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	in := service.UpdateRequestInput{
		ID:          id,
		Destination: body.Destination,
		Reason:      body.Reason,
	}
	if body.DepartureDate != nil {
		departure, err := parseBodyDate("departure_date", *body.DepartureDate)
		if err != nil {
			return respondError(c, err)
		}
		in.DepartureDate = &departure
	}
	if body.ReturnDate != nil {
		ret, err := parseBodyDate("return_date", *body.ReturnDate)
		if err != nil {
			return respondError(c, err)
		}
		in.ReturnDate = &ret
	}

	tr, err := s.travelService.UpdateRequest(c.Context(), p, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tr)
}

// UpdateTravelRequestStatus handles PATCH /api/travel-requests/:id/status
func (s *Server) UpdateTravelRequestStatus(c *fiber.Ctx) error {
	p, err := s.principal(c)
	if err != nil {
		return respondError(c, err)
	}

	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var body updateStatusBody
	if err := c.BodyParser(&body); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	tr, err := s.travelService.UpdateStatus(c.Context(), p, service.UpdateStatusInput{
		ID:                 id,
		Status:             models.TravelStatus(body.Status),
		CancellationReason: body.CancellationReason,
	})
	if err != nil {
		return respondError(c, err)
	}

	slog.InfoContext(c.Context(), "travel request status updated",
		"request_id", tr.ID, "status", tr.Status)
	return c.JSON(tr)
}

// SelfCancelTravelRequest handles POST /api/travel-requests/:id/cancel
func (s *Server) SelfCancelTravelRequest(c *fiber.Ctx) error {
	p, err := s.principal(c)
	if err != nil {
		return respondError(c, err)
	}

	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	tr, err := s.travelService.SelfCancel(c.Context(), p, id)
	if err != nil {
		return respondError(c, err)
	}

	slog.InfoContext(c.Context(), "travel request cancelled by owner", "request_id", tr.ID)
	return c.JSON(tr)
}
