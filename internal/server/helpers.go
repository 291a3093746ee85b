package server

import (
	"strconv"
	"time"

	"traveldesk/internal/authz"
	"traveldesk/internal/models"

	"github.com/gofiber/fiber/v2"
)

const dateLayout = "2006-01-02"

// parseID extracts and validates an ID parameter from the request
func parseID(c *fiber.Ctx, paramName string) (uint, error) {
	idStr := c.Params(paramName)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid "+paramName+" parameter")
	}
	return uint(id), nil
}

// parsePage extracts the page query parameter, defaulting to the first page.
func parsePage(c *fiber.Ctx) int {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// parseDateQuery reads an optional YYYY-MM-DD query parameter.
func parseDateQuery(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, models.NewFieldValidationError(name, "Must be a date in YYYY-MM-DD format")
	}
	return &t, nil
}

// principal resolves the authenticated caller from the userID set by the auth
// middleware. The user row is read through the cache-backed repository, so the
// per-request cost is a Redis hit in the common case.
func (s *Server) principal(c *fiber.Ctx) (authz.Principal, error) {
	userID, ok := c.Locals("userID").(uint)
	if !ok || userID == 0 {
		return authz.Principal{}, fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
	}

	user, err := s.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return authz.Principal{}, err
	}

	return authz.Principal{
		ID:      user.ID,
		Name:    user.Name,
		IsAdmin: user.IsAdmin,
	}, nil
}

// httpStatusFor maps an application error code to an HTTP status.
func httpStatusFor(err error) int {
	appErr, ok := err.(*models.AppError)
	if !ok {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case models.CodeValidation:
		return fiber.StatusUnprocessableEntity
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeDomain:
		return fiber.StatusConflict
	case models.CodeUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err as a JSON error response with the mapped status.
func respondError(c *fiber.Ctx, err error) error {
	if fiberErr, ok := err.(*fiber.Error); ok {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}
	return models.RespondWithError(c, httpStatusFor(err), err)
}
