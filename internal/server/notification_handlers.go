package server

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const notificationPageSize = 20

// ListNotifications handles GET /api/notifications
func (s *Server) ListNotifications(c *fiber.Ctx) error {
	p, err := s.principal(c)
	if err != nil {
		return respondError(c, err)
	}

	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(notificationPageSize)))
	if err != nil || limit < 1 || limit > 100 {
		limit = notificationPageSize
	}
	offset := (parsePage(c) - 1) * limit

	items, err := s.notificationRepo.GetByUserID(c.Context(), p.ID, limit, offset)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"items": items,
		"page":  parsePage(c),
	})
}

// MarkNotificationRead handles PATCH /api/notifications/:id/read
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	p, err := s.principal(c)
	if err != nil {
		return respondError(c, err)
	}

	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := s.notificationRepo.MarkRead(c.Context(), p.ID, id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
