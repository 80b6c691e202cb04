package server

import (
	"github.com/gofiber/fiber/v2"
)

// ListNotifications handles GET /api/notifications
func (s *Server) ListNotifications(c *fiber.Ctx) error {
	p := parsePagination(c, 20)

	items, err := s.notificationService.List(c.Context(), currentUserID(c), p.Limit, p.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"notifications": items,
		"limit":         p.Limit,
		"offset":        p.Offset,
	})
}

// UnreadNotificationCount handles GET /api/notifications/unread-count
func (s *Server) UnreadNotificationCount(c *fiber.Ctx) error {
	count, err := s.notificationService.UnreadCount(c.Context(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"unread": count})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.notificationService.MarkRead(c.Context(), currentUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Notification marked as read"})
}
