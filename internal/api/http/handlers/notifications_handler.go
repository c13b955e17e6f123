package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldforcemrser2026/syntoniqa/internal/api/dto"
	"github.com/fieldforcemrser2026/syntoniqa/internal/auth"
	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
	"github.com/fieldforcemrser2026/syntoniqa/internal/repository"
	apperrors "github.com/fieldforcemrser2026/syntoniqa/pkg/util"
)

// NotificationsHandler serves the in-app notification feed.
type NotificationsHandler struct {
	notifications repository.NotificationRepository
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications repository.NotificationRepository) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// ListNotifications GET /api/notifications. Administrators also see the
// rows addressed to the administrator group.
func (h *NotificationsHandler) ListNotifications(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return apperrors.NewUnauthorized("operator required")
	}
	limit := parsePositive(c.Query("limit"), 50)

	rows, err := h.notifications.ListByRecipient(c.UserContext(), principal.Operator.ID, limit)
	if err != nil {
		return err
	}
	if principal.Elevated() {
		groupRows, err := h.notifications.ListByRecipient(c.UserContext(), domain.RecipientAdministrators, limit)
		if err != nil {
			return err
		}
		rows = append(rows, groupRows...)
	}

	items := make([]dto.NotificationResponse, 0, len(rows))
	for i := range rows {
		items = append(items, dto.FromNotification(&rows[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// MarkRead POST /api/notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		return apperrors.NewUnauthorized("operator required")
	}
	if err := h.notifications.MarkRead(c.UserContext(), c.Params("id")); err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": "ok"})
}

// MarkAllRead POST /api/notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return apperrors.NewUnauthorized("operator required")
	}
	count, err := h.notifications.MarkAllRead(c.UserContext(), principal.Operator.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"marked": count}})
}
