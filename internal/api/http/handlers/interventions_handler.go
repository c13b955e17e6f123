package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldforcemrser2026/syntoniqa/internal/api/dto"
	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
	"github.com/fieldforcemrser2026/syntoniqa/internal/service"
	apperrors "github.com/fieldforcemrser2026/syntoniqa/pkg/util"
)

// InterventionsHandler manages the planned-visit endpoints.
type InterventionsHandler struct {
	service *service.InterventionService
}

// NewInterventionsHandler constructs handler.
func NewInterventionsHandler(interventionService *service.InterventionService) *InterventionsHandler {
	return &InterventionsHandler{service: interventionService}
}

// CreateIntervention POST /api/interventions.
func (h *InterventionsHandler) CreateIntervention(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateInterventionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ScheduledDate.IsZero() {
		return apperrors.NewValidationError("scheduled_date required", nil)
	}

	iv, err := h.service.CreateIntervention(c.UserContext(), actor, service.InterventionCreateInput{
		LinkedTicket:   req.LinkedTicket,
		Technician:     req.Technician,
		ClientID:       req.ClientID,
		ScheduledDate:  req.ScheduledDate,
		ScheduledStart: req.ScheduledStart,
		Notes:          req.Notes,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromIntervention(iv)})
}

// ListInterventions GET /api/interventions.
func (h *InterventionsHandler) ListInterventions(c *fiber.Ctx) error {
	interventions, err := h.service.ListInterventions(c.UserContext(), parseInterventionQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.InterventionResponse, 0, len(interventions))
	for i := range interventions {
		items = append(items, dto.FromIntervention(&interventions[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetIntervention GET /api/interventions/:id.
func (h *InterventionsHandler) GetIntervention(c *fiber.Ctx) error {
	iv, err := h.service.GetIntervention(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromIntervention(iv)})
}

// TransitionIntervention POST /api/interventions/:id/transition.
func (h *InterventionsHandler) TransitionIntervention(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.TransitionInterventionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	iv, err := h.service.Transition(c.UserContext(), actor, c.Params("id"), domain.InterventionState(req.Target))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromIntervention(iv)})
}

func parseInterventionQuery(c *fiber.Ctx) service.InterventionListFilter {
	filter := service.InterventionListFilter{
		Limit:  parsePositive(c.Query("limit"), 50),
		Offset: parsePositive(c.Query("offset"), 0),
	}
	for _, raw := range splitCSV(c.Query("state")) {
		filter.States = append(filter.States, domain.InterventionState(raw))
	}
	if technician := c.Query("technician"); technician != "" {
		filter.TechnicianID = &technician
	}
	if ticket := c.Query("ticket"); ticket != "" {
		filter.LinkedTicket = &ticket
	}
	if from, err := time.Parse("2006-01-02", c.Query("date_from")); err == nil {
		filter.DateFrom = &from
	}
	if to, err := time.Parse("2006-01-02", c.Query("date_to")); err == nil {
		filter.DateTo = &to
	}
	return filter
}
