package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldforcemrser2026/syntoniqa/internal/api/dto"
	"github.com/fieldforcemrser2026/syntoniqa/internal/service"
	apperrors "github.com/fieldforcemrser2026/syntoniqa/pkg/util"
)

// AuthHandler manages operator login.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	operator, token, expiresAt, err := h.service.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Operator: dto.OperatorDTO{
			ID:    operator.ID,
			Name:  operator.Name,
			Email: operator.Email,
			Role:  operator.Role,
		},
	})
}
