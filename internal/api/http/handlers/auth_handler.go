package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/edutech-ops/chromebook-helpdesk/internal/api/dto"
	"github.com/edutech-ops/chromebook-helpdesk/internal/service"
	apperrors "github.com/edutech-ops/chromebook-helpdesk/pkg/util/errorutil"
)

// AuthHandler handles operator authentication.
type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/operators/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.OperatorLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	operator, token, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"operator": dto.NewOperatorResponse(operator),
			"auth":     dto.AuthResponse{Token: token.Value, ExpiresAt: token.ExpiresAt},
		},
	})
}
