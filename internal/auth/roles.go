package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/edutech-ops/chromebook-helpdesk/internal/domain"
	apperrors "github.com/edutech-ops/chromebook-helpdesk/pkg/util/errorutil"
)

// RequireOperatorRole ensures the operator has one of the allowed roles.
// With no roles given any authenticated operator passes.
func RequireOperatorRole(allowed ...domain.OperatorRole) fiber.Handler {
	allowedSet := make(map[domain.OperatorRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Operator == nil {
			return apperrors.NewUnauthorized("operator required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
