package dto

import (
	"time"

	"github.com/edutech-ops/chromebook-helpdesk/internal/domain"
)

// OperatorLoginRequest payload for login.
type OperatorLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OperatorResponse is the public operator profile.
type OperatorResponse struct {
	ID           int64               `json:"id"`
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	Role         domain.OperatorRole `json:"role"`
	LastSignedIn *time.Time          `json:"last_signed_in,omitempty"`
}

func NewOperatorResponse(operator *domain.Operator) OperatorResponse {
	return OperatorResponse{
		ID:           operator.ID,
		Name:         operator.Name,
		Email:        operator.Email,
		Role:         operator.Role,
		LastSignedIn: operator.LastSignedIn,
	}
}
