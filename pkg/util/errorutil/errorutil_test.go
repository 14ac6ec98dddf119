package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"validation passthrough", NewFieldError("solicitante", "required"), "VALIDATION_FAILED", http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("get ticket: %w", NewNotFound("ticket", nil)), "NOT_FOUND", http.StatusNotFound},
		{"no rows", pgx.ErrNoRows, "NOT_FOUND", http.StatusNotFound},
		{"store unavailable", fmt.Errorf("list: %w", ErrStoreUnavailable), "STORE_UNAVAILABLE", http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := ToDomainError(tt.err)
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, tt.status, de.HTTPStatus)
		})
	}
	assert.Nil(t, ToDomainError(nil))
}

func TestNewFieldErrorCarriesField(t *testing.T) {
	de := ToDomainError(NewFieldError("email", "invalid email"))
	assert.Equal(t, "email", de.Details["field"])
	assert.Equal(t, "invalid email", de.Error())
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFound("ticket", nil)))
	assert.True(t, IsNotFound(fmt.Errorf("x: %w", pgx.ErrNoRows)))
	assert.False(t, IsNotFound(NewValidationError("bad", nil)))
	assert.False(t, IsNotFound(errors.New("other")))
}
