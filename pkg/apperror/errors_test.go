package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("Encounter")
	assert.Equal(t, http.StatusNotFound, err.Code)
	assert.Equal(t, "Encounter not found", err.Message)
	assert.Equal(t, "Encounter not found", err.Error())
}

func TestIsAppErrorUnwrapsWrappedErrors(t *testing.T) {
	base := NewBadRequestError("qty must be positive")
	wrapped := fmt.Errorf("upsert line: %w", base)

	assert.True(t, IsAppError(wrapped))
	assert.False(t, IsAppError(errors.New("plain")))
}

func TestGetAppError(t *testing.T) {
	base := NewConflictError("payment already in progress")
	got := GetAppError(fmt.Errorf("session: %w", base))
	require.NotNil(t, got)
	assert.Equal(t, http.StatusConflict, got.Code)
	assert.Equal(t, "payment already in progress", got.Message)

	// Unknown errors fold into a 500 carrying the original message
	plain := GetAppError(errors.New("connection reset"))
	assert.Equal(t, http.StatusInternalServerError, plain.Code)
	assert.Equal(t, "connection reset", plain.Message)
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError([]FieldError{{Field: "email", Message: "invalid format"}})
	assert.Equal(t, http.StatusUnprocessableEntity, err.Code)
	require.Len(t, err.Errors, 1)
	assert.Equal(t, "email", err.Errors[0].Field)
}
