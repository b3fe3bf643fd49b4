package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorNormalisesUnknownErrors(t *testing.T) {
	appErr := FromError(stdErrors.New("boom"))
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Equal(t, ErrInternal.Message, appErr.Message)
}

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("ctx: %w", Clone(ErrNotFound, "task not found"))
	appErr := FromError(wrapped)
	assert.Equal(t, "task not found", appErr.Message)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
}

func TestClonesMatchSentinel(t *testing.T) {
	err := Clone(ErrDuplicateKey, "username already exists")
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.NotErrorIs(t, err, ErrConflict)
}

func TestWithDetailsCopiesMap(t *testing.T) {
	details := map[string]string{"userId": "user not found"}
	err := WithDetails(ErrValidation, "invalid submission", details)
	details["userId"] = "changed"

	assert.Equal(t, "user not found", err.Details["userId"])
	assert.Nil(t, ErrValidation.Details)
}
