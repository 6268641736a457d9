package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsCodeForIs(t *testing.T) {
	err := Clone(ErrUserNotFound, `user "alice" not found on EA Forum`)
	require.True(t, errors.Is(err, ErrUserNotFound))
	assert.False(t, errors.Is(err, ErrUpstreamFetch))
	assert.Equal(t, `user "alice" not found on EA Forum`, err.Error())
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Equal(t, "internal server error: boom", appErr.Error())
}

func TestFromErrorUnwrapsTyped(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrNotFound)
	assert.Same(t, ErrNotFound, FromError(wrapped))
}

func TestWithStatus(t *testing.T) {
	forbidden := WithStatus(ErrUnauthorized, http.StatusForbidden)
	assert.Equal(t, http.StatusForbidden, forbidden.Status)
	assert.Equal(t, http.StatusUnauthorized, ErrUnauthorized.Status)
	assert.True(t, errors.Is(forbidden, ErrUnauthorized))
}
