package ierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	cause := errors.New("notification not found")
	err := New(ErrorCodeNotFound, cause)

	assert.Equal(t, "NotFound: notification not found", err.Error())
	assert.ErrorIs(t, err, cause)

	var coded Error
	assert.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &coded)
	assert.Equal(t, ErrorCodeNotFound, coded.Code)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrorCodeInvalidArgument))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrorCodeNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrorCodeFailedPrecondition))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(ErrorCodePermissionDenied))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrorCodeUnauthenticated))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ErrorCodeUnavailable))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrorCodeInternal))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus("Unknown"))
}
