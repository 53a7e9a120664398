package apperrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientErrorStatus(t *testing.T) {
	err := Client("no backends configured")
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
	assert.Contains(t, err.Error(), "no backends configured")
}

func TestBackendErrorUnwraps(t *testing.T) {
	cause := errors.New("quota exceeded")
	err := Backend("aws", "create_instance", cause)
	assert.True(t, IsBackendError(err))
	assert.ErrorIs(t, err, cause)
}

func TestUnsupportedCapabilityTreatedAsBackendSignal(t *testing.T) {
	// The sentinel itself is not a *ServiceError; callers compare with
	// errors.Is, not IsBackendError.
	assert.False(t, IsBackendError(ErrUnsupportedCapability))
	assert.True(t, errors.Is(ErrUnsupportedCapability, ErrUnsupportedCapability))
}

func TestHTTPStatusDefaultsToInternalForPlainErrors(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestWithDetailsAccumulates(t *testing.T) {
	err := NotFound("run", "abc").WithDetails("project", "demo")
	assert.Equal(t, "abc", err.Details["id"])
	assert.Equal(t, "demo", err.Details["project"])
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("pool", "abc")))
	assert.False(t, IsNotFound(Client("bad request")))
	assert.False(t, IsNotFound(errors.New("plain")))
}
