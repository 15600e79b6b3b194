package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&ValidationError{Field: "schema_name", Message: "bad"}, http.StatusBadRequest},
		{&NotFoundError{Resource: "tenant"}, http.StatusNotFound},
		{&ConflictError{Resource: "tenant", Field: "schema_name"}, http.StatusConflict},
		{&AuthenticationError{Reason: "whatever"}, http.StatusUnauthorized},
		{&ProvisioningError{Step: "create_schema", Err: errors.New("x")}, http.StatusInternalServerError},
		{&InfrastructureError{Op: "lookup", Err: errors.New("x")}, http.StatusInternalServerError},
		{errors.New("unknown"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), "error %v", tc.err)
	}
}

func TestHTTPStatusSeesWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("while logging in: %w", &AuthenticationError{Reason: "invalid_password"})
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(wrapped))
}

// All authentication failures must read identically to the client no matter
// which internal gate tripped.
func TestAuthenticationErrorMessageIsGeneric(t *testing.T) {
	reasons := []string{"user_not_found", "invalid_password", "tenant_blocked", "tenant_not_found"}
	for _, reason := range reasons {
		err := &AuthenticationError{Reason: reason}
		assert.Equal(t, "invalid credentials", err.Error())
		assert.Equal(t, "invalid credentials", ClientMessage(err))
	}
}

func TestClientMessageHidesInternals(t *testing.T) {
	infra := &InfrastructureError{Op: "tenant lookup", Err: errors.New("dial tcp 10.0.0.5:5432: connection refused")}
	assert.Equal(t, "internal server error", ClientMessage(infra))
	assert.NotContains(t, ClientMessage(infra), "10.0.0.5")

	prov := &ProvisioningError{Step: "seed_role", Err: errors.New("permission denied")}
	assert.Equal(t, "internal server error", ClientMessage(prov))
}

func TestProvisioningErrorIdentifiesStep(t *testing.T) {
	cause := errors.New("duplicate key")
	err := &ProvisioningError{Step: "seed_admin", Err: cause}
	assert.Contains(t, err.Error(), "seed_admin")
	assert.ErrorIs(t, err, cause)
}
