package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports malformed input, such as a schema name that fails the
// allow-list check or a missing required field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

// NotFoundError reports an absent tenant, user, role or module.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// ConflictError reports a duplicate unique key on create.
type ConflictError struct {
	Resource string
	Field    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with this %s already exists", e.Resource, e.Field)
}

// AuthenticationError covers every login gate failure: unknown user, wrong
// password, suspended tenant, domain mismatch. The client always receives the
// same generic message; Reason is an internal diagnostic only.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "invalid credentials"
}

// ProvisioningError wraps a failed schema provisioning step. The whole
// Provision call is safe to retry.
type ProvisioningError struct {
	Step string
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed at step %q: %v", e.Step, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// InfrastructureError reports an unreachable or misbehaving store. It must not
// be collapsed into NotFoundError.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure failure during %s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// HTTPStatus maps an error from the taxonomy to the status code handlers
// should respond with. Unknown errors map to 500.
func HTTPStatus(err error) int {
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ConflictError
		ae *AuthenticationError
		pe *ProvisioningError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &ce):
		return http.StatusConflict
	case errors.As(err, &ae):
		return http.StatusUnauthorized
	case errors.As(err, &pe):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ClientMessage returns the message safe to show the caller. Infrastructure
// and provisioning details stay in the logs.
func ClientMessage(err error) string {
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ConflictError
		ae *AuthenticationError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &nf):
		return nf.Error()
	case errors.As(err, &ce):
		return ce.Error()
	case errors.As(err, &ae):
		return ae.Error()
	default:
		return "internal server error"
	}
}
