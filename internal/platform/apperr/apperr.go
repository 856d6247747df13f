// Package apperr defines the error taxonomy shared by the record store
// services. Handlers translate these sentinels to HTTP status codes;
// services wrap them with fmt.Errorf("%w: ...") for detail.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation marks malformed or missing required input.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized marks a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden marks an authenticated but unentitled actor.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound marks a target that is absent or, per policy, hidden.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an optimistic-concurrency write that lost the race.
	ErrConflict = errors.New("version conflict")
)

// HTTPStatus maps a service error to its HTTP status code. Unrecognized
// errors are treated as internal failures.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the error text safe to surface to clients. Internal
// errors are masked so storage details never leak into responses.
func Message(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
