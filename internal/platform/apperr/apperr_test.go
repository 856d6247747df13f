package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrValidation, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{errors.New("pg down"), http.StatusInternalServerError},
		{fmt.Errorf("%w: title is required", ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("outer: %w", fmt.Errorf("%w: hidden", ErrNotFound)), http.StatusNotFound},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMessageMasksInternalErrors(t *testing.T) {
	if got := Message(errors.New("dial tcp 10.0.0.1:5432: connection refused")); got != "internal server error" {
		t.Fatalf("internal detail leaked: %q", got)
	}
	if got := Message(fmt.Errorf("%w: title is required", ErrValidation)); got != "validation failed: title is required" {
		t.Fatalf("unexpected client message: %q", got)
	}
}
