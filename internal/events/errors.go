package events

import (
	"errors"
	"net/http"
)

// Domain errors for event operations.
var (
	ErrNotFound     = errors.New("event not found")
	ErrDuplicate    = errors.New("event already exists")
	ErrInvalidInput = errors.New("invalid event")
)

// MapHTTPStatus maps event domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
