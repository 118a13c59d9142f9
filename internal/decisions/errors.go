package decisions

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound     = errors.New("decision not found")
	ErrDuplicate    = errors.New("decision already recorded for event")
	ErrInvalidInput = errors.New("invalid decision")
)

// MapHTTPStatus maps decision domain errors to HTTP status codes.
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
