package digests

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound     = errors.New("digest not found")
	ErrDuplicate    = errors.New("digest already compiled for period")
	ErrInvalidInput = errors.New("invalid digest request")
	ErrNotArchived  = errors.New("digest archive not available")
)

// MapHTTPStatus maps digest domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotArchived):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
