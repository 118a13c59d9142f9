package policies

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound      = errors.New("policy not found")
	ErrDuplicate     = errors.New("policy already exists")
	ErrInvalidInput  = errors.New("invalid policy")
	ErrInvalidConfig = errors.New("invalid policy_config")
	ErrInUse         = errors.New("policy is referenced by recorded decisions; disable it instead")
)

// MapHTTPStatus maps policy domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrInUse):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
