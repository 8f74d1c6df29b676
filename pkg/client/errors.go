package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors matched by *APIError. Use errors.Is() to check.
var (
	ErrValidation     = errors.New("celebtwin: request rejected")
	ErrUnauthorized   = errors.New("celebtwin: unauthorized")
	ErrUploadTooLarge = errors.New("celebtwin: upload too large")
	ErrServer         = errors.New("celebtwin: server error")
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("celebtwin: %d %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("celebtwin: %d %s: %s", e.StatusCode, e.Message, e.Details)
}

// Is maps the status code to one of the sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.StatusCode == http.StatusBadRequest
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrUploadTooLarge:
		return e.StatusCode == http.StatusRequestEntityTooLarge
	case ErrServer:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}
