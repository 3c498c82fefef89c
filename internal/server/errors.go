package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/cv-adaptor/internal/fetch"
	"github.com/jonathan/cv-adaptor/internal/ingestion"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation *ErrValidation
		tooLarge   *http.MaxBytesError
		extract    *ingestion.ExtractError
		fetchErr   *fetch.Error
	)
	switch {
	case errors.As(err, &validation), errors.Is(err, fetch.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ingestion.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &extract):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
