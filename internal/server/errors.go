package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/application-tracker/internal/store"
)

// ErrValidation is a bad query parameter
type ErrValidation struct {
	Param string
	Value string
	Rule  string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Param, e.Value, e.Rule)
}

// HTTPStatus maps a handler error to a response code
func HTTPStatus(err error) int {
	var ve *ErrValidation
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case store.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
