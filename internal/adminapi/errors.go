package adminapi

import (
	"errors"
	"net/http"

	"github.com/sioux/pubsub/internal/pubsub"
)

// apiError is this package's ServiceError equivalent: a code/message pair
// mapped to an HTTP status by writeAPIError, mirroring the teacher's
// internal/api/errors.go service.ServiceError mapping.
type apiError struct {
	Code    string
	Message string
}

func (e *apiError) Error() string { return e.Message }

func invalidArgument(message string) *apiError {
	return &apiError{Code: "INVALID_ARGUMENT", Message: message}
}

func notFound(message string) *apiError {
	return &apiError{Code: "NOT_FOUND", Message: message}
}

// writeError maps err to an HTTP response. Known domain sentinels (e.g.
// pubsub.ErrUnknownConfiguration) are translated to the matching apiError
// before falling back to INTERNAL.
func writeError(w http.ResponseWriter, err error) {
	if err == nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
		return
	}

	if errors.Is(err, pubsub.ErrUnknownConfiguration) {
		err = notFound(err.Error())
	}

	var apiErr *apiError
	if errors.As(err, &apiErr) {
		status := http.StatusInternalServerError
		switch apiErr.Code {
		case "INVALID_ARGUMENT":
			status = http.StatusBadRequest
		case "NOT_FOUND":
			status = http.StatusNotFound
		case "CONFLICT":
			status = http.StatusConflict
		}
		WriteError(w, status, apiErr.Code, apiErr.Message)
		return
	}

	WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
}
