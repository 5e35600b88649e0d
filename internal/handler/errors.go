// internal/handler/errors.go
package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/SyedDaiam9101/crop-disease-service/internal/predict"
	"github.com/SyedDaiam9101/crop-disease-service/internal/preprocess"
)

// errorResponse is the body of every non-2xx JSON response
type errorResponse struct {
	Detail string `json:"detail"`
}

// httpError maps known prediction errors to a status code and client-facing
// detail. Anything unrecognised is a 500 with a generic message.
func httpError(err error, crop string) (int, string) {
	var decodeErr *preprocess.DecodeError

	switch {
	case errors.Is(err, predict.ErrInvalidContentType):
		return http.StatusBadRequest, "File must be an image."

	case errors.Is(err, predict.ErrUnknownCrop):
		return http.StatusBadRequest, fmt.Sprintf("No model available for crop '%s'.", crop)

	case errors.As(err, &decodeErr):
		return http.StatusInternalServerError, "Could not decode image."

	case errors.Is(err, predict.ErrLabelMismatch), errors.Is(err, predict.ErrEmptyOutput):
		return http.StatusInternalServerError, "Model output does not match its labels."

	case errors.Is(err, predict.ErrNonFiniteScore):
		return http.StatusInternalServerError, "Model produced an invalid score."

	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}
