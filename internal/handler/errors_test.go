package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/SyedDaiam9101/crop-disease-service/internal/predict"
	"github.com/SyedDaiam9101/crop-disease-service/internal/preprocess"
)

func TestHTTPError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"content type", fmt.Errorf("%w: got text/plain", predict.ErrInvalidContentType), http.StatusBadRequest},
		{"unknown crop", fmt.Errorf("%w 'x'", predict.ErrUnknownCrop), http.StatusBadRequest},
		{"decode", &preprocess.DecodeError{Err: errors.New("bad")}, http.StatusInternalServerError},
		{"label mismatch", predict.ErrLabelMismatch, http.StatusInternalServerError},
		{"empty output", predict.ErrEmptyOutput, http.StatusInternalServerError},
		{"non-finite score", fmt.Errorf("%w: NaN", predict.ErrNonFiniteScore), http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, detail := httpError(tt.err, "x")
			if status != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, status)
			}
			if detail == "" {
				t.Error("Expected non-empty detail")
			}
		})
	}
}
