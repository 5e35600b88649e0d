// internal/handler/handler.go
package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/SyedDaiam9101/crop-disease-service/internal/middleware"
	"github.com/SyedDaiam9101/crop-disease-service/internal/predict"
)

const (
	// DefaultMaxUploadBytes caps the size of a /predict request body
	DefaultMaxUploadBytes = 10 << 20

	rootMessage    = "Crop Disease Prediction API running. Use /upload to test."
	uploadPageName = "upload.html"
)

// Handler serves the HTTP API on top of a prediction service.
type Handler struct {
	svc            *predict.Service
	staticDir      string
	maxUploadBytes int64
	logger         *zap.Logger
}

// New creates a new Handler. maxUploadBytes <= 0 uses DefaultMaxUploadBytes.
func New(svc *predict.Service, staticDir string, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		svc:            svc,
		staticDir:      staticDir,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Root reports that the service is up.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"message": rootMessage})
}

// Models lists the loaded models.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"models": h.svc.Models()})
}

// Predict handles a multipart upload with a "crop" field and a "file" part.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	log := h.logger.With(zap.String("request_id", middleware.GetRequestID(r.Context())))

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Request body exceeds %d bytes.", h.maxUploadBytes))
			return
		}
		h.writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	cropValues, ok := r.MultipartForm.Value["crop"]
	if !ok || len(cropValues) == 0 {
		h.writeError(w, http.StatusUnprocessableEntity, "Field required: crop")
		return
	}
	crop := cropValues[0]

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			h.writeError(w, http.StatusUnprocessableEntity, "Field required: file")
			return
		}
		h.writeError(w, http.StatusBadRequest, "Failed to read file: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error("Failed to read upload", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "Failed to read file contents.")
		return
	}

	result, err := h.svc.Predict(r.Context(), predict.Request{
		Crop:        crop,
		ContentType: header.Header.Get("Content-Type"),
		Image:       data,
	})
	if err != nil {
		status, detail := httpError(err, crop)
		if status >= http.StatusInternalServerError {
			log.Error("Prediction failed", zap.String("crop", crop), zap.Error(err))
		} else {
			log.Info("Prediction rejected", zap.String("crop", crop), zap.Int("status", status), zap.Error(err))
		}
		h.writeError(w, status, detail)
		return
	}

	log.Info("Prediction served",
		zap.String("crop", result.Crop),
		zap.String("model", result.ModelUsed),
		zap.String("label", result.PredictedDisease),
		zap.Float64("confidence", result.Confidence),
		zap.String("filename", header.Filename),
		zap.Int("bytes", len(data)),
	)
	h.writeJSON(w, http.StatusOK, result)
}

// UploadForm serves upload.html from the static directory.
func (h *Handler) UploadForm(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(h.staticDir, uploadPageName)
	if _, err := os.Stat(path); err != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "<h3>Upload page not found. Please add %s to '%s'.</h3>", uploadPageName, h.staticDir)
		return
	}
	http.ServeFile(w, r, path)
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	// Encode first so a failure can still change the status
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		h.logger.Error("Unable to encode JSON response", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"Internal Server Error"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (h *Handler) writeError(w http.ResponseWriter, status int, detail string) {
	h.writeJSON(w, status, errorResponse{Detail: detail})
}
