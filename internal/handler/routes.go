// internal/handler/routes.go
package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/SyedDaiam9101/crop-disease-service/internal/middleware"
)

// Router wires the API routes, the static file mount and the request
// middleware.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.Metrics)

	r.HandleFunc("/", h.Root).Methods(http.MethodGet)
	r.HandleFunc("/predict", h.Predict).Methods(http.MethodPost)
	r.HandleFunc("/upload", h.UploadForm).Methods(http.MethodGet)
	r.HandleFunc("/models", h.Models).Methods(http.MethodGet)

	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(h.staticDir))))

	return r
}
