package httpapi

import (
	"github.com/gorilla/mux"
)

// NewRouter builds the gorilla/mux router binding every Control API
// operation to its HTTP verb and path.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods("GET")

	jobs := r.PathPrefix("/jobs").Subrouter()
	jobs.HandleFunc("", h.CreateJob).Methods("POST")
	jobs.HandleFunc("", h.ListJobs).Methods("GET")
	jobs.HandleFunc("/{id}", h.GetJob).Methods("GET")
	jobs.HandleFunc("/{id}/pages", h.ListPages).Methods("GET")
	jobs.HandleFunc("/{id}/pages/{pageId}", h.GetPage).Methods("GET")
	jobs.HandleFunc("/{id}/export", h.ExportPages).Methods("GET")
	jobs.HandleFunc("/{id}/cancel", h.CancelJob).Methods("POST")
	jobs.HandleFunc("/{id}/pause", h.PauseJob).Methods("POST")
	jobs.HandleFunc("/{id}/resume", h.ResumeJob).Methods("POST")

	return r
}
