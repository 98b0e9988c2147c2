package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Dan9191/brokerage-service/internal/config"
	"github.com/Dan9191/brokerage-service/internal/middleware"
)

// NewRouter registers the public and admin routes
func NewRouter(h *Handler, cfg *config.Config, metrics http.Handler) *mux.Router {
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/health", h.Health).Methods("GET")
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods("GET")
	}

	// Protected routes
	admin := r.PathPrefix("/admin/systematic").Subrouter()
	admin.Use(middleware.AuthMiddleware(cfg))
	admin.HandleFunc("/run", h.RunSystematic).Methods("POST")
	admin.HandleFunc("/plans/{id:[0-9]+}/executions", h.PlanExecutions).Methods("GET")
	admin.HandleFunc("/executions", h.RecentExecutions).Methods("GET")
	return r
}
