package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/brokerage-service/internal/middleware"
	"github.com/Dan9191/brokerage-service/internal/repository"
	"github.com/Dan9191/brokerage-service/internal/service"
)

// HealthCheck reports whether a backing dependency is reachable
type HealthCheck func(ctx context.Context) error

type Handler struct {
	svc    *service.Service
	health HealthCheck
	log    *logrus.Logger
}

func NewHandler(svc *service.Service, health HealthCheck, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, health: health, log: log}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Login handles administrator authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.svc.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.log.WithError(err).Error("Login failed")
		h.writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// RunSystematic triggers an execution run for ?date=YYYY-MM-DD, today by default
func (h *Handler) RunSystematic(w http.ResponseWriter, r *http.Request) {
	var date time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	admin, _ := middleware.SubjectFromContext(r.Context())
	h.log.WithField("admin", admin).Info("Manual execution run requested")
	summary, err := h.svc.TriggerRun(r.Context(), date)
	if err != nil {
		h.log.WithError(err).Error("Manual execution run failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// PlanExecutions lists the execution history of one plan
func (h *Handler) PlanExecutions(w http.ResponseWriter, r *http.Request) {
	planID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || planID <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid plan id")
		return
	}
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}

	logs, err := h.svc.PlanHistory(r.Context(), planID, limit)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Plan not found")
			return
		}
		h.log.WithError(err).Errorf("Failed to load history of plan %d", planID)
		h.writeError(w, http.StatusInternalServerError, "Failed to load execution history")
		return
	}
	h.writeJSON(w, http.StatusOK, logs)
}

// RecentExecutions lists the latest executions across plans
func (h *Handler) RecentExecutions(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}

	logs, err := h.svc.RecentExecutions(r.Context(), limit)
	if err != nil {
		h.log.WithError(err).Error("Failed to load recent executions")
		h.writeError(w, http.StatusInternalServerError, "Failed to load execution history")
		return
	}
	h.writeJSON(w, http.StatusOK, logs)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.log.WithError(err).Warn("Health check failed")
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Error("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}
