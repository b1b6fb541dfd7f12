package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/termsaver/indicatord/internal/activation"
	"github.com/termsaver/indicatord/internal/daemon"
	"github.com/termsaver/indicatord/internal/models"
	"github.com/termsaver/indicatord/internal/updater"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 1000
)

// Control is the daemon surface served over the socket
type Control interface {
	Status(ctx context.Context) (daemon.Status, error)
	Toggle(ctx context.Context) (bool, error)
	Launch(ctx context.Context) (int, error)
	SetTimeout(ctx context.Context, seconds int) error
	CheckUpdates(ctx context.Context) (updater.State, error)
	RunUpdate(ctx context.Context) (int, error)
	Quit()
	History(limit int) ([]*models.ActivationEvent, error)
	Summary(since time.Time) (*models.History, error)
	Errors(limit int) ([]*models.ErrorLog, error)
	ClearHistory() error
}

// Error codes carried in error responses
const (
	CodeAlreadyRunning     = "already_running"
	CodeScreensaverMissing = "screensaver_missing"
	CodeHistoryDisabled    = "history_disabled"
	CodeNotRunning         = "not_running"
	CodeBadRequest         = "bad_request"
	CodeInternal           = "internal"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type TimeoutRequest struct {
	Seconds int `json:"seconds"`
}

type ToggleResponse struct {
	Enabled bool `json:"enabled"`
}

type PIDResponse struct {
	PID int `json:"pid"`
}

type TimeoutResponse struct {
	Timeout int `json:"timeout"`
}

type Handler struct {
	control Control
}

func NewHandler(control Control) *Handler {
	return &Handler{control: control}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Post("/toggle", h.handleToggle)
		r.Post("/launch", h.handleLaunch)
		r.Put("/timeout", h.handleTimeout)
		r.Post("/update/check", h.handleUpdateCheck)
		r.Post("/update/run", h.handleUpdateRun)
		r.Post("/quit", h.handleQuit)
		r.Get("/history", h.handleHistory)
		r.Delete("/history", h.handleClearHistory)
		r.Get("/history/summary", h.handleSummary)
		r.Get("/history/errors", h.handleErrors)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.control.Status(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.control.Toggle(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ToggleResponse{Enabled: enabled})
}

func (h *Handler) handleLaunch(w http.ResponseWriter, r *http.Request) {
	pid, err := h.control.Launch(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, PIDResponse{PID: pid})
}

func (h *Handler) handleTimeout(w http.ResponseWriter, r *http.Request) {
	var req TimeoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error(), Code: CodeBadRequest})
		return
	}
	if req.Seconds <= 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "seconds must be positive", Code: CodeBadRequest})
		return
	}

	if err := h.control.SetTimeout(r.Context(), req.Seconds); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, TimeoutResponse{Timeout: req.Seconds})
}

func (h *Handler) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	state, err := h.control.CheckUpdates(r.Context())
	if err != nil {
		// The state is still meaningful, the check itself failed.
		log.Printf("Update check failed: %v", err)
	}
	respondJSON(w, http.StatusOK, state)
}

func (h *Handler) handleUpdateRun(w http.ResponseWriter, r *http.Request) {
	pid, err := h.control.RunUpdate(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, PIDResponse{PID: pid})
}

func (h *Handler) handleQuit(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
	h.control.Quit()
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := historyLimit(w, r)
	if !ok {
		return
	}

	events, err := h.control.History(limit)
	if err != nil {
		respondError(w, err)
		return
	}
	if events == nil {
		events = []*models.ActivationEvent{}
	}
	respondJSON(w, http.StatusOK, events)
}

func (h *Handler) handleErrors(w http.ResponseWriter, r *http.Request) {
	limit, ok := historyLimit(w, r)
	if !ok {
		return
	}

	logs, err := h.control.Errors(limit)
	if err != nil {
		respondError(w, err)
		return
	}
	if logs == nil {
		logs = []*models.ErrorLog{}
	}
	respondJSON(w, http.StatusOK, logs)
}

func (h *Handler) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.control.ClearHistory(); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// historyLimit reads ?limit=, answering 400 itself when it is invalid
func historyLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return defaultHistoryLimit, true
	}
	l, err := strconv.Atoi(limitStr)
	if err != nil || l <= 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit", Code: CodeBadRequest})
		return 0, false
	}
	return min(l, maxHistoryLimit), true
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if s := r.URL.Query().Get("since"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid since duration", Code: CodeBadRequest})
			return
		}
		window = d
	}

	history, err := h.control.Summary(time.Now().Add(-window))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func respondError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, CodeInternal
	switch {
	case errors.Is(err, activation.ErrAlreadyRunning):
		status, code = http.StatusConflict, CodeAlreadyRunning
	case errors.Is(err, activation.ErrScreensaverMissing):
		status, code = http.StatusPreconditionFailed, CodeScreensaverMissing
	case errors.Is(err, daemon.ErrNoHistory):
		status, code = http.StatusNotFound, CodeHistoryDisabled
	case errors.Is(err, daemon.ErrNotRunning):
		status, code = http.StatusServiceUnavailable, CodeNotRunning
	}
	respondJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON: %v", err)
	}
}
