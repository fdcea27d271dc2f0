// Package http provides the internal HTTP facade over the quota service.
// The facade is a layer on top of the core, not part of its contract;
// callers inside the product talk to it over the service network.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/inkwellhq/quotad/app"
	"github.com/inkwellhq/quotad/ports"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Handler wraps the quota service for HTTP access.
type Handler struct {
	service   *app.QuotaService
	analytics *app.Analytics
	logger    zerolog.Logger

	tokenHash      []byte // bcrypt hash; empty disables auth
	metricsEnabled bool
	version        string
}

// HandlerConfig configures the HTTP facade.
type HandlerConfig struct {
	TokenHash      string
	MetricsEnabled bool
	Version        string
}

// NewHandler creates the HTTP facade.
func NewHandler(service *app.QuotaService, analytics *app.Analytics, logger zerolog.Logger, cfg HandlerConfig) *Handler {
	return &Handler{
		service:        service,
		analytics:      analytics,
		logger:         logger,
		tokenHash:      []byte(cfg.TokenHash),
		metricsEnabled: cfg.MetricsEnabled,
		version:        cfg.Version,
	}
}

// Router builds the chi router for the facade.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/healthz", h.handleHealth)
	r.Get("/version", h.handleVersion)
	if h.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(h.authenticate)
		r.Post("/consume", h.handleConsume)
		r.Get("/usage/{userID}", h.handleUsage)
		r.Get("/analytics/{userID}", h.handleAnalytics)
	})

	return r
}

// requestLogger logs each request with latency.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	})
}

// authenticate checks the service bearer token when one is configured.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.tokenHash) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || bcrypt.CompareHashAndPassword(h.tokenHash, []byte(token)) != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid or missing service token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// consumeRequest is the body of POST /v1/consume.
type consumeRequest struct {
	UserID        string `json:"user_id"`
	Plan          string `json:"plan"`
	Category      string `json:"category"`
	ArtifactBytes int64  `json:"artifact_bytes"`
}

// consumeResponse reports the outcome of a consumption attempt.
type consumeResponse struct {
	Allowed       bool   `json:"allowed"`
	Reason        string `json:"reason,omitempty"` // "quota_exceeded" when denied
	QuestionsUsed int64  `json:"questions_used"`
	DailyLimit    int64  `json:"daily_limit"` // -1 = unlimited
	Unlimited     bool   `json:"unlimited"`
	Remaining     int64  `json:"remaining"` // -1 = unlimited
}

func (h *Handler) handleConsume(w http.ResponseWriter, r *http.Request) {
	var req consumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing_user_id", "user_id is required")
		return
	}
	if req.Category == "" {
		req.Category = "assistant"
	}

	allowed, err := h.service.RecordConsumption(r.Context(), req.UserID, req.Plan, req.Category, req.ArtifactBytes)
	if err != nil {
		// Accounting failure, not quota exhaustion. Callers decide
		// whether to allow-and-warn or deny-and-retry.
		if errors.Is(err, app.ErrStoreUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "accounting_failed", "Usage could not be recorded")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "Unexpected error")
		return
	}

	rec := h.service.GetUsage(r.Context(), req.UserID, req.Plan)
	resp := recordToConsumeResponse(rec, allowed)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	planID := r.URL.Query().Get("plan")

	rec := h.service.GetUsage(r.Context(), userID, planID)
	writeJSON(w, http.StatusOK, recordResponse{
		UserID:        rec.UserID,
		QuestionsUsed: rec.QuestionsUsed,
		DailyLimit:    int64(rec.DailyLimit),
		Unlimited:     rec.DailyLimit.IsUnlimited(),
		Plan:          rec.PlanID,
		PeriodStart:   rec.PeriodStart,
		LastResetDate: rec.LastResetDate,
		LastUpdated:   rec.LastUpdated,
	})
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 90 {
			writeError(w, http.StatusBadRequest, "invalid_days", "days must be between 1 and 90")
			return
		}
		days = n
	}

	summary, err := h.analytics.Summarize(r.Context(), userID, days)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("analytics summarize failed")
		writeError(w, http.StatusServiceUnavailable, "analytics_failed", "Usage log unavailable")
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		UserID:            summary.UserID,
		WindowStart:       summary.WindowStart,
		WindowEnd:         summary.WindowEnd,
		TotalCount:        summary.TotalCount,
		PerDayCounts:      summary.PerDayCounts,
		PerCategoryCounts: summary.PerCategoryCounts,
		AvgArtifactBytes:  summary.AvgArtifactBytes,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"service": "quotad", "version": h.version})
}

// recordResponse is the body of GET /v1/usage/{userID}.
type recordResponse struct {
	UserID        string    `json:"user_id"`
	QuestionsUsed int64     `json:"questions_used"`
	DailyLimit    int64     `json:"daily_limit"`
	Unlimited     bool      `json:"unlimited"`
	Plan          string    `json:"plan"`
	PeriodStart   time.Time `json:"period_start"`
	LastResetDate time.Time `json:"last_reset_date"`
	LastUpdated   time.Time `json:"last_updated"`
}

// summaryResponse is the body of GET /v1/analytics/{userID}.
type summaryResponse struct {
	UserID            string           `json:"user_id"`
	WindowStart       time.Time        `json:"window_start"`
	WindowEnd         time.Time        `json:"window_end"`
	TotalCount        int64            `json:"total_count"`
	PerDayCounts      map[string]int64 `json:"per_day_counts"`
	PerCategoryCounts map[string]int64 `json:"per_category_counts"`
	AvgArtifactBytes  int64            `json:"avg_artifact_bytes"`
}

func recordToConsumeResponse(rec ports.UsageRecord, allowed bool) consumeResponse {
	resp := consumeResponse{
		Allowed:       allowed,
		QuestionsUsed: rec.QuestionsUsed,
		DailyLimit:    int64(rec.DailyLimit),
		Unlimited:     rec.DailyLimit.IsUnlimited(),
	}
	if !allowed {
		resp.Reason = "quota_exceeded"
	}
	if rec.DailyLimit.IsUnlimited() {
		resp.Remaining = -1
	} else {
		resp.Remaining = int64(rec.DailyLimit) - rec.QuestionsUsed
		if resp.Remaining < 0 {
			resp.Remaining = 0
		}
	}
	return resp
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}
