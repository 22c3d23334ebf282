// Package api exposes distance, route and live-tracking operations as a
// JSON HTTP API with a websocket stream per monitoring session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/asistentevial/eta-worker/internal/calculator"
	"github.com/asistentevial/eta-worker/internal/database"
	"github.com/asistentevial/eta-worker/internal/monitoring"
	"github.com/asistentevial/eta-worker/internal/simulator"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxBodyBytes    = 1 << 20
)

// SessionManager is the monitoring surface the API drives
type SessionManager interface {
	StartSession(ctx context.Context, origin, destination calculator.Coordinate) (monitoring.Snapshot, error)
	GetSession(id string) (monitoring.Snapshot, error)
	ListSessions(status simulator.Status, limit, offset int) []monitoring.Snapshot
	CancelSession(id string) error
	Subscribe(id string) (<-chan simulator.Unit, func(), error)
	Stats() map[string]int
}

// Handler serves the HTTP API
type Handler struct {
	serviceName     string
	averageSpeedKMH float64
	sessions        SessionManager
	store           database.RouteStore
	logger          zerolog.Logger
}

// NewHandler creates a Handler. averageSpeedKMH is used when a request does
// not carry its own speed.
func NewHandler(serviceName string, averageSpeedKMH float64, sessions SessionManager, store database.RouteStore, logger zerolog.Logger) *Handler {
	return &Handler{
		serviceName:     serviceName,
		averageSpeedKMH: averageSpeedKMH,
		sessions:        sessions,
		store:           store,
		logger:          logger,
	}
}

// Routes returns the instrumented router
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /readyz", h.handleReadyz)

	mux.HandleFunc("POST /v1/distance", h.handleDistance)
	mux.HandleFunc("POST /v1/routes/summary", h.handleSummarize)

	mux.HandleFunc("POST /v1/routes", h.handleSaveRoute)
	mux.HandleFunc("GET /v1/routes", h.handleListRoutes)
	mux.HandleFunc("GET /v1/routes/{id}", h.handleGetRoute)
	mux.HandleFunc("DELETE /v1/routes/{id}", h.handleDeleteRoute)

	mux.HandleFunc("POST /v1/sessions", h.handleStartSession)
	mux.HandleFunc("GET /v1/sessions", h.handleListSessions)
	mux.HandleFunc("GET /v1/sessions/{id}", h.handleGetSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", h.handleCancelSession)

	// the stream hijacks the connection, so it stays outside the otelhttp
	// response writer
	root := http.NewServeMux()
	root.HandleFunc("GET /v1/sessions/{id}/stream", h.handleStream)
	root.Handle("/", otelhttp.NewHandler(h.logRequests(mux), h.serviceName))

	return root
}

// logRequests logs every request at debug level
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": h.serviceName,
	})
}

func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.HealthCheck(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("Readiness check failed")
		respondWithError(w, http.StatusServiceUnavailable, "not ready", []string{err.Error()})
		return
	}

	respondWithSuccess(w, http.StatusOK, "ready", map[string]interface{}{
		"sessions": h.sessions.Stats(),
	})
}

// decode reads a JSON body into dst and validates it, writing the error
// response itself when it returns false
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", []string{err.Error()})
		return false
	}

	if err := validate.Struct(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed", validationErrors(err))
		return false
	}

	return true
}

// pagination parses limit and offset query parameters
func pagination(r *http.Request) (limit, offset int, errs []string) {
	limit = defaultPageSize

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			errs = append(errs, "limit must be between 1 and "+strconv.Itoa(maxPageSize))
		} else {
			limit = n
		}
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, "offset must be a non-negative integer")
		} else {
			offset = n
		}
	}

	return limit, offset, errs
}

// respondWithDomainError maps package errors to status codes and localized
// messages
func (h *Handler) respondWithDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, monitoring.ErrRoutingUnavailable), errors.Is(err, simulator.ErrInvalidSimulationInput):
		status = http.StatusBadGateway
	case errors.Is(err, monitoring.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, monitoring.ErrTooManySessions):
		status = http.StatusTooManyRequests
	case errors.Is(err, monitoring.ErrShuttingDown):
		status = http.StatusServiceUnavailable
	case errors.Is(err, calculator.ErrInvalidCoordinate):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("Request failed")
	}

	respondWithError(w, status, monitoring.UserMessage(err), nil)
}
