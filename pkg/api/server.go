package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/radekpospisil/congress/pkg/config"
	"github.com/radekpospisil/congress/pkg/datasource"
	"github.com/radekpospisil/congress/pkg/policy"
	"github.com/radekpospisil/congress/pkg/stores"
	"github.com/radekpospisil/congress/pkg/telemetry"
	"github.com/rs/zerolog"
)

// Server is the JSON HTTP API server.
type Server struct {
	cfg     config.ServerConfig
	runtime *policy.Runtime
	manager *datasource.Manager
	store   stores.Store
	metrics *telemetry.Metrics
	logger  zerolog.Logger

	httpServer *http.Server
	startTime  time.Time
}

// NewServer creates the API server. store may be nil to run without
// persistence.
func NewServer(cfg config.ServerConfig, runtime *policy.Runtime, manager *datasource.Manager,
	store stores.Store, metrics *telemetry.Metrics, logger zerolog.Logger) *Server {

	s := &Server{
		cfg:       cfg,
		runtime:   runtime,
		manager:   manager,
		store:     store,
		metrics:   metrics,
		logger:    logger.With().Str("component", "api-server").Logger(),
		startTime: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.logRequests(s.routes()),
		ReadTimeout:  cfg.ReadTimeout.Std(),
		WriteTimeout: cfg.WriteTimeout.Std(),
	}
	return s
}

// routes wires up the endpoint handlers.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if h := s.metrics.Handler(); h != nil {
		mux.Handle("GET /metrics", h)
	}

	mux.HandleFunc("GET /api/v1/policies", s.handleListPolicies)
	mux.HandleFunc("POST /api/v1/policies", s.handleCreatePolicy)
	mux.HandleFunc("GET /api/v1/policies/{name}", s.handleGetPolicy)
	mux.HandleFunc("DELETE /api/v1/policies/{name}", s.handleDeletePolicy)
	mux.HandleFunc("GET /api/v1/policies/{name}/rules", s.handleListRules)
	mux.HandleFunc("POST /api/v1/policies/{name}/rules", s.handleInsertRule)
	mux.HandleFunc("DELETE /api/v1/policies/{name}/rules", s.handleDeleteRule)
	mux.HandleFunc("POST /api/v1/policies/{name}/query", s.handleQuery)
	mux.HandleFunc("POST /api/v1/policies/{name}/simulate", s.handleSimulate)

	mux.HandleFunc("GET /api/v1/datasources", s.handleListDatasources)
	mux.HandleFunc("POST /api/v1/datasources", s.handleCreateDatasource)
	mux.HandleFunc("GET /api/v1/datasources/{name}", s.handleGetDatasource)
	mux.HandleFunc("DELETE /api/v1/datasources/{name}", s.handleDeleteDatasource)
	mux.HandleFunc("POST /api/v1/datasources/{name}/poll", s.handlePollDatasource)
	mux.HandleFunc("GET /api/v1/drivers", s.handleListDrivers)

	return mux
}

// Start begins serving. It blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.cfg.Address).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routes for tests.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.HealthCheck(r.Context()); err != nil {
			s.respondError(w, http.StatusServiceUnavailable, "store unavailable: "+err.Error())
			return
		}
	}
	s.respondJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Uptime:      time.Since(s.startTime).Round(time.Second).String(),
		Policies:    len(s.runtime.Policies()),
		Datasources: len(s.manager.List()),
	})
}

// logRequests logs every request with its duration and status.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}

// respondRuntimeError maps runtime errors onto HTTP statuses.
func (s *Server) respondRuntimeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, policy.ErrPolicyNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, policy.ErrPolicyExists):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, policy.ErrDanglingReference),
		errors.Is(err, policy.ErrRecursion),
		errors.Is(err, policy.ErrUnstratified):
		s.respondError(w, http.StatusConflict, err.Error())
	default:
		s.respondError(w, http.StatusBadRequest, err.Error())
	}
}

// decode reads a JSON request body.
func decode(r *http.Request, into interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(into)
}
