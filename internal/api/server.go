package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"careerforge/internal/guard"
	"careerforge/internal/hub"
	"careerforge/internal/logger"
	"careerforge/internal/quiz"
	"careerforge/internal/websocket"
	"careerforge/pkg/interfaces"
	"careerforge/pkg/types"
)

// maxBodyBytes bounds request bodies; a batch of messages may carry several 64KB entries
const maxBodyBytes = 1 << 20

// StatsSource exposes gateway counters for /health
type StatsSource interface {
	Stats() websocket.Stats
}

// HubStats exposes fan-out counters for /health
type HubStats interface {
	Stats() hub.Stats
}

// Dependencies are the components the HTTP layer fronts
type Dependencies struct {
	Verifier interfaces.TokenVerifier
	Sessions interfaces.SessionLog
	Quizzes  *quiz.Machine
	Guard    guard.Guard
	Notifier interfaces.Notifier
	Database interfaces.DatabaseManager
	Registry StatsSource
	Hub      HubStats
}

// Options tune middleware and retry behaviour
type Options struct {
	AllowedOrigins []string
	// RetryMaxElapsed bounds retries of ErrOperationInProgress; 0 disables retrying
	RetryMaxElapsed time.Duration
}

// ARCHITECTURAL DISCOVERY: HTTP API layer serves as pure interface between external clients and internal components
// Clean separation - no business logic, only HTTP handling and JSON serialization
type Server struct {
	deps      Dependencies
	opts      Options
	log       *logger.Logger
	router    *http.ServeMux
	startedAt time.Time
}

func NewServer(deps Dependencies, opts Options, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		deps:      deps,
		opts:      opts,
		log:       log.With("component", "api"),
		router:    http.NewServeMux(),
		startedAt: time.Now(),
	}
	s.setupRoutes()
	return s
}

// ARCHITECTURAL DISCOVERY: Route setup follows REST conventions with proper middleware
func (s *Server) setupRoutes() {
	authed := func(h http.HandlerFunc) http.Handler {
		return s.corsMiddleware(s.jsonMiddleware(s.authMiddleware(h)))
	}

	s.router.Handle("POST /api/sessions/resolve", authed(s.resolveSession))
	s.router.Handle("GET /api/sessions/{id}", authed(s.getSession))
	s.router.Handle("DELETE /api/sessions/{id}", authed(s.endSession))
	s.router.Handle("POST /api/sessions/{id}/messages", authed(s.appendMessages))

	s.router.Handle("POST /api/quizzes", authed(s.startQuiz))
	s.router.Handle("GET /api/quizzes/{id}", authed(s.getQuiz))
	s.router.Handle("POST /api/quizzes/{id}/answers", authed(s.recordAnswer))

	s.router.Handle("POST /api/match", authed(s.computeMatch))
	s.router.Handle("GET /api/operations", authed(s.listOperations))

	// FUNCTIONAL DISCOVERY: Preflight requests carry no credential
	s.router.Handle("OPTIONS /api/", s.corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	s.router.Handle("GET /health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

// FUNCTIONAL DISCOVERY: Implement http.Handler interface for integration with standard HTTP server
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type principalKey struct{}

// PrincipalFrom returns the principal the auth middleware stored on the request context
func PrincipalFrom(ctx context.Context) (types.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(types.Principal)
	return p, ok
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			s.sendError(w, r, ErrMissingBearer)
			return
		}

		principal, err := s.deps.Verifier.Verify(r.Context(), strings.TrimSpace(token))
		if err != nil {
			s.sendError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, principal)))
	})
}

// ARCHITECTURAL DISCOVERY: CORS middleware enables web client access
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case slices.Contains(s.opts.AllowedOrigins, "*"):
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.opts.AllowedOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// FUNCTIONAL DISCOVERY: JSON middleware ensures proper content-type headers
func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// withRetry runs op, retrying while another holder has the same guard key
// FUNCTIONAL DISCOVERY: Only OperationInProgress is transient; every other error is returned
// on the first attempt
func (s *Server) withRetry(ctx context.Context, op func() error) error {
	if s.opts.RetryMaxElapsed <= 0 {
		return op()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = s.opts.RetryMaxElapsed

	return backoff.Retry(func() error {
		err := op()
		if err == nil || guard.IsInProgress(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("failed to write response", "error", err)
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// sendError writes the consistent error body; server-side failures are logged, not echoed
func (s *Server) sendError(w http.ResponseWriter, r *http.Request, err error) {
	ae := classify(err)
	message := ae.Err.Error()
	if ae.Status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = http.StatusText(ae.Status)
	}
	s.sendJSON(w, ae.Status, ErrorResponse{Error: ae.Code, Code: ae.Status, Message: message})
}

type HealthResponse struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Database    string                 `json:"database"`
	Connections websocket.Stats        `json:"connections"`
	Delivery    hub.Stats              `json:"delivery"`
	System      map[string]interface{} `json:"system"`
}

// healthCheck reports 503 when the database is unreachable
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Database:  "healthy",
		System: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"uptime":     time.Since(s.startedAt).Round(time.Second).String(),
		},
	}
	if s.deps.Database != nil {
		if err := s.deps.Database.HealthCheck(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Database = "unavailable"
			s.log.Warn("database health check failed", "error", err)
		}
	}
	if s.deps.Registry != nil {
		resp.Connections = s.deps.Registry.Stats()
	}
	if s.deps.Hub != nil {
		resp.Delivery = s.deps.Hub.Stats()
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	s.sendJSON(w, status, resp)
}

// principal is only called behind authMiddleware
func principal(r *http.Request) types.Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}
