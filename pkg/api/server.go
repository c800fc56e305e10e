// Package api exposes the daemon's HTTP ops surface: health, metrics and
// read-only inspection of the workflow session. Mutations are not served
// here; they flow through the MCP transport.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/loomlab/loom/pkg/catalog"
	"github.com/loomlab/loom/pkg/oplog"
	"github.com/loomlab/loom/pkg/portable"
	"github.com/loomlab/loom/pkg/session"
	"github.com/loomlab/loom/pkg/workflow"
)

// Server encapsulates the HTTP ops server.
type Server struct {
	manager *session.Manager
	logger  *zap.Logger
	token   string
	handler http.Handler
	server  *http.Server
}

// NewServer builds the ops server around a session manager. An empty addr
// falls back to the loopback default; an empty token disables auth.
func NewServer(mgr *session.Manager, logger *zap.Logger, addr, token string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		manager: mgr,
		logger:  logger,
		token:   token,
	}
	s.handler = s.routes()

	if addr == "" {
		addr = "127.0.0.1:8091"
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	return s
}

// Handler returns the configured router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.logRequests)
	r.Use(chimiddleware.Recoverer)

	// The browser-based editor polls this API from another origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/v1/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/v1/workflows", s.handleListWorkflows)
		r.Get("/v1/workflows/{id}", s.handleGetWorkflow)
		r.Get("/v1/workflows/{id}/portable", s.handleGetPortable)
		r.Get("/v1/workflows/{id}/validate", s.handleValidateWorkflow)
		r.Get("/v1/catalog", s.handleListCatalog)
		r.Get("/v1/catalog/{name}", s.handleDescribeType)
		r.Get("/v1/logs", s.handleLogs)
	})

	return r
}

// Start runs the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info("ops server starting", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("ops server stopping")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	workflows, _, _ := s.manager.Stats()
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Workflows: workflows})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.manager.List())
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	g, ok := s.lookupWorkflow(w, r)
	if !ok {
		return
	}
	detail := WorkflowDetail{
		ID:          g.ID(),
		Name:        g.Name(),
		Description: g.Description(),
		CreatedAt:   g.CreatedAt(),
		Active:      g.ID() == s.manager.ActiveID(),
		Nodes:       g.Nodes(),
		Links:       g.Links(),
	}
	s.respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleGetPortable(w http.ResponseWriter, r *http.Request) {
	g, ok := s.lookupWorkflow(w, r)
	if !ok {
		return
	}
	doc, err := portable.Export(g)
	if err != nil {
		s.logger.Error("failed to export workflow", zap.String("workflow_id", g.ID()), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "export_failed")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	g, ok := s.lookupWorkflow(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, g.Validate())
}

func (s *Server) handleListCatalog(w http.ResponseWriter, r *http.Request) {
	cat := s.manager.Catalog()
	types := make([]catalog.NodeType, 0, cat.Len())
	for _, name := range cat.Types() {
		t, err := cat.Describe(name)
		if err != nil {
			continue
		}
		types = append(types, t)
	}
	s.respondJSON(w, http.StatusOK, types)
}

func (s *Server) handleDescribeType(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	t, err := s.manager.Catalog().Describe(name)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "unknown_node_type")
		return
	}
	s.respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 100
	if l := q.Get("limit"); l != "" {
		val, err := strconv.Atoi(l)
		if err != nil || val <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = val
	}

	level := q.Get("level")
	switch level {
	case "", "debug", "info", "warn", "error":
	default:
		s.respondError(w, http.StatusBadRequest, "invalid_level")
		return
	}

	entries := s.manager.Log().Ring().Recent(limit, oplog.Level(level), q.Get("workflow_id"))
	s.respondJSON(w, http.StatusOK, entries)
}

// lookupWorkflow resolves the {id} path parameter, writing a 404 on a miss.
func (s *Server) lookupWorkflow(w http.ResponseWriter, r *http.Request) (*workflow.Graph, bool) {
	id := chi.URLParam(r, "id")
	g, err := s.manager.Get(id)
	if err != nil {
		var notFound *session.GraphNotFoundError
		if errors.As(err, &notFound) {
			s.respondError(w, http.StatusNotFound, "workflow_not_found")
		} else {
			s.logger.Error("failed to resolve workflow", zap.String("workflow_id", id), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "internal_server_error")
		}
		return nil, false
	}
	return g, true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code string) {
	s.respondJSON(w, status, ErrorResponse{Error: code})
}

// requireToken enforces bearer auth when a token is configured.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(s.token)) != 1 {
			s.respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// logRequests emits one structured line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}
