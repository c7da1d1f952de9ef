package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/liamcoop/workflowrules/internal/metrics"
	"github.com/liamcoop/workflowrules/orchestrator"
	"github.com/liamcoop/workflowrules/rules"
	"gopkg.in/yaml.v3"
)

const maxBodyBytes = 4 << 20

// Server exposes the orchestrator and the workflow store over HTTP
type Server struct {
	store        rules.WorkflowStore
	orchestrator *orchestrator.Orchestrator
	metrics      *metrics.Metrics
	db           *sql.DB
	logger       *slog.Logger
	router       *chi.Mux
}

// NewServer wires the routes. db is only used by the health check and
// may be nil when the store is in memory.
func NewServer(store rules.WorkflowStore, orch *orchestrator.Orchestrator, m *metrics.Metrics, db *sql.DB, logger *slog.Logger) *Server {
	s := &Server{
		store:        store,
		orchestrator: orch,
		metrics:      m,
		db:           db,
		logger:       logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1/workflows", func(r chi.Router) {
		r.Get("/", s.handleListWorkflows)

		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetWorkflow)
			r.Put("/", s.handlePutWorkflow)
			r.Delete("/", s.handleDeleteWorkflow)
			r.Post("/run", s.handleRunWorkflow)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"workflowsLoaded": len(s.orchestrator.Workflows()),
	})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	defs, err := s.store.List(r.Context())
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to list workflows", err)
		return
	}
	stored := make(map[string]*rules.WorkflowDefinition, len(defs))
	for _, def := range defs {
		stored[def.Name] = def
	}

	resp := WorkflowsListResponse{Workflows: []WorkflowSummary{}}
	for _, name := range s.orchestrator.Workflows() {
		rs, _ := s.orchestrator.Workflow(name)
		summary := WorkflowSummary{Name: name, Rules: len(rs)}
		if def, ok := stored[name]; ok {
			summary.Stored = true
			updated := def.UpdatedAt
			summary.UpdatedAt = &updated
		}
		resp.Workflows = append(resp.Workflows, summary)
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	rs, registered := s.orchestrator.Workflow(name)
	def, err := s.store.Get(r.Context(), name)
	switch {
	case errors.Is(err, rules.ErrWorkflowNotFound):
		if !registered {
			s.respondError(w, r, http.StatusNotFound, "workflow not found", err)
			return
		}
	case err != nil:
		s.respondError(w, r, http.StatusInternalServerError, "failed to load workflow", err)
		return
	}

	resp := WorkflowResponse{Name: name, RuleOrder: ruleOrder(rs)}
	if def != nil {
		resp.Stored = true
		resp.Definition = def.Rules
		resp.CreatedAt = &def.CreatedAt
		resp.UpdatedAt = &def.UpdatedAt
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePutWorkflow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := orchestrator.ValidateWorkflowName(name); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid workflow name", err)
		return
	}

	raw, err := readRuleSource(r)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rs, err := rules.ParseRulesJSON(raw)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid rules", err)
		return
	}
	if err := orchestrator.ValidateRules(rs); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid rules", err)
		return
	}

	def := &rules.WorkflowDefinition{Name: name, Rules: raw}
	if err := s.store.Put(r.Context(), def); err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to store workflow", err)
		return
	}
	s.orchestrator.RegisterWorkflow(name, rs)
	s.metrics.SetWorkflows(len(s.orchestrator.Workflows()))

	respondJSON(w, http.StatusOK, WorkflowResponse{
		Name:       name,
		RuleOrder:  ruleOrder(rs),
		Stored:     true,
		Definition: def.Rules,
		CreatedAt:  &def.CreatedAt,
		UpdatedAt:  &def.UpdatedAt,
	})
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	err := s.store.Delete(r.Context(), name)
	if err != nil && !errors.Is(err, rules.ErrWorkflowNotFound) {
		s.respondError(w, r, http.StatusInternalServerError, "failed to delete workflow", err)
		return
	}
	removed := s.orchestrator.RemoveWorkflow(name)
	if err != nil && !removed {
		s.respondError(w, r, http.StatusNotFound, "workflow not found", err)
		return
	}
	s.metrics.SetWorkflows(len(s.orchestrator.Workflows()))

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req RunWorkflowRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := validateRequest(req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	start := time.Now()
	result, err := s.orchestrator.Run(r.Context(), name, req.Context)
	elapsed := time.Since(start)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "workflow run failed", err)
		return
	}

	respondJSON(w, http.StatusOK, RunWorkflowResponse{
		Workflow:       name,
		Result:         result,
		Context:        req.Context,
		EvaluationTime: elapsed.String(),
	})
}

// readRuleSource returns the rule list of a PUT body as JSON. YAML bodies
// are a bare rule list; JSON bodies wrap it as {"rules": [...]}.
func readRuleSource(r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var req PutWorkflowRequest
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml":
		if err := yaml.Unmarshal(body, &req.Rules); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	return json.Marshal(req.Rules)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), message,
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	respondJSON(w, status, resp)
}
