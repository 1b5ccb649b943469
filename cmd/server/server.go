package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/yaml.v3"

	"github.com/liamcoop/rulebuilder/internal/logger"
	"github.com/liamcoop/rulebuilder/rules"
)

// pinger is implemented by stores that can report connectivity.
type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	engine  *rules.Engine
	store   rules.RuleStore
	backend string
	metrics *Metrics
	router  *chi.Mux
	slow    time.Duration
}

// NewServer wires the REST API over an engine and the store it writes to.
func NewServer(engine *rules.Engine, store rules.RuleStore, backend string, slow time.Duration) *Server {
	s := &Server{
		engine:  engine,
		store:   store,
		backend: backend,
		metrics: NewMetrics(),
		slow:    slow,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware(s.slow))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/v1/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Post("/", s.handleMergeRule)
		r.Post("/validate-mapping", s.handleValidateMapping)
		r.Get("/{name}", s.handleGetRule)
		r.Get("/{name}/status", s.handleRuleStatus)
	})

	r.Route("/api/v1/inputs", func(r chi.Router) {
		r.Post("/validate", s.handleValidateInput)
		r.Post("/plan", s.handlePlanInputs)
		r.Post("/flatten", s.handleFlattenInputs)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "unhealthy",
				Backend: s.backend,
				Error:   err.Error(),
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Backend: s.backend})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.ListNames(r.Context())
	if err != nil {
		respondError(w, &rules.UpstreamError{Op: "list rules", Err: err})
		return
	}
	respondJSON(w, http.StatusOK, Response{Success: true, Data: RulesListResponse{Names: names}, Errors: []string{}})
}

// handleMergeRule accepts a full or partial rule definition.
func (s *Server) handleMergeRule(w http.ResponseWriter, r *http.Request) {
	var def rules.RuleDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondBadRequest(w, "invalid request body", err)
		return
	}

	res, err := s.engine.MergeRule(r.Context(), &def)
	s.metrics.observeMerge(res, err)
	if err != nil {
		respondError(w, err)
		return
	}
	if !res.Success {
		s.metrics.observeValidation(res.Errors)
		logger.WarnHttp4xx(http.StatusUnprocessableEntity)
		respondJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	for _, d := range res.Degraded {
		logger.Info("rule saved with degraded result", "rule", def.Meta.Name, "component", d.Component, "reason", d.Reason)
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	respondJSON(w, status, res)
}

// handleGetRule returns the stored rule as JSON, or as YAML with
// ?format=yaml.
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	name, ok := ruleName(w, r)
	if !ok {
		return
	}
	rule, err := s.engine.GetRule(r.Context(), name)
	if err != nil {
		respondError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "yaml" {
		out, err := yaml.Marshal(rule)
		if err != nil {
			respondError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		w.Write(out)
		return
	}
	respondJSON(w, http.StatusOK, Response{Success: true, Data: rule, Errors: []string{}})
}

func (s *Server) handleRuleStatus(w http.ResponseWriter, r *http.Request) {
	name, ok := ruleName(w, r)
	if !ok {
		return
	}
	report, err := s.engine.CheckStatus(r.Context(), name)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, Response{
		Success:    true,
		Data:       report,
		Errors:     []string{},
		Message:    "Rule " + name + " is " + string(report.Status) + " (" + string(report.Phase) + ").",
		NextAction: report.NextAction,
	})
}

// handleValidateMapping checks the aliases and I/O map of a spec without
// storing it. Validation problems are a normal 200 answer.
func (s *Server) handleValidateMapping(w http.ResponseWriter, r *http.Request) {
	var spec rules.RuleSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		respondBadRequest(w, "invalid request body", err)
		return
	}
	res, err := s.engine.ValidateMapping(r.Context(), &spec)
	if err != nil {
		respondError(w, err)
		return
	}
	s.metrics.observeValidation(res.Errors)

	msg := "All mappings are valid."
	next := ""
	if !res.Valid {
		msg = "Some aliases or mappings are invalid."
		next = "Fix the reported mappings and validate again."
	}
	respondJSON(w, http.StatusOK, Response{Success: res.Valid, Data: res, Errors: res.Errors, Message: msg, NextAction: next})
}

func (s *Server) handleValidateInput(w http.ResponseWriter, r *http.Request) {
	var req ValidateInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body", err)
		return
	}
	if req.TaskName == "" || req.InputName == "" {
		respondBadRequest(w, "taskName and inputName are required", nil)
		return
	}

	res, err := s.engine.ValidateInput(r.Context(), req.TaskName, req.InputName, req.Value)
	if err != nil {
		respondError(w, err)
		return
	}
	next := ""
	if !res.Valid && len(res.Suggestions) > 0 {
		next = res.Suggestions[0]
	}
	respondJSON(w, http.StatusOK, Response{Success: res.Valid, Data: res, Errors: res.Errors, NextAction: next})
}

func (s *Server) handlePlanInputs(w http.ResponseWriter, r *http.Request) {
	var req PlanInputsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body", err)
		return
	}

	plan, verrs, err := s.engine.PlanInputs(r.Context(), req.Tasks)
	if err != nil {
		respondError(w, err)
		return
	}
	if len(verrs) > 0 {
		respondError(w, verrs)
		return
	}
	respondJSON(w, http.StatusOK, Response{
		Success:    true,
		Data:       plan,
		Errors:     []string{},
		NextAction: "Collect the planned inputs, then merge them into the rule with the suggested inputsMeta and ioMap.",
	})
}

func (s *Server) handleFlattenInputs(w http.ResponseWriter, r *http.Request) {
	var req FlattenInputsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body", err)
		return
	}

	out, verrs, err := s.engine.FlattenInputs(r.Context(), req.Tasks, req.Values)
	if err != nil {
		respondError(w, err)
		return
	}
	if len(verrs) > 0 {
		respondError(w, verrs)
		return
	}
	next := "Merge inputs, inputsMeta and ioMap into the rule."
	if !out.ReadyForCreation {
		next = "Collect the missing inputs before creating the rule."
	}
	respondJSON(w, http.StatusOK, Response{Success: true, Data: out, Errors: []string{}, NextAction: next})
}

// ruleName returns the {name} parameter. chi matches on RawPath when the
// request carries one, and only then is the parameter still escaped.
func ruleName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")
	var err error
	if r.URL.RawPath != "" {
		name, err = url.PathUnescape(name)
	}
	if err != nil || name == "" {
		respondBadRequest(w, "invalid rule name", err)
		return "", false
	}
	return name, true
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondBadRequest(w http.ResponseWriter, message string, err error) {
	logger.WarnHttp4xx(http.StatusBadRequest)
	errs := []string{message}
	if err != nil {
		errs = append(errs, err.Error())
	}
	respondJSON(w, http.StatusBadRequest, Response{Errors: errs, Message: message})
}

// respondError maps engine errors onto status codes: validation 422, not
// found 404, upstream 502, anything else 500.
func respondError(w http.ResponseWriter, err error) {
	var verrs rules.ValidationErrors
	var upstream *rules.UpstreamError

	switch {
	case errors.As(err, &verrs):
		logger.WarnHttp4xx(http.StatusUnprocessableEntity)
		respondJSON(w, http.StatusUnprocessableEntity, Response{
			Errors:     verrs,
			Message:    verrs.Error(),
			NextAction: "Fix the reported errors and resubmit.",
		})
	case errors.Is(err, rules.ErrNotFound):
		logger.WarnHttp4xx(http.StatusNotFound)
		respondJSON(w, http.StatusNotFound, Response{
			Errors:     []string{err.Error()},
			Message:    err.Error(),
			NextAction: "Create the rule by merging a definition with this name.",
		})
	case errors.As(err, &upstream):
		logger.ErrorHttp5xx()
		logger.Upstream(upstream.Op, upstream.Err)
		respondJSON(w, http.StatusBadGateway, Response{
			Errors:     []string{err.Error()},
			Message:    "A dependency failed; nothing was changed.",
			NextAction: "Retry the request.",
		})
	default:
		logger.ErrorHttp5xx()
		logger.Error("request failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, Response{
			Errors:  []string{err.Error()},
			Message: "internal error",
		})
	}
}
