package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bitsmind/graphsql/internal/assist"
	"github.com/bitsmind/graphsql/internal/entity"
	"github.com/bitsmind/graphsql/internal/graph"
	"github.com/bitsmind/graphsql/internal/plan"
	"github.com/bitsmind/graphsql/internal/resolve"
)

// PlanResponse is the body of GET /graph/plan/{entity}.
type PlanResponse struct {
	Entity      string     `json:"entity"`
	Graph       string     `json:"graph"`
	Strategy    string     `json:"strategy"`
	Fingerprint string     `json:"fingerprint"`
	Plan        *plan.Plan `json:"plan"`
}

// SQLResponse is the body of GET /graph/sql/{entity}.
type SQLResponse struct {
	PlanResponse
	SQL   string   `json:"sql"`
	Args  []any    `json:"args"`
	Loads []string `json:"loads,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	resp, _, err := s.compile(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSQL(w http.ResponseWriter, r *http.Request) {
	resp, req, err := s.compile(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ent, err := s.entities.Entity(resp.Entity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	scope, err := assist.ForEntity(ent).Scope(req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	query, args, err := s.sql.CompileRoot(resp.Plan, scope)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if args == nil {
		args = []any{}
	}
	writeJSON(w, http.StatusOK, SQLResponse{
		PlanResponse: *resp,
		SQL:          query,
		Args:         args,
		Loads:        resp.Plan.LoadNames(),
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.resolver.Invalidate(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// compile resolves and compiles the request for the routed entity.
func (s *Server) compile(r *http.Request) (*PlanResponse, map[string]string, error) {
	name := chi.URLParam(r, "entity")
	req := requestFields(r)

	expr, strategy, err := s.resolver.ResolveStrategy(r.Context(), req)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.resolver.Compile(expr, name, s.compiler)
	if err != nil {
		return nil, nil, err
	}
	fp, err := p.Fingerprint()
	if err != nil {
		return nil, nil, err
	}
	return &PlanResponse{
		Entity:      name,
		Graph:       expr,
		Strategy:    string(strategy),
		Fingerprint: fp,
		Plan:        p,
	}, req, nil
}

// requestFields flattens the query string, keeping the first value of
// each parameter.
func requestFields(r *http.Request) map[string]string {
	q := r.URL.Query()
	req := make(map[string]string, len(q))
	for k, vs := range q {
		if len(vs) > 0 {
			req[k] = vs[0]
		}
	}
	return req
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var (
		syntaxErr  *graph.SyntaxError
		compileErr *plan.CompileError
		resolveErr *resolve.ResolveError
		fieldErr   *assist.FieldError
	)
	switch {
	case plan.IsCode(err, plan.ErrCodeUnknownEntity),
		resolve.IsCode(err, resolve.ErrCodeUnknownGraphKey),
		errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &syntaxErr),
		errors.As(err, &compileErr),
		errors.As(err, &resolveErr),
		errors.As(err, &fieldErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := ErrorResponse{Error: err.Error()}

	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		body.Code = coded.ErrorCode()
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
