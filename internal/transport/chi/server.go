package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fallsearch/internal/compiler"
	"github.com/kailas-cloud/fallsearch/internal/domain"
	"github.com/kailas-cloud/fallsearch/internal/domain/record"
	"github.com/kailas-cloud/fallsearch/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/fallsearch/internal/logger"
	healthuc "github.com/kailas-cloud/fallsearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/fallsearch/internal/usecase/search"
	"github.com/kailas-cloud/fallsearch/internal/version"
)

const (
	maxBodyBytes   = 1 << 20
	searchIDHeader = "X-Search-ID"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the search API over chi.
type Server struct {
	search        *searchuc.Executor
	health        *healthuc.Service
	compiler      compiler.Compiler
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Executor,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		search:   search,
		health:   health,
		compiler: compiler.NewFlattening(),
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidSchema, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrUnknownRecordType, http.StatusNotFound, ErrorCodeUnknownRecordType),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited),
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusTooManyRequests, ErrorCodeQuotaExceeded),
		sentinelHandler(domain.ErrRewriteFailed, http.StatusBadGateway, ErrorCodeRewriteFailed),
		sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, ErrorCodeNotImplemented),
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Post("/search", s.Search)
	r.Post("/more-like-this", s.MoreLikeThis)
	r.Post("/update", s.Update)
	r.Post("/remove", s.Remove)
	r.Post("/clear", s.Clear)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	q, err := s.compileQuery(req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	searchID := uuid.NewString()
	w.Header().Set(searchIDHeader, searchID)
	ctx := logpkg.WithFields(r.Context(), s.logger, zap.String("search_id", searchID))

	opts := []searchuc.CallOption{searchuc.WithSearchID(searchID)}
	if len(req.Models) > 0 {
		opts = append(opts, searchuc.WithModels(req.Models...))
	}
	if req.ResultClass != "" {
		opts = append(opts, searchuc.WithResultClass(req.ResultClass))
	}

	out, err := s.search.Search(ctx, q, opts...)
	if err != nil {
		s.handleDomainError(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeToResponse(out))
}

// MoreLikeThis handles POST /more-like-this. It always reports zero hits.
func (s *Server) MoreLikeThis(w http.ResponseWriter, r *http.Request) {
	var req RecordPayload
	if !decodeBody(w, r, &req) {
		return
	}
	out := s.search.MoreLikeThis(r.Context(), record.New(req.Type, req.PK, req.Fields))
	writeJSON(w, http.StatusOK, outcomeToResponse(out))
}

// Update handles POST /update.
func (s *Server) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	recs := make([]record.Record, 0, len(req.Records))
	for _, p := range req.Records {
		recs = append(recs, record.New(req.Type, p.PK, p.Fields))
	}
	writeWarning(w, s.search.Update(r.Context(), req.Type, recs))
}

// Remove handles POST /remove.
func (s *Server) Remove(w http.ResponseWriter, r *http.Request) {
	var req RecordPayload
	if !decodeBody(w, r, &req) {
		return
	}
	writeWarning(w, s.search.Remove(r.Context(), req.Type, req.PK))
}

// Clear handles POST /clear.
func (s *Server) Clear(w http.ResponseWriter, r *http.Request) {
	var req ClearRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	writeWarning(w, s.search.Clear(r.Context(), req.Models...))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Version: version.Version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// compileQuery returns the flat query string for req. A literal query wins
// over the tree path but both at once is rejected.
func (s *Server) compileQuery(req SearchRequest) (string, error) {
	if req.Query != nil {
		if len(req.Tree) > 0 {
			return "", fmt.Errorf("%w: query and tree are mutually exclusive", domain.ErrInvalidQuery)
		}
		return *req.Query, nil
	}
	root, err := decodeTree(req.Tree)
	if err != nil {
		return "", err
	}
	return s.compiler.Compile(root), nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeWarning(w http.ResponseWriter, warn searchuc.Warning) {
	writeJSON(w, http.StatusOK, WarningResponse{Op: warn.Op, Warning: warn.Message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
// Query validation errors are returned in full since they only echo the request.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidQuery) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrUnknownRecordType,
		domain.ErrNotFound,
		domain.ErrInvalidSchema,
		domain.ErrRateLimited,
		domain.ErrQuotaExceeded,
		domain.ErrRewriteFailed,
		domain.ErrNotImplemented,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.requestLogger(r)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

// requestLogger prefers the per-request logger placed by WideEvent.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return logpkg.FromContext(logpkg.WithFields(r.Context(), s.logger))
}

func outcomeToResponse(out result.Outcome) SearchResponse {
	items := make([]SearchResultItem, len(out.Results))
	for i := range out.Results {
		r := &out.Results[i]
		items[i] = SearchResultItem{
			Type:   r.TypeName(),
			PK:     r.PK(),
			Score:  r.Score(),
			Fields: r.Fields(),
		}
	}
	return SearchResponse{
		Hits:           out.Hits,
		Results:        items,
		ResultClass:    out.ResultClass,
		RewrittenQuery: out.Rewritten,
	}
}
