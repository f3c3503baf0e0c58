// Package chi exposes the retrieval API over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chirouter "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/luma-stream/mediadex/internal/domain"
	"github.com/luma-stream/mediadex/internal/health"
	"github.com/luma-stream/mediadex/internal/index"
	"github.com/luma-stream/mediadex/internal/logger"
	"github.com/luma-stream/mediadex/internal/metrics"
	"github.com/luma-stream/mediadex/internal/retriever"
	"github.com/luma-stream/mediadex/internal/version"
)

// errorCode is the machine-readable error discriminator in error responses.
type errorCode string

const (
	codeBadRequest        errorCode = "bad_request"
	codeValidationFailed  errorCode = "validation_failed"
	codeDimensionMismatch errorCode = "vector_dim_mismatch"
	codeEmbeddingProvider errorCode = "embedding_provider_error"
	codeIndexUnavailable  errorCode = "index_unavailable"
	codeInternalError     errorCode = "internal_error"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler maps one class of domain error onto a response. It reports
// whether it claimed the error.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Defaults carries per-request fallbacks taken from configuration.
type Defaults struct {
	TopK       int
	Weights    retriever.Weights
	RecentDays int
}

// Server handles the HTTP API.
type Server struct {
	search        *retriever.Retriever
	vectors       index.Index
	health        *health.Service
	defaults      Defaults
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer assembles the HTTP API around the given services.
func NewServer(
	search *retriever.Retriever,
	vectors index.Index,
	healthSvc *health.Service,
	defaults Defaults,
	logger *zap.Logger,
) *Server {
	if defaults.TopK <= 0 {
		defaults.TopK = 10
	}
	if defaults.RecentDays <= 0 {
		defaults.RecentDays = 30
	}
	s := &Server{
		search:   search,
		vectors:  vectors,
		health:   healthSvc,
		defaults: defaults,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		matchSentinel(domain.ErrEmptyQuery, http.StatusBadRequest, codeValidationFailed),
		matchSentinel(domain.ErrInvalidTopK, http.StatusBadRequest, codeValidationFailed),
		matchSentinel(domain.ErrEmptyText, http.StatusBadRequest, codeValidationFailed),
		matchSentinel(domain.ErrEmptyID, http.StatusBadRequest, codeValidationFailed),
		matchSentinel(domain.ErrDimensionMismatch, http.StatusBadRequest, codeDimensionMismatch),
		matchSentinel(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
		matchSentinel(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable),
	}
	return s
}

// Routes mounts all API endpoints on a new router.
func (s *Server) Routes() http.Handler {
	r := chirouter.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chirouter.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/search/video", s.handleSearchVideo)
		r.Post("/search/recent", s.handleSearchRecent)
		r.Put("/chunks", s.handleUpsertChunks)
		r.Delete("/chunks", s.handleDeleteChunks)
		r.Get("/stats", s.handleStats)
	})

	return r
}

// searchRequest is the body of POST /v1/search.
type searchRequest struct {
	Query   string          `json:"query"`
	TopK    int             `json:"topK"`
	Filters *filtersPayload `json:"filters"`
	Weights *weightsPayload `json:"weights"`
}

type filtersPayload struct {
	VideoID         string            `json:"videoId"`
	PlaylistID      string            `json:"playlistId"`
	PublishedAfter  *time.Time        `json:"publishedAfter"`
	PublishedBefore *time.Time        `json:"publishedBefore"`
	StartTime       *rangePayload     `json:"startTime"`
	Extra           map[string]string `json:"extra"`
}

type rangePayload struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

type weightsPayload struct {
	Vector   float64 `json:"vector"`
	Text     float64 `json:"text"`
	MinScore float64 `json:"minScore"`
}

type hybridResponse struct {
	VectorResults   []domain.SearchResult `json:"vectorResults"`
	TextResults     []domain.SearchResult `json:"textResults"`
	CombinedResults []domain.SearchResult `json:"combinedResults"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = s.defaults.TopK
	}
	weights := s.defaults.Weights
	if req.Weights != nil {
		weights = retriever.Weights{
			Vector:   req.Weights.Vector,
			Text:     req.Weights.Text,
			MinScore: req.Weights.MinScore,
		}
	}

	res, err := s.search.Search(r.Context(), req.Query, topK, filtersFromPayload(req.Filters), weights)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, hybridResponse{
		VectorResults:   emptyIfNil(res.VectorResults),
		TextResults:     emptyIfNil(res.TextResults),
		CombinedResults: emptyIfNil(res.CombinedResults),
	})
}

// videoSearchRequest is the body of POST /v1/search/video.
type videoSearchRequest struct {
	Query   string `json:"query"`
	VideoID string `json:"videoId"`
	TopK    int    `json:"topK"`
}

type resultsResponse struct {
	Results []domain.SearchResult `json:"results"`
}

func (s *Server) handleSearchVideo(w http.ResponseWriter, r *http.Request) {
	var req videoSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.VideoID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "videoId is required")
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = s.defaults.TopK
	}

	results, err := s.search.SearchVideo(r.Context(), req.Query, req.VideoID, topK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resultsResponse{Results: emptyIfNil(results)})
}

// recentSearchRequest is the body of POST /v1/search/recent.
type recentSearchRequest struct {
	Query string `json:"query"`
	Days  int    `json:"days"`
	TopK  int    `json:"topK"`
}

func (s *Server) handleSearchRecent(w http.ResponseWriter, r *http.Request) {
	var req recentSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	days := req.Days
	if days == 0 {
		days = s.defaults.RecentDays
	}
	topK := req.TopK
	if topK == 0 {
		topK = s.defaults.TopK
	}

	results, err := s.search.SearchRecent(r.Context(), req.Query, days, topK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resultsResponse{Results: emptyIfNil(results)})
}

// upsertRequest is the body of PUT /v1/chunks.
type upsertRequest struct {
	Chunks []chunkPayload `json:"chunks"`
}

type chunkPayload struct {
	ID       string               `json:"id"`
	Values   []float32            `json:"values"`
	Content  string               `json:"content"`
	Metadata domain.ChunkMetadata `json:"metadata"`
}

type upsertResponse struct {
	Upserted int `json:"upserted"`
}

func (s *Server) handleUpsertChunks(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Chunks) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "chunks must not be empty")
		return
	}

	records := make([]domain.VectorRecord, len(req.Chunks))
	for i, c := range req.Chunks {
		records[i] = domain.VectorRecord{
			ID:       c.ID,
			Values:   c.Values,
			Content:  c.Content,
			Metadata: c.Metadata,
		}
	}

	if err := s.vectors.Upsert(r.Context(), records); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, upsertResponse{Upserted: len(records)})
}

// deleteRequest is the body of DELETE /v1/chunks.
type deleteRequest struct {
	IDs []string `json:"ids"`
}

type deleteResponse struct {
	Deleted int `json:"deleted"`
}

func (s *Server) handleDeleteChunks(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "ids must not be empty")
		return
	}

	if err := s.vectors.Delete(r.Context(), req.IDs); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{Deleted: len(req.IDs)})
}

type statsResponse struct {
	Index   index.Stats `json:"index"`
	Version string      `json:"version"`
	Commit  string      `json:"commit"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.vectors.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Index:   stats,
		Version: version.Version,
		Commit:  version.Commit,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func filtersFromPayload(f *filtersPayload) domain.Filters {
	if f == nil {
		return domain.Filters{}
	}
	out := domain.Filters{
		VideoID:         f.VideoID,
		PlaylistID:      f.PlaylistID,
		PublishedAfter:  f.PublishedAfter,
		PublishedBefore: f.PublishedBefore,
		Extra:           f.Extra,
	}
	if f.StartTime != nil {
		out.StartTime = &domain.NumericRange{Min: f.StartTime.Min, Max: f.StartTime.Max}
	}
	return out
}

func emptyIfNil(results []domain.SearchResult) []domain.SearchResult {
	if results == nil {
		return []domain.SearchResult{}
	}
	return results
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// clientMessage picks the message shown to clients, falling back to a
// generic one so internals never leak.
func clientMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyQuery,
		domain.ErrInvalidTopK,
		domain.ErrEmptyText,
		domain.ErrEmptyID,
		domain.ErrDimensionMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrIndexUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// matchSentinel builds an errorHandler for one sentinel error.
func matchSentinel(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := clientMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// requestLogger attaches a request-scoped logger carrying the request id.
func requestLogger(base *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base
			if id := chiMiddleware.GetReqID(r.Context()); id != "" {
				l = base.With(zap.String("request_id", id))
			}
			next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), l)))
		})
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
