package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claimsight/assess-gateway/internal/application/assess"
	domain "github.com/claimsight/assess-gateway/internal/domain/assessment"
	"github.com/claimsight/assess-gateway/internal/infra/knowledge"
	"github.com/claimsight/assess-gateway/internal/middleware"
)

// Options carries the wired services; nil fields disable their endpoints.
type Options struct {
	Pipeline     *assess.Pipeline
	Conversation *assess.Conversation
	Recorder     domain.Recorder
	Ingestor     *knowledge.Ingestor
	Checkers     map[string]middleware.HealthChecker
	MaxBodyBytes int64
	MaxQueryLen  int
	ConfigEcho   map[string]any
}

type Router struct {
	opts Options
}

func NewRouter(opts Options) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 16 << 20
	}
	if opts.MaxQueryLen <= 0 {
		opts.MaxQueryLen = 500
	}
	r := &Router{opts: opts}
	mux := chi.NewRouter()

	mux.Get("/health", middleware.HealthHandler(opts.Checkers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/api", func(rt chi.Router) {
		rt.Post("/assess-damage", r.wrap(r.handleAssess))
		rt.Get("/knowledge-search", r.wrap(r.handleKnowledgeSearch))
		rt.Post("/conversation", r.wrap(r.handleConversation))
		rt.Get("/stats", r.wrap(r.handleStats))
		rt.Get("/assessments/latest", r.wrap(r.handleLatest))
		rt.Get("/assessments/{id}", r.wrap(r.handleGet))
		rt.Post("/knowledge-ingest", r.wrap(r.handleIngest))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// errorBody is the uniform failure envelope for all /api endpoints.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", Code: "not_found"})
				return
			}
			ae := domain.AsError(err)
			if ae.Status >= http.StatusInternalServerError {
				log.Printf("[HTTP] %s %s failed: %v", req.Method, req.URL.Path, err)
			}
			writeJSON(w, ae.Status, errorBody{
				Error:   ae.Message,
				Code:    string(ae.Kind),
				Details: ae.Details,
			})
		}
	}
}

func nowMS() int64 { return time.Now().UnixMilli() }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads a JSON body with the configured size ceiling.
func (r *Router) decodeBody(w http.ResponseWriter, req *http.Request, dst any) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.opts.MaxBodyBytes)
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return domain.TooLarge("request body exceeds size limit")
		}
		return domain.Invalid(domain.KindInvalidBody, "Invalid request body", err.Error())
	}
	return nil
}

// POST /api/assess-damage
// Body: {"image": "<base64 or data URI>"}
func (r *Router) handleAssess(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Image string `json:"image"`
	}
	if err := r.decodeBody(w, req, &body); err != nil {
		return err
	}
	if body.Image == "" {
		return domain.Invalid(domain.KindInvalidField, "Image is required", "field image must not be empty")
	}

	middleware.IncrementAssessments()
	result, err := r.opts.Pipeline.Assess(req.Context(), body.Image)
	if err != nil {
		middleware.IncrementAssessmentsFailed()
		return err
	}

	if result.Performance.Cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeJSON(w, http.StatusOK, result)
	return nil
}

// GET /api/knowledge-search?q=
func (r *Router) handleKnowledgeSearch(w http.ResponseWriter, req *http.Request) error {
	query := req.URL.Query().Get("q")
	if query == "" {
		return domain.Invalid(domain.KindInvalidField, "Query is required", "parameter q must not be empty")
	}
	if len(query) > r.opts.MaxQueryLen {
		return domain.Invalid(domain.KindInvalidField, "Query too long",
			"parameter q exceeds "+strconv.Itoa(r.opts.MaxQueryLen)+" characters")
	}

	middleware.IncrementSearches()
	start := nowMS()
	kr, cached, err := r.opts.Pipeline.SearchKnowledge(req.Context(), query)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"query":         query,
		"response":      kr.Response,
		"results":       kr.Sources,
		"total_results": len(kr.Sources),
		"performance": map[string]any{
			"total_time_ms": nowMS() - start,
			"cached":        cached,
		},
	})
	return nil
}

// POST /api/conversation
// Body: {"question": "...", "context": {...}}
func (r *Router) handleConversation(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Question string                      `json:"question"`
		Context  *domain.ConversationContext `json:"context"`
	}
	if err := r.decodeBody(w, req, &body); err != nil {
		return err
	}
	if body.Question == "" {
		return domain.Invalid(domain.KindInvalidField, "Question is required", "field question must not be empty")
	}

	middleware.IncrementConversations()
	result, err := r.opts.Conversation.Converse(req.Context(), body.Question, body.Context)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, result)
	return nil
}

// GET /api/stats
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) error {
	stats := r.opts.Pipeline.CacheStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"cache": map[string]any{
			"hits":     stats.Hits,
			"misses":   stats.Misses,
			"entries":  stats.Entries,
			"total":    stats.Total(),
			"hit_rate": stats.HitRate(),
		},
		"runtime": middleware.GetMetrics(),
		"config":  r.opts.ConfigEcho,
	})
	return nil
}

// GET /api/assessments/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	if r.opts.Recorder == nil {
		return domain.Unavailable("history store not configured")
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.opts.Recorder.Latest(req.Context(), limit)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domain.Record{}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /api/assessments/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	if r.opts.Recorder == nil {
		return domain.Unavailable("history store not configured")
	}
	id := chi.URLParam(req, "id")

	rec, err := r.opts.Recorder.Get(req.Context(), domain.RecordID(id))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, rec)
	return nil
}

// POST /api/knowledge-ingest
func (r *Router) handleIngest(w http.ResponseWriter, req *http.Request) error {
	if r.opts.Ingestor == nil {
		return domain.Unavailable("knowledge ingest not configured")
	}

	count, err := r.opts.Ingestor.Run(req.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"indexed": count,
	})
	return nil
}
