// Package handler implements the HTTP surface of the classification
// service: single-name classification, pair classification, and cache
// management.
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hipc-validation/virus-strain-validator/internal/engine"
	"github.com/hipc-validation/virus-strain-validator/internal/events"
	"github.com/hipc-validation/virus-strain-validator/internal/server/cache"
	"github.com/hipc-validation/virus-strain-validator/pkg/errors"
	"github.com/hipc-validation/virus-strain-validator/pkg/logger"
	"github.com/hipc-validation/virus-strain-validator/pkg/middleware"
)

const maxNameLength = 4096

// Handler serves classification requests.
type Handler struct {
	engine    *engine.Engine
	cache     *cache.VerdictCache
	publisher *events.Publisher
	logger    *slog.Logger
}

// New creates a Handler. cache and publisher may be nil; the corresponding
// features are then disabled.
func New(e *engine.Engine, verdictCache *cache.VerdictCache, publisher *events.Publisher) *Handler {
	return &Handler{
		engine:    e,
		cache:     verdictCache,
		publisher: publisher,
		logger:    logger.WithComponent("classify-handler"),
	}
}

// ClassifyRequest is the body of POST /v1/classify.
type ClassifyRequest struct {
	Name string `json:"name"`
}

// ClassifyResponse carries the verdict for one name.
type ClassifyResponse struct {
	Name    string         `json:"name"`
	Verdict engine.Verdict `json:"verdict"`
}

// PairRequest is the body of POST /v1/classify/pair.
type PairRequest struct {
	Reported  string `json:"reported"`
	Preferred string `json:"preferred"`
}

// PairResponse carries the verdict pair and whether it came from cache.
type PairResponse struct {
	Reported  string             `json:"reported"`
	Preferred string             `json:"preferred"`
	Result    engine.PairVerdict `json:"result"`
	CacheHit  bool               `json:"cache_hit"`
}

// Classify handles POST /v1/classify.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "request body must be JSON with a name field")
		return
	}
	if len(req.Name) > maxNameLength {
		h.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("name must be at most %d characters", maxNameLength))
		return
	}

	verdict, err := h.engine.Classify(req.Name)
	if err != nil {
		log.Error("classification failed", "name", req.Name, "error", err)
		h.writeError(w, errors.HTTPStatusCode(err), "classification failed")
		return
	}

	log.Info("name classified", "name", req.Name, "outcome", verdict.Outcome)
	h.writeJSON(w, http.StatusOK, ClassifyResponse{Name: req.Name, Verdict: verdict})
}

// ClassifyPair handles POST /v1/classify/pair.
func (h *Handler) ClassifyPair(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req PairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "request body must be JSON with reported and preferred fields")
		return
	}
	if len(req.Reported) > maxNameLength || len(req.Preferred) > maxNameLength {
		h.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("names must be at most %d characters", maxNameLength))
		return
	}

	var pair *engine.PairVerdict
	var cacheHit bool
	var err error
	if h.cache != nil {
		pair, cacheHit, err = h.cache.GetOrCompute(ctx, req.Reported, req.Preferred, func() (*engine.PairVerdict, error) {
			computed, err := h.engine.ClassifyPair(req.Reported, req.Preferred)
			if err != nil {
				return nil, err
			}
			return &computed, nil
		})
	} else {
		var computed engine.PairVerdict
		computed, err = h.engine.ClassifyPair(req.Reported, req.Preferred)
		pair = &computed
	}
	if err != nil {
		log.Error("pair classification failed",
			"reported", req.Reported,
			"preferred", req.Preferred,
			"error", err,
		)
		h.writeError(w, errors.HTTPStatusCode(err), "classification failed")
		return
	}

	log.Info("pair classified",
		"reported", req.Reported,
		"preferred", req.Preferred,
		"match", pair.CommentsMatch,
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	if h.publisher != nil {
		h.publisher.Track(events.VerdictEvent{
			ReportedName:     req.Reported,
			PreferredName:    req.Preferred,
			ReportedOutcome:  pair.Reported.Outcome,
			PreferredOutcome: pair.Preferred.Outcome,
			CommentsMatch:    pair.CommentsMatch,
			Timestamp:        time.Now().UTC(),
			RequestID:        middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, PairResponse{
		Reported:  req.Reported,
		Preferred: req.Preferred,
		Result:    *pair,
		CacheHit:  cacheHit,
	})
}

// CacheStats handles GET /v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":       hits,
		"misses":     misses,
		"total":      total,
		"hit_rate":   fmt.Sprintf("%.1f%%", hitRate),
		"pair_cache": h.engine.CachedPairs(),
	})
}

// CacheInvalidate handles POST /v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// Routes registers the handler's endpoints on a mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/classify", h.Classify)
	mux.HandleFunc("POST /v1/classify/pair", h.ClassifyPair)
	mux.HandleFunc("GET /v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
