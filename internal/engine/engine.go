// Package engine combines name resolution and the virus ancestor test into
// a validation verdict per input name, and memoizes verdicts for repeated
// (reported, preferred) name pairs within a run.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hipc-validation/virus-strain-validator/internal/classifier"
	"github.com/hipc-validation/virus-strain-validator/internal/resolver"
	"github.com/hipc-validation/virus-strain-validator/internal/taxonomy"
	"github.com/hipc-validation/virus-strain-validator/pkg/logger"
	"github.com/hipc-validation/virus-strain-validator/pkg/metrics"
)

// ResolveFunc is the name-resolution hook. Tests substitute it to observe
// call counts.
type ResolveFunc func(name string, g *taxonomy.Graph) resolver.MatchResult

// Engine classifies strain names against a taxonomy graph. The graph is
// read-only after construction; the only mutable state is the pair cache,
// which is guarded for concurrent use. A cached pair is stored complete or
// not at all.
type Engine struct {
	graph   *taxonomy.Graph
	resolve ResolveFunc
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu    sync.RWMutex
	pairs map[pairKey]PairVerdict
	group singleflight.Group
}

type pairKey struct {
	reported  string
	preferred string
}

// New creates an Engine over the given graph.
func New(g *taxonomy.Graph) *Engine {
	return NewWithResolver(g, resolver.Resolve)
}

// NewWithResolver creates an Engine with a custom resolve function.
func NewWithResolver(g *taxonomy.Graph, resolve ResolveFunc) *Engine {
	return &Engine{
		graph:   g,
		resolve: resolve,
		pairs:   make(map[pairKey]PairVerdict),
		logger:  logger.WithComponent("classification-engine"),
	}
}

// WithMetrics attaches Prometheus collectors to the engine.
func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	return e
}

// Classify resolves one name and maps the result to a verdict. It returns
// an error only for taxonomy integrity failures (dangling parent, cycle)
// surfaced by the ancestor walk.
func (e *Engine) Classify(name string) (Verdict, error) {
	start := time.Now()
	match := e.resolve(name, e.graph)
	if e.metrics != nil {
		e.metrics.ResolutionLatency.Observe(time.Since(start).Seconds())
		e.metrics.ResolutionsTotal.WithLabelValues(string(match.Tier)).Inc()
	}

	verdict, err := e.verdictFor(match)
	if err != nil {
		return Verdict{}, err
	}
	if e.metrics != nil {
		e.metrics.ClassificationsTotal.WithLabelValues(string(verdict.Outcome)).Inc()
	}
	return verdict, nil
}

// ClassifyPair classifies a (reported, preferred) name pair, computing each
// distinct pair at most once per engine lifetime. Concurrent calls for the
// same uncached pair are collapsed into a single computation.
func (e *Engine) ClassifyPair(reported, preferred string) (PairVerdict, error) {
	key := pairKey{reported: reported, preferred: preferred}

	e.mu.RLock()
	cached, ok := e.pairs[key]
	e.mu.RUnlock()
	if ok {
		if e.metrics != nil {
			e.metrics.PairCacheHitsTotal.Inc()
		}
		return cached, nil
	}
	if e.metrics != nil {
		e.metrics.PairCacheMissesTotal.Inc()
	}

	flightKey := reported + "\x00" + preferred
	v, err, _ := e.group.Do(flightKey, func() (any, error) {
		e.mu.RLock()
		cached, ok := e.pairs[key]
		e.mu.RUnlock()
		if ok {
			return cached, nil
		}

		reportedVerdict, err := e.Classify(reported)
		if err != nil {
			return PairVerdict{}, err
		}
		preferredVerdict, err := e.Classify(preferred)
		if err != nil {
			return PairVerdict{}, err
		}
		pair := PairVerdict{
			Reported:      reportedVerdict,
			Preferred:     preferredVerdict,
			CommentsMatch: reportedVerdict.Comment == preferredVerdict.Comment,
		}

		e.mu.Lock()
		e.pairs[key] = pair
		e.mu.Unlock()
		return pair, nil
	})
	if err != nil {
		return PairVerdict{}, err
	}
	return v.(PairVerdict), nil
}

// CachedPairs returns the number of memoized pairs.
func (e *Engine) CachedPairs() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.pairs)
}

// verdictFor maps a match result and the virus test to a verdict.
func (e *Engine) verdictFor(match resolver.MatchResult) (Verdict, error) {
	if !match.Matched() {
		return Verdict{Outcome: OutcomeUnresolved, Comment: CommentUnresolved}, nil
	}

	virus, err := classifier.IsVirus(match.Taxid, e.graph)
	if err != nil {
		e.logger.Error("ancestor walk failed",
			"input", match.Input,
			"taxid", match.Taxid,
			"error", err,
		)
		return Verdict{}, fmt.Errorf("classifying %q: %w", match.Input, err)
	}
	if !virus {
		return Verdict{Outcome: OutcomeNotAVirus, Comment: CommentNotAVirus}, nil
	}

	switch match.Tier {
	case resolver.TierExact:
		return Verdict{Outcome: OutcomeConfirmed}, nil
	case resolver.TierNormalized:
		return Verdict{
			Outcome:       OutcomeAutoCorrected,
			Comment:       autoCorrectedComment(match.Input, match.ScientificName),
			CorrectedName: match.ScientificName,
		}, nil
	default:
		// Synonym and substring matches are suggestions, never applied
		// automatically.
		return Verdict{
			Outcome: OutcomeSuggested,
			Comment: suggestedComment(match.ScientificName),
		}, nil
	}
}
