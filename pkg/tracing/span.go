// Package tracing provides lightweight span timing for batch runs. Spans
// form parent-child trees keyed by a run ID and are logged as structured
// records via slog when the root span finishes.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span times one stage of a run, such as loading the taxonomy or
// validating a single study.
type Span struct {
	Name     string
	RunID    string
	Start    time.Time
	Duration time.Duration
	Children []*Span
	Attrs    map[string]any
	mu       sync.Mutex
}

// StartSpan creates a root span for runID and stores it in the returned
// context.
func StartSpan(ctx context.Context, name, runID string) (context.Context, *Span) {
	s := &Span{
		Name:  name,
		RunID: runID,
		Start: time.Now(),
		Attrs: make(map[string]any),
	}
	return context.WithValue(ctx, contextKey{}, s), s
}

// StartChild creates a span nested under the one in ctx. With no span in
// ctx the child behaves as a root.
func StartChild(ctx context.Context, name string) (context.Context, *Span) {
	child := &Span{
		Name:  name,
		Start: time.Now(),
		Attrs: make(map[string]any),
	}
	if parent := FromContext(ctx); parent != nil {
		child.RunID = parent.RunID
		parent.mu.Lock()
		parent.Children = append(parent.Children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, child), child
}

// End records the span's duration.
func (s *Span) End() {
	s.Duration = time.Since(s.Start)
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// FromContext extracts the current span from ctx, or nil.
func FromContext(ctx context.Context) *Span {
	if s, ok := ctx.Value(contextKey{}).(*Span); ok {
		return s
	}
	return nil
}

// Log writes the span tree to slog, one record per span.
func (s *Span) Log() {
	s.log(0)
}

func (s *Span) log(depth int) {
	attrs := []any{
		"run_id", s.RunID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	s.mu.Lock()
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	children := s.Children
	s.mu.Unlock()
	slog.Info("span", attrs...)

	for _, child := range children {
		child.log(depth + 1)
	}
}
