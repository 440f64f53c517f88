// Package tracing records in-process span trees for multi-stage operations
// such as an index build. Spans travel in the context and the finished tree
// is written to slog, one record per span.
package tracing

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type contextKey string

const spanKey contextKey = "trace_span"

// Span is one timed stage. Children are appended by StartChildSpan.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Children  []*Span
	Attrs     map[string]any
	Err       error
	mu        sync.Mutex
}

func newSpan(name, traceID string) *Span {
	return &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
}

// StartSpan opens a root span. traceID is usually the build or request id.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	span := newSpan(name, traceID)
	return context.WithValue(ctx, spanKey, span), span
}

// StartChildSpan opens a span under the one in ctx. Without a parent the
// child is a detached root with an empty trace id.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	child := newSpan(name, "")
	if parent != nil {
		child.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.Children = append(parent.Children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey, child), child
}

// End stamps the end time. Later calls are no-ops.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.EndTime.IsZero() {
		return
	}
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// RecordError marks the span failed. A nil err is ignored.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.Err = err
	s.mu.Unlock()
}

func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanKey).(*Span); ok {
		return span
	}
	return nil
}

// Log writes the tree depth-first. Failed spans log at warn level.
func (s *Span) Log() {
	s.logRecursive(slog.Default().With("component", "tracing"), 0)
}

func (s *Span) logRecursive(logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	keys := make([]string, 0, len(s.Attrs))
	for k := range s.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, k, s.Attrs[k])
	}
	level := slog.LevelInfo
	if s.Err != nil {
		attrs = append(attrs, "error", s.Err.Error())
		level = slog.LevelWarn
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	logger.Log(context.Background(), level, "span", attrs...)
	for _, child := range children {
		child.logRecursive(logger, depth+1)
	}
}
