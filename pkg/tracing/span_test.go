package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "index.build", "b-1")
	_, extract := StartChildSpan(ctx, "extract")
	extract.SetAttr("documents", 3)
	extract.End()
	_, persist := StartChildSpan(ctx, "persist")
	persist.RecordError(errors.New("disk full"))
	persist.End()
	root.End()

	if len(root.Children) != 2 {
		t.Fatalf("children = %d; want 2", len(root.Children))
	}
	for _, child := range root.Children {
		if child.TraceID != "b-1" {
			t.Fatalf("child %s trace id = %q; want b-1", child.Name, child.TraceID)
		}
	}
	if SpanFromContext(ctx) != root {
		t.Fatal("context should carry the root span")
	}
}

func TestEndIsIdempotent(t *testing.T) {
	_, span := StartSpan(context.Background(), "x", "t")
	span.End()
	first := span.EndTime
	time.Sleep(time.Millisecond)
	span.End()
	if !span.EndTime.Equal(first) {
		t.Fatal("second End must not move the end time")
	}
}

func TestDetachedChild(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	if span.TraceID != "" {
		t.Fatalf("trace id = %q; want empty", span.TraceID)
	}
}

func TestLogWritesEverySpan(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	ctx, root := StartSpan(context.Background(), "root", "t-9")
	_, child := StartChildSpan(ctx, "child")
	child.RecordError(errors.New("failed"))
	child.End()
	root.End()
	root.Log()

	out := buf.String()
	if strings.Count(out, "msg=span") != 2 {
		t.Fatalf("expected two span records:\n%s", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "error=failed") {
		t.Fatalf("failed child should log at warn with its error:\n%s", out)
	}
}
