package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Fatal("expected default logger")
	}
}

func TestWithUserIDTagsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithLogger(context.Background(), logger)
	ctx = WithUserID(ctx, "user-7")

	if got := UserIDFromContext(ctx); got != "user-7" {
		t.Fatalf("expected user-7 got %q", got)
	}

	FromContext(ctx).Info("hello")
	if !strings.Contains(buf.String(), "user_id=user-7") {
		t.Fatalf("expected user id attribute in %q", buf.String())
	}
}

func TestWithUserIDIgnoresEmpty(t *testing.T) {
	ctx := WithUserID(context.Background(), "")
	if UserIDFromContext(ctx) != "" {
		t.Fatal("expected anonymous context")
	}
}

func TestStartSpanReusesTrace(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "outer")
	defer span.End()
	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		t.Fatal("expected trace id")
	}

	inner, child := StartSpan(ctx, "inner")
	defer child.End()
	if TraceIDFromContext(inner) != traceID {
		t.Fatal("expected child span to share the trace id")
	}
	if SpanIDFromContext(inner) == SpanIDFromContext(ctx) {
		t.Fatal("expected a new span id")
	}
}

func TestSpanEndLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithLogger(context.Background(), logger)
	_, span := StartSpan(ctx, "notify.deliver", slog.String("notification_type", "party_request"))
	span.Fail(errors.New("store down"))
	span.Fail(errors.New("ignored"))
	span.End()

	out := buf.String()
	for _, want := range []string{`"level":"WARN"`, `"span_name":"notify.deliver"`, `"notification_type":"party_request"`, `"error":"store down"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
	if strings.Contains(out, "ignored") {
		t.Fatalf("expected first failure to win, got %s", out)
	}
}

func TestSpanEndOnSuccessLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	_, span := StartSpan(WithLogger(context.Background(), logger), "lifecycle.sweep")
	span.End()

	if buf.Len() != 0 {
		t.Fatalf("expected debug completion to be filtered at info level, got %s", buf.String())
	}
}
