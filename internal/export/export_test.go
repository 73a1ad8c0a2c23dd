package export

import (
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/earshot-dev/earshot/internal/report"
)

func recordedSpans(t *testing.T, batch Batch) (int, []sdktrace.ReadOnlySpan) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	count := buildSpans(tp.Tracer("test"), batch)
	return count, recorder.Ended()
}

func findAttr(spans []sdktrace.ReadOnlySpan, name string, key attribute.Key) (attribute.Value, bool) {
	for _, span := range spans {
		if span.Name() != name {
			continue
		}
		for _, kv := range span.Attributes() {
			if kv.Key == key {
				return kv.Value, true
			}
		}
	}
	return attribute.Value{}, false
}

func TestBuildSpansReconstructsProcessTree(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	code := 0
	batch := Batch{
		RunID: "run_abc123def456",
		Events: []report.Event{
			{Timestamp: t0, Kind: report.KindExec, PID: 100, PPID: 1, Command: "/usr/bin/make", Args: []string{"make", "all"}},
			{Timestamp: t0.Add(time.Second), Kind: report.KindExec, PID: 101, PPID: 100, Command: "/usr/bin/cc", Args: []string{"cc", "-c", "main.c"}, WorkingDir: "/src"},
			{Timestamp: t0.Add(2 * time.Second), Kind: report.KindExit, PID: 101, ExitCode: &code},
			{Timestamp: t0.Add(3 * time.Second), Kind: report.KindExit, PID: 100, ExitCode: &code},
		},
	}

	count, spans := recordedSpans(t, batch)
	if count != 2 {
		t.Fatalf("buildSpans count = %d, want 2", count)
	}
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}

	// Spans end child-first.
	cc, mk := spans[0], spans[1]
	if cc.Name() != "cc" || mk.Name() != "make" {
		t.Fatalf("span names = %q, %q, want cc, make", cc.Name(), mk.Name())
	}
	if mk.Parent().IsValid() {
		t.Error("make should be a root span")
	}
	if cc.Parent().SpanID() != mk.SpanContext().SpanID() {
		t.Error("cc span not parented on make")
	}
	if cc.SpanContext().TraceID() != mk.SpanContext().TraceID() {
		t.Error("child span left the parent's trace")
	}
	if !mk.StartTime().Equal(t0) {
		t.Errorf("make start = %v, want %v", mk.StartTime(), t0)
	}
	if !cc.EndTime().Equal(t0.Add(2 * time.Second)) {
		t.Errorf("cc end = %v, want %v", cc.EndTime(), t0.Add(2*time.Second))
	}

	if v, ok := findAttr(spans, "cc", "process.pid"); !ok || v.AsInt64() != 101 {
		t.Errorf("cc process.pid = %v, want 101", v)
	}
	if v, ok := findAttr(spans, "cc", "process.working_dir"); !ok || v.AsString() != "/src" {
		t.Errorf("cc process.working_dir = %v, want /src", v)
	}
	if _, ok := findAttr(spans, "make", "process.working_dir"); ok {
		t.Error("make should have no working_dir attribute")
	}
}

func TestBuildSpansNonzeroExitSetsError(t *testing.T) {
	t0 := time.Now()
	code := 2
	batch := Batch{Events: []report.Event{
		{Timestamp: t0, Kind: report.KindExec, PID: 7, Command: "cc", Args: []string{"cc"}},
		{Timestamp: t0.Add(time.Second), Kind: report.KindExit, PID: 7, ExitCode: &code},
	}}

	_, spans := recordedSpans(t, batch)
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if v, ok := findAttr(spans, "cc", "process.exit_code"); !ok || v.AsInt64() != 2 {
		t.Errorf("process.exit_code = %v, want 2", v)
	}
	status := spans[0].Status()
	if status.Code != codes.Error {
		t.Errorf("status = %v, want Error", status.Code)
	}
	if status.Description != "exit code 2" {
		t.Errorf("status description = %q", status.Description)
	}
}

func TestBuildSpansCleanExitLeavesStatusUnset(t *testing.T) {
	t0 := time.Now()
	code := 0
	batch := Batch{Events: []report.Event{
		{Timestamp: t0, Kind: report.KindExec, PID: 7, Command: "cc"},
		{Timestamp: t0.Add(time.Second), Kind: report.KindExit, PID: 7, ExitCode: &code},
	}}

	_, spans := recordedSpans(t, batch)
	if spans[0].Status().Code != codes.Unset {
		t.Errorf("status = %v, want Unset", spans[0].Status().Code)
	}
}

func TestBuildSpansIgnoresOrphanExit(t *testing.T) {
	code := 1
	batch := Batch{Events: []report.Event{
		{Timestamp: time.Now(), Kind: report.KindExit, PID: 42, ExitCode: &code},
	}}

	count, spans := recordedSpans(t, batch)
	if count != 0 || len(spans) != 0 {
		t.Fatalf("count = %d, spans = %d, want 0, 0", count, len(spans))
	}
}

func TestBuildSpansReExecReplacesSpan(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	code := 0
	batch := Batch{Events: []report.Event{
		{Timestamp: t0, Kind: report.KindExec, PID: 50, PPID: 1, Command: "/bin/sh", Args: []string{"sh", "-c", "cc main.c"}},
		{Timestamp: t0.Add(time.Second), Kind: report.KindExec, PID: 50, PPID: 1, Command: "/usr/bin/cc", Args: []string{"cc", "main.c"}},
		{Timestamp: t0.Add(2 * time.Second), Kind: report.KindExit, PID: 50, ExitCode: &code},
	}}

	count, spans := recordedSpans(t, batch)
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	sh, cc := spans[0], spans[1]
	if sh.Name() != "sh" || cc.Name() != "cc" {
		t.Fatalf("span names = %q, %q, want sh, cc", sh.Name(), cc.Name())
	}
	if !sh.EndTime().Equal(t0.Add(time.Second)) {
		t.Errorf("sh span should end when the image is replaced, got %v", sh.EndTime())
	}
	if !cc.EndTime().Equal(t0.Add(2 * time.Second)) {
		t.Errorf("cc end = %v", cc.EndTime())
	}
}

func TestBuildSpansClosesDanglingAtStop(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	stop := t0.Add(time.Minute)
	batch := Batch{
		StoppedAt: stop,
		Events: []report.Event{
			{Timestamp: t0, Kind: report.KindExec, PID: 9, Command: "watchd"},
		},
	}

	_, spans := recordedSpans(t, batch)
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if !spans[0].EndTime().Equal(stop) {
		t.Errorf("dangling span end = %v, want %v", spans[0].EndTime(), stop)
	}
}

func TestSpanName(t *testing.T) {
	if got := spanName(report.Event{Command: "/usr/bin/cc"}); got != "cc" {
		t.Errorf("spanName = %q, want cc", got)
	}
	if got := spanName(report.Event{}); got != "process" {
		t.Errorf("spanName = %q, want process", got)
	}
}
