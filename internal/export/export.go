// Package export converts a run's recorded events into OpenTelemetry
// spans and ships them to an OTLP collector. Each process becomes one
// span, parented on the span of the process that spawned it, so the
// build shows up as a tree of tool invocations.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/earshot-dev/earshot/internal/report"
)

// Options configures the OTLP destination.
type Options struct {
	// Endpoint is the host:port of an OTLP/HTTP receiver. Empty uses
	// the exporter's default (localhost:4318).
	Endpoint string

	// Insecure sends over plain HTTP instead of TLS.
	Insecure bool

	// Service is the service.name resource attribute. Empty defaults
	// to "earshot".
	Service string

	// Timeout bounds each export request. Zero defaults to 10s.
	Timeout time.Duration
}

// A Batch is one run's worth of events.
type Batch struct {
	RunID  string
	Events []report.Event

	// StoppedAt closes spans for processes that never reported an
	// exit. Zero leaves their end time at export time.
	StoppedAt time.Time
}

// Export sends the batch to the configured collector and returns the
// number of spans shipped. It blocks until the spans are flushed.
func Export(ctx context.Context, batch Batch, opts Options) (int, error) {
	if opts.Service == "" {
		opts.Service = "earshot"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	expOpts := []otlptracehttp.Option{otlptracehttp.WithTimeout(opts.Timeout)}
	if opts.Endpoint != "" {
		expOpts = append(expOpts, otlptracehttp.WithEndpoint(opts.Endpoint))
	}
	if opts.Insecure {
		expOpts = append(expOpts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, expOpts...)
	if err != nil {
		return 0, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.Service),
			attribute.String("earshot.run_id", batch.RunID),
		),
	)
	if err != nil {
		return 0, fmt.Errorf("building resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	count := buildSpans(tp.Tracer("earshot"), batch)

	// Shutdown flushes the batcher; a failed flush means nothing
	// reached the collector.
	shutdownCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		return count, fmt.Errorf("flushing spans: %w", err)
	}
	return count, nil
}

// buildSpans replays the batch in order, opening a span on each exec
// and closing it on the matching exit. Exec events are parented on the
// open span of their PPID, which reconstructs the process tree as long
// as parents were recorded before their children, the order the
// collector stores them in.
func buildSpans(tracer trace.Tracer, batch Batch) int {
	open := make(map[int]trace.Span)
	count := 0
	for _, ev := range batch.Events {
		switch ev.Kind {
		case report.KindExec:
			parent := context.Background()
			if p, ok := open[ev.PPID]; ok {
				parent = trace.ContextWithSpanContext(parent, p.SpanContext())
			}
			// A second exec on the same PID is the process replacing
			// its image; the previous program's span ends here.
			if prev, ok := open[ev.PID]; ok {
				prev.End(trace.WithTimestamp(ev.Timestamp))
			}
			_, span := tracer.Start(parent, spanName(ev),
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithTimestamp(ev.Timestamp),
			)
			span.SetAttributes(
				attribute.Int("process.pid", ev.PID),
				attribute.Int("process.parent_pid", ev.PPID),
				attribute.String("process.command", ev.Command),
				attribute.StringSlice("process.args", ev.Args),
			)
			if ev.WorkingDir != "" {
				span.SetAttributes(attribute.String("process.working_dir", ev.WorkingDir))
			}
			open[ev.PID] = span
			count++
		case report.KindExit:
			span, ok := open[ev.PID]
			if !ok {
				// Exit for a process whose exec predates the run.
				continue
			}
			if ev.ExitCode != nil {
				span.SetAttributes(attribute.Int("process.exit_code", *ev.ExitCode))
				if *ev.ExitCode != 0 {
					span.SetStatus(codes.Error, fmt.Sprintf("exit code %d", *ev.ExitCode))
				}
			}
			span.End(trace.WithTimestamp(ev.Timestamp))
			delete(open, ev.PID)
		}
	}
	for _, span := range open {
		if !batch.StoppedAt.IsZero() {
			span.End(trace.WithTimestamp(batch.StoppedAt))
		} else {
			span.End()
		}
	}
	return count
}

func spanName(ev report.Event) string {
	if ev.Command == "" {
		return "process"
	}
	return filepath.Base(ev.Command)
}
