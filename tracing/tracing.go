// Package tracing configures OpenTelemetry for the scraper and provides span helpers.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "country-leaders-scraper"

// Span exporters selectable through LEADERS_TRACING.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config holds tracing configuration
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Exporter       string // none, stdout or otlp
	OTLPEndpoint   string // host:port of an OTLP/HTTP collector
	SampleRate     float64
	Writer         io.Writer // stdout exporter target; stderr when nil (stdout carries MCP traffic)
}

// Enabled reports whether spans are exported at all.
func (c Config) Enabled() bool {
	return c.Exporter == ExporterStdout || c.Exporter == ExporterOTLP
}

// FromEnv builds the tracing config of a scraper build.
//
//	LEADERS_TRACING            none (default), stdout or otlp
//	LEADERS_TRACE_SAMPLE_RATE  fraction of runs to trace, default 1
//	LEADERS_ENVIRONMENT        resource attribute, default development
//	OTEL_EXPORTER_OTLP_ENDPOINT collector address; implies otlp when LEADERS_TRACING is unset
func FromEnv(version string) (Config, error) {
	cfg := Config{
		ServiceName:    TracerName,
		ServiceVersion: version,
		Environment:    getEnvOrDefault("LEADERS_ENVIRONMENT", "development"),
		Exporter:       ExporterNone,
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SampleRate:     1.0,
	}
	if cfg.OTLPEndpoint != "" {
		cfg.Exporter = ExporterOTLP
	}

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("LEADERS_TRACING"))); v != "" {
		switch v {
		case ExporterNone, "off", "false":
			cfg.Exporter = ExporterNone
		case ExporterStdout:
			cfg.Exporter = ExporterStdout
		case ExporterOTLP:
			if cfg.OTLPEndpoint == "" {
				return cfg, fmt.Errorf("LEADERS_TRACING=otlp needs OTEL_EXPORTER_OTLP_ENDPOINT")
			}
			cfg.Exporter = ExporterOTLP
		default:
			return cfg, fmt.Errorf("LEADERS_TRACING must be none, stdout or otlp, got %q", v)
		}
	}

	if v := os.Getenv("LEADERS_TRACE_SAMPLE_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate < 0 || rate > 1 {
			return cfg, fmt.Errorf("LEADERS_TRACE_SAMPLE_RATE must be between 0 and 1, got %q", v)
		}
		cfg.SampleRate = rate
	}
	return cfg, nil
}

// Setup installs the global tracer provider and returns its shutdown function.
// With the none exporter it installs nothing and spans stay no-ops.
func Setup(ctx context.Context, config Config) (func(context.Context) error, error) {
	if !config.Enabled() {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			attribute.String("environment", config.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := newExporter(ctx, config)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(newSampler(config.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, config Config) (sdktrace.SpanExporter, error) {
	if config.Exporter == ExporterOTLP {
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(config.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
	}
	w := config.Writer
	if w == nil {
		w = os.Stderr
	}
	return stdouttrace.New(stdouttrace.WithWriter(w))
}

func newSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns the named tracer for the scraper
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartSpan starts a new span with the given name and returns the context and span
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// AddToolAttributes adds standard tool attributes to a span
func AddToolAttributes(span trace.Span, toolName, category string) {
	span.SetAttributes(
		attribute.String("mcp.tool.name", toolName),
		attribute.String("mcp.tool.category", category),
	)
}

// AddLeaderAttributes tags a span with the country and, when known, the leader id.
func AddLeaderAttributes(span trace.Span, country, leaderID string) {
	span.SetAttributes(attribute.String("leaders.country", country))
	if leaderID != "" {
		span.SetAttributes(attribute.String("leaders.leader_id", leaderID))
	}
}

// AddPageAttributes tags a span with the Wikipedia page being enriched.
func AddPageAttributes(span trace.Span, pageURL string) {
	span.SetAttributes(attribute.String("wikipedia.page.url", pageURL))
}

func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
