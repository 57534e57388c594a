package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/olgasafonova/country-leaders-scraper/internal/leaders"
	"github.com/olgasafonova/country-leaders-scraper/internal/pipeline"
	"github.com/olgasafonova/country-leaders-scraper/internal/store"
	"github.com/olgasafonova/country-leaders-scraper/internal/wikipedia"
	"github.com/olgasafonova/country-leaders-scraper/metrics"
	"github.com/olgasafonova/country-leaders-scraper/tracing"
)

// HandlerRegistry provides type-safe tool registration by mapping
// tool names to their concrete handler implementations.
type HandlerRegistry struct {
	leadersClient *leaders.Client
	wikiClient    *wikipedia.Client
	pipeline      *pipeline.Pipeline
	store         *store.DB
	logger        *slog.Logger
}

// NewHandlerRegistry creates a new handler registry.
func NewHandlerRegistry(leadersClient *leaders.Client, wikiClient *wikipedia.Client, p *pipeline.Pipeline, logger *slog.Logger) *HandlerRegistry {
	return &HandlerRegistry{
		leadersClient: leadersClient,
		wikiClient:    wikiClient,
		pipeline:      p,
		logger:        logger,
	}
}

// WithStore enables the tools that read recorded runs.
func (h *HandlerRegistry) WithStore(db *store.DB) *HandlerRegistry {
	h.store = db
	return h
}

// RegisterAll registers all tools with the MCP server.
// Store tools are skipped when no store is configured.
func (h *HandlerRegistry) RegisterAll(server *mcp.Server) {
	registered := 0
	for _, spec := range AllTools {
		if h.registerByName(server, spec) {
			registered++
		}
	}
	h.logger.Info("Registered all tools", "count", registered)
}

// registerByName dispatches to the correct typed registration function.
func (h *HandlerRegistry) registerByName(server *mcp.Server, spec ToolSpec) bool {
	if spec.Upstream == "store" && h.store == nil {
		h.logger.Debug("No run database, tool not registered", "tool", spec.Name)
		return false
	}
	tool := h.buildTool(spec)

	switch spec.Method {
	case "ListCountries":
		register(h, server, tool, spec, h.leadersClient.ListCountriesMCP)
	case "GetLeaders":
		register(h, server, tool, spec, h.pipeline.GetLeadersMCP)
	case "GetIntro":
		register(h, server, tool, spec, h.wikiClient.GetIntroMCP)
	case "ScrapeAll":
		register(h, server, tool, spec, h.pipeline.ScrapeAllMCP)
	case "LoadRun":
		register(h, server, tool, spec, h.store.LoadRunMCP)
	case "RunFailures":
		register(h, server, tool, spec, h.store.RunFailuresMCP)
	case "FindLeader":
		register(h, server, tool, spec, h.store.FindLeaderMCP)
	default:
		h.logger.Error("Unknown method, tool not registered", "method", spec.Method, "tool", spec.Name)
		return false
	}
	return true
}

// buildTool creates an mcp.Tool from a ToolSpec.
func (h *HandlerRegistry) buildTool(spec ToolSpec) *mcp.Tool {
	annotations := &mcp.ToolAnnotations{
		Title:          spec.Title,
		ReadOnlyHint:   spec.ReadOnly,
		IdempotentHint: spec.Idempotent,
	}
	if spec.Destructive {
		annotations.DestructiveHint = ptr(true)
	} else {
		annotations.DestructiveHint = ptr(false)
	}
	if spec.OpenWorld {
		annotations.OpenWorldHint = ptr(true)
	}

	tool := &mcp.Tool{
		Name:        spec.Name,
		Description: spec.Description,
		Annotations: annotations,
	}
	if spec.ObjectOutput {
		tool.OutputSchema = &jsonschema.Schema{Type: "object"}
	}
	return tool
}

// register is a generic helper that registers a tool with the MCP server.
// It wraps the client method with panic recovery, metrics, tracing, and logging.
func register[Args, Result any](
	h *HandlerRegistry,
	server *mcp.Server,
	tool *mcp.Tool,
	spec ToolSpec,
	method func(context.Context, Args) (Result, error),
) {
	mcp.AddTool(server, tool, func(ctx context.Context, req *mcp.CallToolRequest, args Args) (_ *mcp.CallToolResult, _ Result, err error) {
		defer h.recoverPanic(spec.Name, &err)

		ctx, span := tracing.StartSpan(ctx, "mcp.tool."+spec.Name)
		defer span.End()

		tracing.AddToolAttributes(span, spec.Name, spec.Category)
		span.SetAttributes(
			attribute.String("mcp.tool.upstream", spec.Upstream),
			attribute.Bool("mcp.tool.readonly", spec.ReadOnly),
		)

		metrics.ToolsInFlight.WithLabelValues(spec.Name).Inc()
		defer metrics.ToolsInFlight.WithLabelValues(spec.Name).Dec()

		start := time.Now()
		result, err := method(ctx, args)
		duration := time.Since(start).Seconds()

		span.SetAttributes(attribute.Float64("mcp.tool.duration_seconds", duration))

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.RecordToolCall(spec.Name, duration, false)
			h.logger.Warn("Tool failed", "tool", spec.Name, "error", err)
			var zero Result
			return nil, zero, fmt.Errorf("%s failed: %w", spec.Name, err)
		}

		span.SetStatus(codes.Ok, "")
		metrics.RecordToolCall(spec.Name, duration, true)
		h.logExecution(spec, args, result)
		return nil, result, nil
	})
}

// recoverPanic recovers from panics in tool handlers and turns them into a tool error.
func (h *HandlerRegistry) recoverPanic(toolName string, err *error) {
	if rec := recover(); rec != nil {
		metrics.PanicsRecovered.WithLabelValues(toolName).Inc()
		h.logger.Error("Panic recovered",
			"tool", toolName,
			"panic", rec,
			"stack", string(debug.Stack()))
		if err != nil {
			*err = fmt.Errorf("%s: internal error", toolName)
		}
	}
}

// logExecution logs tool execution details.
func (h *HandlerRegistry) logExecution(spec ToolSpec, args, result any) {
	attrs := []any{"tool", spec.Name, "upstream", spec.Upstream}

	switch a := args.(type) {
	case leaders.ListCountriesArgs:
		// No args to log
	case pipeline.GetLeadersArgs:
		attrs = append(attrs, "country", a.Country)
	case wikipedia.GetIntroArgs:
		attrs = append(attrs, "url", a.URL)
	case pipeline.ScrapeAllArgs:
		attrs = append(attrs, "countries_requested", len(a.Countries))
	case store.LoadRunArgs:
		attrs = append(attrs, "run_id", a.RunID)
	case store.RunFailuresArgs:
		attrs = append(attrs, "run_id", a.RunID, "stage", a.Stage)
	case store.FindLeaderArgs:
		attrs = append(attrs, "leader_id", a.LeaderID)
	}

	switch r := result.(type) {
	case leaders.ListCountriesResult:
		attrs = append(attrs, "countries", r.Count)
	case pipeline.GetLeadersResult:
		attrs = append(attrs, "leaders", r.Count, "failures", len(r.Failures))
	case wikipedia.GetIntroResult:
		attrs = append(attrs, "intro_length", len(r.Intro))
	case pipeline.ScrapeAllResult:
		attrs = append(attrs, "countries", r.CountryCount, "leaders", r.LeaderCount, "failures", len(r.Failures))
	case store.LoadRunResult:
		attrs = append(attrs, "run_id", r.Run.ID, "leaders", r.Run.Leaders, "failures", len(r.Failures))
	case store.RunFailuresResult:
		attrs = append(attrs, "run_id", r.RunID, "failures", r.Count)
	case store.FindLeaderResult:
		attrs = append(attrs, "records", r.Count)
	}

	h.logger.Info("Tool executed", attrs...)
}
