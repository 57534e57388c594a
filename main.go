// Country Leaders Scraper - fetches political leaders per country from the
// country-leaders API, enriches each with the intro of their Wikipedia article
// and writes the result to JSON (and optionally CSV and SQLite).
// With -mcp it serves the same operations as Model Context Protocol tools.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/olgasafonova/country-leaders-scraper/internal/base"
	"github.com/olgasafonova/country-leaders-scraper/internal/config"
	"github.com/olgasafonova/country-leaders-scraper/internal/leaders"
	"github.com/olgasafonova/country-leaders-scraper/internal/output"
	"github.com/olgasafonova/country-leaders-scraper/internal/pipeline"
	"github.com/olgasafonova/country-leaders-scraper/internal/store"
	"github.com/olgasafonova/country-leaders-scraper/internal/wikipedia"
	"github.com/olgasafonova/country-leaders-scraper/tools"
	"github.com/olgasafonova/country-leaders-scraper/tracing"
)

const (
	ServerName    = "country-leaders-scraper"
	ServerVersion = "1.0.0"
)

// recoverPanic logs a panic with its stack instead of crashing and reports it through err
func recoverPanic(logger *slog.Logger, operation string, err *error) {
	if r := recover(); r != nil {
		logger.Error("Panic recovered",
			"operation", operation,
			"panic", r,
			"stack", string(debug.Stack()))
		if err != nil {
			*err = fmt.Errorf("%s: internal error", operation)
		}
	}
}

// options are the command-line flags. Empty values leave the config untouched.
type options struct {
	configPath  string
	out         string
	csv         string
	db          string
	countries   string
	metricsAddr string
	logLevel    string
	noEnrich    bool
	mcp         bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet(ServerName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "YAML config file (optional)")
	fs.StringVar(&o.out, "out", "", "JSON output path (default leaders.json)")
	fs.StringVar(&o.csv, "csv", "", "also write a CSV file to this path")
	fs.StringVar(&o.db, "db", "", "also record the run in this SQLite database")
	fs.StringVar(&o.countries, "countries", "", "comma-separated country codes to scrape (default all)")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	fs.BoolVar(&o.noEnrich, "no-enrich", false, "skip Wikipedia intro enrichment")
	fs.BoolVar(&o.mcp, "mcp", false, "run as an MCP server on stdio instead of scraping")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return o, nil
}

// loadConfig layers defaults, the YAML file, the environment and flags, then validates.
func loadConfig(o options) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()

	if o.out != "" {
		cfg.Output.JSON = o.out
	}
	if o.csv != "" {
		cfg.Output.CSV = o.csv
	}
	if o.db != "" {
		cfg.Output.DB = o.db
	}
	if o.countries != "" {
		cfg.Countries = nil
		for _, c := range strings.Split(o.countries, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cfg.Countries = append(cfg.Countries, c)
			}
		}
	}
	if o.metricsAddr != "" {
		cfg.Metrics.Addr = o.metricsAddr
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.noEnrich {
		cfg.Wikipedia.Enrich = false
	}

	return cfg, config.Validate(cfg)
}

// newLogger writes to w; stdout is reserved for MCP traffic.
func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// app holds the wired clients for one process.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	leaders  *leaders.Client
	wiki     *wikipedia.Client
	pipeline *pipeline.Pipeline
}

func newApp(cfg config.Config, logger *slog.Logger) *app {
	leadersClient := leaders.NewClient(cfg.LeadersConfig(),
		leaders.WithLogger(logger),
		leaders.WithTimeout(cfg.API.Timeout),
	)
	wikiClient := wikipedia.NewClient(cfg.WikipediaConfig(),
		wikipedia.WithLogger(logger),
		base.WithTimeout(cfg.API.Timeout),
	)

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if countries := cfg.CountryCodes(); len(countries) > 0 {
		opts = append(opts, pipeline.WithCountries(countries...))
	}
	if !cfg.Wikipedia.Enrich {
		opts = append(opts, pipeline.WithoutEnrichment())
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		leaders:  leadersClient,
		wiki:     wikiClient,
		pipeline: pipeline.New(leadersClient, wikiClient, opts...),
	}
}

func (a *app) Close() {
	a.leaders.Close()
	a.wiki.Close()
}

// scrape runs the pipeline and writes every configured output. A cancelled
// run still writes what it collected before returning the cancellation.
func (a *app) scrape(ctx context.Context) (err error) {
	defer recoverPanic(a.logger, "scrape", &err)

	started := time.Now()
	rs, runErr := a.pipeline.Run(ctx)
	if rs == nil {
		return runErr
	}
	finished := time.Now()

	if err := output.WriteJSONFile(a.cfg.Output.JSON, rs.Leaders); err != nil {
		return fmt.Errorf("failed to write %s: %w", a.cfg.Output.JSON, err)
	}
	a.logger.Info("Leaders data saved", "format", "json", "path", a.cfg.Output.JSON)

	if a.cfg.Output.CSV != "" {
		if err := output.WriteCSVFile(a.cfg.Output.CSV, rs.Leaders); err != nil {
			return fmt.Errorf("failed to write %s: %w", a.cfg.Output.CSV, err)
		}
		a.logger.Info("Leaders data saved", "format", "csv", "path", a.cfg.Output.CSV)
	}

	if a.cfg.Output.DB != "" {
		db, openErr := store.Open(context.WithoutCancel(ctx), a.cfg.Output.DB)
		if openErr != nil {
			return openErr
		}
		defer db.Close()
		runID, saveErr := db.SaveRun(context.WithoutCancel(ctx), rs, started, finished)
		if saveErr != nil {
			return fmt.Errorf("failed to record run: %w", saveErr)
		}
		a.logger.Info("Run recorded", "path", a.cfg.Output.DB, "run_id", runID)
	}

	a.logger.Info("Scrape summary",
		"countries", len(rs.Leaders),
		"leaders", rs.LeaderCount(),
		"enriched", rs.Enriched(),
		"failures", len(rs.Failures),
		"duration", finished.Sub(started).Round(time.Millisecond),
	)
	return runErr
}

// newMCPServer builds the MCP server. When a run database is configured it is
// opened and the runs_* tools are registered; the returned close func releases it.
func (a *app) newMCPServer(ctx context.Context) (*mcp.Server, func(), error) {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, &mcp.ServerOptions{
		Instructions: `Country Leaders Scraper provides political leaders per country, enriched with the intro paragraph of each leader's Wikipedia article.

Available tools:
- leaders_list_countries: Country codes the API knows
- leaders_get_leaders: Leaders of one country, with Wikipedia intros
- wikipedia_get_intro: First paragraph of any Wikipedia article
- leaders_scrape_all: Full scrape across all (or selected) countries
- runs_load, runs_get_failures, runs_find_leader: Recorded runs (only with -db)

Configure via environment variables:
- LEADERS_API_URL: Leaders API base URL (default https://country-leaders.onrender.com)
- WIKIPEDIA_USER_AGENT: User-Agent sent to Wikipedia
- LEADERS_DB: SQLite database of recorded runs`,
	})

	registry := tools.NewHandlerRegistry(a.leaders, a.wiki, a.pipeline, a.logger)
	closeStore := func() {}
	if a.cfg.Output.DB != "" {
		db, err := store.Open(ctx, a.cfg.Output.DB)
		if err != nil {
			return nil, nil, err
		}
		registry.WithStore(db)
		closeStore = func() { _ = db.Close() }
	}
	registry.RegisterAll(server)
	return server, closeStore, nil
}

// serveMCP exposes the scraper as MCP tools over stdio until ctx is done or the client disconnects.
func (a *app) serveMCP(ctx context.Context) error {
	server, closeStore, err := a.newMCPServer(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	a.logger.Info("Starting MCP server",
		"name", ServerName,
		"version", ServerVersion,
		"api_url", a.cfg.API.BaseURL,
		"db", a.cfg.Output.DB,
	)
	return server.Run(ctx, &mcp.StdioTransport{})
}

// runWithMetrics runs job and, when addr is set, a metrics server that stops once job returns.
func runWithMetrics(ctx context.Context, addr string, logger *slog.Logger, job func(context.Context) error) error {
	if addr == "" {
		return job(ctx)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	jobDone := make(chan struct{})

	g.Go(func() error {
		logger.Info("Serving metrics", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-jobDone:
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		defer close(jobDone)
		return job(gctx)
	})
	return g.Wait()
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, stderr)

	tcfg, err := tracing.FromEnv(ServerVersion)
	tcfg.Writer = stderr
	var shutdownTracing func(context.Context) error
	if err == nil {
		shutdownTracing, err = tracing.Setup(ctx, tcfg)
	}
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Warn("Tracing shutdown failed", "error", err)
			}
		}()
	}

	a := newApp(cfg, logger)
	defer a.Close()

	if o.mcp {
		return runWithMetrics(ctx, cfg.Metrics.Addr, logger, a.serveMCP)
	}
	return runWithMetrics(ctx, cfg.Metrics.Addr, logger, a.scrape)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", ServerName, err)
		stop()
		os.Exit(1)
	}
}
