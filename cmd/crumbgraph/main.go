package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hanpama/crumbgraph/internal/breadcrumb"
	"github.com/hanpama/crumbgraph/internal/content"
	"github.com/hanpama/crumbgraph/internal/contentrt"
	"github.com/hanpama/crumbgraph/internal/eventbus"
	"github.com/hanpama/crumbgraph/internal/logging"
	"github.com/hanpama/crumbgraph/internal/metrics"
	"github.com/hanpama/crumbgraph/internal/otel"
	"github.com/hanpama/crumbgraph/internal/schema"
	"github.com/hanpama/crumbgraph/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const rootUsage = `crumbgraph: breadcrumb trails for content entries over GraphQL

USAGE:
  crumbgraph <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL endpoint over a content fixture
  trail            Print the breadcrumb trail of one entry as JSON
  validate         Check a content fixture and its navigation references
  compile-sdl      Print the public GraphQL schema
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -content <file>                     YAML content fixture (required)
  -content.default-locale <locale>    Locale when the request names none (default: en)
  -server.addr <addr>                 HTTP listen address (default: :8080)
  -server.pretty                      Pretty-print JSON responses
  -server.timeout <duration>          Per-request timeout, e.g. 10s (default: 10s)
  -server.max-body <bytes>            Maximum request body size, 0 for unlimited (default: 1048576)
  -server.cors <origin>               Allowed CORS origin, * for any. Repeatable
  -server.locale-header <name>        Header holding the request locale (default: Accept-Language)
  -graphql.introspection <bool>       Answer __schema and __type queries (default: true)
  -metrics.enabled <bool>             Serve Prometheus metrics on /metrics (default: true)
  -otel.endpoint <addr>               OTLP collector endpoint
  -otel.service <name>                OpenTelemetry service name (default: crumbgraph)
  -log.format <json|text>             Log encoding (default: json)
  -log.level <level>                  none, debug, info, warn or error (default: info)
`

const trailUsage = `trail FLAGS:
  -content <file>          YAML content fixture (required)
  -entry <id>              Entry id (required)
  -nav <handle>            Navigation structure to search first
  -full-mount-path         Prepend the mount entry's whole ancestry
  -pretty                  Indent the JSON output
`

const validateUsage = `validate FLAGS:
  -content <file>          YAML content fixture (required)
  -strict                  Treat navigation nodes referencing unknown entries as errors
`

const compileSDLUsage = `compile-sdl FLAGS:
  -out  <file>             Write the SDL to file (default: stdout)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "crumbgraph:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("crumbgraph", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer))
	if err := global.Parse(args); err != nil {
		fmt.Fprint(stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return errors.New("missing command")
	}

	cmd, cmdArgs := remaining[0], remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(ctx, cmdArgs, stderr)
	case "trail":
		return cmdTrail(ctx, cmdArgs, stdout, stderr)
	case "validate":
		return cmdValidate(ctx, cmdArgs, stdout, stderr)
	case "compile-sdl":
		return cmdCompileSDL(cmdArgs, stdout, stderr)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "trail":
		fmt.Fprint(stdout, trailUsage)
	case "validate":
		fmt.Fprint(stdout, validateUsage)
	case "compile-sdl":
		fmt.Fprint(stdout, compileSDLUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type serveConfig struct {
	contentFile   string
	defaultLocale string
	addr          string
	pretty        bool
	timeout       time.Duration
	maxBody       int64
	cors          stringListFlag
	localeHeader  string
	introspection bool
	metrics       bool
	otelEndpoint  string
	otelService   string
	logFormat     string
	logLevel      string
}

func parseServe(args []string) (serveConfig, error) {
	cfg := serveConfig{
		defaultLocale: content.DefaultLocale,
		addr:          ":8080",
		timeout:       10 * time.Second,
		maxBody:       1 << 20,
		localeHeader:  server.DefaultLocaleHeader,
		introspection: true,
		metrics:       true,
		otelService:   "crumbgraph",
		logFormat:     "json",
		logLevel:      "info",
	}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&cfg.contentFile, "content", cfg.contentFile, "YAML content fixture")
	fs.StringVar(&cfg.defaultLocale, "content.default-locale", cfg.defaultLocale, "Default locale")
	fs.StringVar(&cfg.addr, "server.addr", cfg.addr, "HTTP listen address")
	fs.BoolVar(&cfg.pretty, "server.pretty", cfg.pretty, "Pretty-print JSON responses")
	fs.DurationVar(&cfg.timeout, "server.timeout", cfg.timeout, "Per-request timeout")
	fs.Int64Var(&cfg.maxBody, "server.max-body", cfg.maxBody, "Maximum request body size")
	fs.Var(&cfg.cors, "server.cors", "Allowed CORS origin")
	fs.StringVar(&cfg.localeHeader, "server.locale-header", cfg.localeHeader, "Request locale header")
	fs.BoolVar(&cfg.introspection, "graphql.introspection", cfg.introspection, "Serve introspection")
	fs.BoolVar(&cfg.metrics, "metrics.enabled", cfg.metrics, "Serve Prometheus metrics")
	fs.StringVar(&cfg.otelEndpoint, "otel.endpoint", cfg.otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&cfg.otelService, "otel.service", cfg.otelService, "OpenTelemetry service name")
	fs.StringVar(&cfg.logFormat, "log.format", cfg.logFormat, "Log encoding")
	fs.StringVar(&cfg.logLevel, "log.level", cfg.logLevel, "Log level")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.contentFile == "" {
		return cfg, errors.New("-content is required")
	}
	return cfg, nil
}

// newMux wires the GraphQL endpoint and, when enabled, /metrics over a
// freshly loaded store. Bus subscriptions are removed by the returned func.
func newMux(cfg serveConfig, bus *eventbus.Bus, logger *zap.Logger) (*http.ServeMux, func(), error) {
	store, err := content.LoadFile(cfg.contentFile)
	if err != nil {
		return nil, nil, err
	}
	if err := store.CheckNavigation(); err != nil {
		for _, e := range multierr.Errors(err) {
			logger.Warn("navigation references a missing entry", zap.Error(e))
		}
	}

	sch, src, err := contentrt.Schema()
	if err != nil {
		return nil, nil, fmt.Errorf("build schema: %w", err)
	}
	crumbs := breadcrumb.NewResolver(store, breadcrumb.WithLogger(logger.Named("breadcrumb")))
	rt := contentrt.New(store,
		contentrt.WithDefaultLocale(cfg.defaultLocale),
		contentrt.WithBreadcrumbResolver(crumbs),
	)

	sopts := []server.Option{
		server.WithLocaleHeader(cfg.localeHeader),
		server.WithIntrospection(cfg.introspection),
	}
	if cfg.pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if cfg.timeout > 0 {
		sopts = append(sopts, server.WithTimeout(cfg.timeout))
	}
	if cfg.maxBody > 0 {
		sopts = append(sopts, server.WithMaxBodyBytes(cfg.maxBody))
	}
	if len(cfg.cors) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.cors...))
	}
	h, err := server.New(rt, sch, src, sopts...)
	if err != nil {
		return nil, nil, fmt.Errorf("server init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)
	cleanup := func() {}
	if cfg.metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		_, cleanup = metrics.Register(reg, bus)
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	return mux, cleanup, nil
}

func cmdServe(ctx context.Context, args []string, stderr io.Writer) (err error) {
	cfg, err := parseServe(args)
	if err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}
	logger, err := logging.New(cfg.logFormat, cfg.logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	bus := eventbus.New()
	eventbus.Use(bus)
	defer eventbus.Use(nil)

	shutdownTracing, err := otel.Setup(ctx, bus, cfg.otelEndpoint, cfg.otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}

	mux, cleanup, err := newMux(cfg, bus, logger)
	if err != nil {
		return multierr.Append(err, shutdownTracing(context.Background()))
	}
	defer cleanup()

	l, err := net.Listen("tcp", cfg.addr)
	if err != nil {
		return multierr.Append(err, shutdownTracing(context.Background()))
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	logger.Info("GraphQL server listening", zap.String("addr", l.Addr().String()), zap.String("content", cfg.contentFile))

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(l) }()

	select {
	case err = <-serveErr:
	case <-ctx.Done():
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = srv.Shutdown(sctx)
		if serr := <-serveErr; !errors.Is(serr, http.ErrServerClosed) {
			err = multierr.Append(err, serr)
		}
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return multierr.Append(err, shutdownTracing(context.Background()))
}

type trailRecord struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	Slug      string `json:"slug,omitempty"`
	URL       string `json:"url,omitempty"`
	Permalink string `json:"permalink,omitempty"`
	Blueprint string `json:"blueprint,omitempty"`
}

func cmdTrail(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		contentFile string
		entryID     string
		opts        breadcrumb.Options
		pretty      bool
	)
	fs := flag.NewFlagSet("trail", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&contentFile, "content", "", "YAML content fixture")
	fs.StringVar(&entryID, "entry", "", "Entry id")
	fs.StringVar(&opts.NavigationStructure, "nav", "", "Navigation structure handle")
	fs.BoolVar(&opts.FullMountPath, "full-mount-path", false, "Prepend the mount's whole ancestry")
	fs.BoolVar(&pretty, "pretty", false, "Indent the JSON output")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, trailUsage)
		return err
	}
	if contentFile == "" || entryID == "" {
		fmt.Fprint(stderr, trailUsage)
		return errors.New("-content and -entry are required")
	}

	store, err := content.LoadFile(contentFile)
	if err != nil {
		return err
	}
	e, err := store.Entry(ctx, entryID)
	if err != nil {
		return err
	}
	logger, err := logging.New("text", "warn")
	if err != nil {
		return err
	}
	trail, err := breadcrumb.NewResolver(store, breadcrumb.WithLogger(logger)).Breadcrumbs(ctx, e, opts)
	if err != nil {
		return err
	}

	out := make([]trailRecord, len(trail))
	for i, r := range trail {
		out[i] = trailRecord{ID: r.ID, Title: r.Title, Slug: r.Slug, URL: r.URL, Permalink: r.Permalink, Blueprint: r.Blueprint}
	}
	enc := json.NewEncoder(stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}

func cmdValidate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var contentFile string
	var strict bool
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&contentFile, "content", "", "YAML content fixture")
	fs.BoolVar(&strict, "strict", false, "Fail on dangling navigation references")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, validateUsage)
		return err
	}
	if contentFile == "" {
		fmt.Fprint(stderr, validateUsage)
		return errors.New("-content is required")
	}

	store, err := content.LoadFile(contentFile)
	if err != nil {
		problems := multierr.Errors(err)
		for _, p := range problems {
			fmt.Fprintln(stderr, "error:", p)
		}
		return fmt.Errorf("%s: %d problem(s)", contentFile, len(problems))
	}

	dangling := multierr.Errors(store.CheckNavigation())
	level := "warning:"
	if strict {
		level = "error:"
	}
	for _, p := range dangling {
		fmt.Fprintln(stderr, level, p)
	}
	if strict && len(dangling) > 0 {
		return fmt.Errorf("%s: %d problem(s)", contentFile, len(dangling))
	}

	entries, err := store.Entries(ctx, content.EntryFilter{})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: ok (%d entries, %d navigation structures)\n", contentFile, len(entries), len(store.Structures()))
	return nil
}

func cmdCompileSDL(args []string, stdout, stderr io.Writer) error {
	outFile := ""
	fs := flag.NewFlagSet("compile-sdl", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&outFile, "out", outFile, "Write SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, compileSDLUsage)
		return err
	}

	sch, _, err := contentrt.Schema()
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	sdl := schema.Render(sch)
	if outFile == "" {
		_, err := io.WriteString(stdout, sdl)
		return err
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}
