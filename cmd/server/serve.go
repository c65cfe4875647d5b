package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/vinodismyname/sheetrelay/config"
	"github.com/vinodismyname/sheetrelay/internal/docs"
	"github.com/vinodismyname/sheetrelay/internal/fetch"
	"github.com/vinodismyname/sheetrelay/internal/paths"
	"github.com/vinodismyname/sheetrelay/internal/registry"
	"github.com/vinodismyname/sheetrelay/internal/relay"
	"github.com/vinodismyname/sheetrelay/internal/runtime"
	"github.com/vinodismyname/sheetrelay/internal/telemetry"
	"github.com/vinodismyname/sheetrelay/internal/upload"
	"github.com/vinodismyname/sheetrelay/internal/workbooks"
	"github.com/vinodismyname/sheetrelay/pkg/version"
)

const shutdownTimeout = 5 * time.Second

// app holds the wired components shared by every command.
type app struct {
	cfg        config.Config
	logger     zerolog.Logger
	limits     runtime.Limits
	controller *runtime.Controller
	fetcher    *fetch.Fetcher
	uploader   upload.Uploader
	registry   *registry.Registry
	guard      *paths.Guard
}

func build(cfg config.Config, logger zerolog.Logger) (*app, error) {
	guard, err := paths.NewGuard(cfg.AllowedDirs)
	if err != nil {
		return nil, fmt.Errorf("invalid allowed_dirs: %w", err)
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	uploader, err := upload.New(cfg.Upload)
	if err != nil {
		return nil, fmt.Errorf("upload target: %w", err)
	}

	limits := runtime.LimitsFromConfig(cfg.Limits)
	controller := runtime.NewController(limits)
	fetcher := fetch.New(fetch.Options{TempDir: cfg.TempDir, Timeout: limits.FetchTimeout})

	env := &registry.Env{
		Resolver:  paths.NewResolver(cfg.FilesPath),
		Guard:     guard,
		Fetcher:   fetcher,
		Books:     workbooks.NewManager(controller),
		Uploader:  uploader,
		Extractor: docs.NewExtractor(fetcher),
		Limits:    limits,
	}
	reg := registry.New()
	if err := registry.RegisterAll(reg, env); err != nil {
		return nil, err
	}
	return &app{
		cfg:        cfg,
		logger:     logger,
		limits:     limits,
		controller: controller,
		fetcher:    fetcher,
		uploader:   uploader,
		registry:   reg,
		guard:      guard,
	}, nil
}

func (a *app) mcpServer() *server.MCPServer {
	filter := registry.NewWriteToolFilter(a.registry, a.cfg.EnableWrites)
	srv := server.NewMCPServer(
		"sheetrelay",
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(telemetry.NewHooks(a.logger).Server()),
		server.WithToolHandlerMiddleware(filter.ToolMiddleware),
		server.WithToolHandlerMiddleware(runtime.NewMiddleware(a.controller).ToolMiddleware),
		server.WithToolFilter(filter.FilterTools),
	)
	a.registry.Mount(srv)
	return srv
}

func serveAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	transport := strings.ToLower(c.String("transport"))
	if fp := c.String("files-path"); fp != "" {
		cfg.FilesPath = fp
	}
	if transport != "stdio" {
		if cfg.FilesPath == "" {
			cfg.FilesPath = config.DefaultFilesPath
		}
		if err := os.MkdirAll(cfg.FilesPath, 0o755); err != nil {
			return fmt.Errorf("files path: %w", err)
		}
	}

	a, err := build(cfg, logger)
	if err != nil {
		return err
	}
	srv := a.mcpServer()

	logger.Info().
		Str("version", version.Version()).
		Str("transport", transport).
		Str("files_path", cfg.FilesPath).
		Strs("allowed_dirs", a.guard.AllowedDirectories()).
		Bool("enable_writes", cfg.EnableWrites).
		Bool("upload_enabled", cfg.Upload.Enabled()).
		Int("max_concurrent_requests", a.limits.MaxConcurrentRequests).
		Int("max_open_workbooks", a.limits.MaxOpenWorkbooks).
		Int("model_context_size", a.registry.ModelContextSize("gpt-4o")).
		Msg("server bootstrap configured")

	ctx := c.Context
	addr := c.String("addr")
	switch transport {
	case "stdio":
		stdio := server.NewStdioServer(srv)
		if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case "sse":
		baseURL := c.String("base-url")
		if baseURL == "" {
			baseURL = "http://localhost" + addr
		}
		sse := server.NewSSEServer(srv, server.WithBaseURL(baseURL))
		return runHTTP(ctx, logger, addr, sse.Start, sse.Shutdown)
	case "http":
		streamable := server.NewStreamableHTTPServer(srv)
		return runHTTP(ctx, logger, addr, streamable.Start, streamable.Shutdown)
	default:
		return fmt.Errorf("unknown transport %q (want stdio, sse or http)", transport)
	}
}

// runHTTP starts a network transport and shuts it down when ctx ends.
func runHTTP(ctx context.Context, logger zerolog.Logger, addr string, start func(string) error, shutdown func(context.Context) error) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("listening")
		errc <- start(addr)
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func relayAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Relay.Addr = addr
	}
	a, err := build(cfg, logger)
	if err != nil {
		return err
	}
	if !cfg.Upload.Enabled() {
		logger.Warn().Msg("no upload target configured; relay requests will fail with 503")
	}
	rl := relay.New(a.fetcher, a.uploader, cfg.Relay, logger.With().Str("component", "relay").Logger())
	return rl.ListenAndServe(c.Context, cfg.Relay.Addr)
}

func toolsAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	a, err := build(cfg, logger)
	if err != nil {
		return err
	}
	model := c.String("model")

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tMODE\tDESCRIPTION")
	for _, d := range a.registry.Descriptors() {
		mode := "read"
		if d.Write {
			mode = "write"
		}
		desc, _, _ := strings.Cut(d.Description, ".")
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, mode, desc)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	tokens, err := a.registry.CatalogTokens(c.Context, model)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\n%d tools, ~%d tokens for %s (context window %d)\n",
		len(a.registry.Descriptors()), tokens, model, a.registry.ModelContextSize(model))
	return nil
}
