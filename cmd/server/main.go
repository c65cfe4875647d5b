package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/vinodismyname/sheetrelay/config"
	"github.com/vinodismyname/sheetrelay/pkg/version"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:    "sheetrelay",
		Usage:   "MCP server for spreadsheet editing and document table extraction",
		Version: version.Version(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"SHEETRELAY_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (trace, debug, info, warn, error, disabled); overrides LOG_LEVEL",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the MCP server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "transport",
						Aliases: []string{"t"},
						Value:   "stdio",
						Usage:   "Transport type (stdio, sse, or http)",
					},
					&cli.StringFlag{
						Name:  "addr",
						Value: config.DefaultServeAddr,
						Usage: "Listen address for the sse and http transports",
					},
					&cli.StringFlag{
						Name:  "base-url",
						Usage: "Public base URL for the sse transport (default http://localhost<addr>)",
					},
					&cli.StringFlag{
						Name:  "files-path",
						Usage: "Base directory for relative workbook paths; overrides EXCEL_FILES_PATH",
					},
				},
				Action: serveAction,
			},
			{
				Name:  "relay",
				Usage: "Run the HTTP file relay",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address; overrides relay.addr and SHEETRELAY_RELAY_ADDR",
					},
				},
				Action: relayAction,
			},
			{
				Name:  "tools",
				Usage: "List the tool catalog and its estimated token cost",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "model",
						Value: "gpt-4o",
						Usage: "Model used for the token estimate",
					},
				},
				Action: toolsAction,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		// stdout may carry the stdio transport, so errors go to stderr
		fmt.Fprintf(os.Stderr, "sheetrelay: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and installs the process logger.
func setup(c *cli.Context) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, zlog.Logger, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cfg, zlog.Logger, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "sheetrelay").Logger()
	zlog.Logger = logger
	zerolog.DefaultContextLogger = &logger
	return cfg, logger, nil
}
