package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/agentcal/internal/config"
	"github.com/teemow/agentcal/internal/instrumentation"
	"github.com/teemow/agentcal/internal/logging"
	"github.com/teemow/agentcal/internal/server"
	"github.com/teemow/agentcal/internal/transport/httpapi"
	"github.com/teemow/agentcal/internal/transport/matrix"
	"github.com/teemow/agentcal/internal/transport/mcp"
)

// Transports accepted by --transport.
const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		transport  string
		httpAddr   string
		debugMode  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling assistant",
		Long: `Start the scheduling assistant.

With --transport stdio the assistant is exposed as an MCP server on stdin and
stdout. With --transport streamable-http it serves the JSON message API under
/v1, MCP under /mcp and health probes under /healthz and /readyz.

The Matrix bot starts alongside either transport when matrix.homeserver is
configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http-addr") {
				cfg.HTTP.Addr = httpAddr
			}
			if debugMode {
				cfg.Log.Level = "debug"
			}
			return runServe(cmd.Context(), cfg, transport)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file. Settings can also come from .env and AGENTCAL_* variables.")
	cmd.Flags().StringVar(&transport, "transport", transportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", config.DefaultHTTPAddr, "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, transport string) error {
	if transport != transportStdio && transport != transportStreamableHTTP {
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", transport)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	// stdout belongs to the MCP protocol in stdio mode.
	logger := logging.New(os.Stderr, cfg.Log.Format, level)
	slog.SetDefault(logger)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("Error during instrumentation shutdown", logging.Err(err))
		}
	}()

	a, err := newApp(ctx, cfg, logger, provider)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("Failed to close session store", logging.Err(err))
		}
	}()

	mcpSrv := mcp.NewServer(a.assistant, a.search, mcp.Config{
		Version: version,
		Logger:  logger,
		Metrics: provider.Metrics(),
	})

	g, ctx := errgroup.WithContext(ctx)

	if transport != transportStdio && cfg.Metrics.Enabled && provider.ServesPrometheus() {
		metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Metrics.Addr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		g.Go(func() error { return metricsServer.Run(ctx) })
	}

	if cfg.Matrix.Enabled() {
		bot, err := matrix.New(matrix.Config{
			Homeserver:   cfg.Matrix.Homeserver,
			UserID:       cfg.Matrix.UserID,
			AccessToken:  cfg.Matrix.AccessToken,
			AllowedUsers: cfg.Matrix.AllowedUsers,
			AutoJoin:     cfg.Matrix.AutoJoin,
			Logger:       logger,
		}, matrix.ForAssistant(a.assistant))
		if err != nil {
			return err
		}
		g.Go(func() error { return bot.Run(ctx) })
	}

	switch transport {
	case transportStdio:
		g.Go(func() error {
			err := mcpSrv.ServeStdio()
			// The client closing stdin ends every other transport too.
			cancel()
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("server stopped with error: %w", err)
			}
			return nil
		})
	case transportStreamableHTTP:
		health := server.NewHealthChecker(a.checks()...)
		router := httpapi.NewRouter(a.assistant, a.search, httpapi.Config{
			Health:  health,
			MCP:     mcpSrv.Handler(),
			MCPPath: mcp.EndpointPath,
			Logger:  logger,
			Metrics: provider.Metrics(),
		})
		srv := server.NewHTTPServer(cfg.HTTP.Addr, router)
		g.Go(func() error {
			<-ctx.Done()
			health.SetShuttingDown()
			return nil
		})
		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("addr", cfg.HTTP.Addr), slog.String("timezone", cfg.Timezone))
			return server.Serve(ctx, srv, logger)
		})
	}

	return g.Wait()
}
