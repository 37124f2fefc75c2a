package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/civic-go/internal/index"
	"github.com/54b3r/civic-go/internal/logging"
	"github.com/54b3r/civic-go/internal/server"
)

// startupProbeTimeout bounds the dependency check run before listening.
const startupProbeTimeout = 10 * time.Second

// NewServeCmd constructs the `civic serve` command, which starts the HTTP
// API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the civic HTTP API",
		Long: `Start the HTTP server.

Endpoints:
  POST /api/query    route a question to a back-office handler
  POST /api/search   retrieval without generation
  POST /api/chat     SSE stream from the assistant (needs MODEL_PROVIDER)
  GET  /api/domains  list the service domains
  GET  /api/health   liveness
  GET  /api/ready    dependency readiness
  GET  /metrics      Prometheus metrics

Set CIVIC_API_KEY to require a Bearer token on /api/* routes.

Examples:
  civic serve
  civic serve --port 9090
  MODEL_PROVIDER=ollama civic serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)

			a, err := newApp(ctx, log, appOptions{})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer a.close()

			if err := a.ensureIndexed(ctx); err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			orch, err := a.orchestrator(ctx)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			backends := server.Backends{Orchestrator: orch, Retrieval: a.service}
			asst, pcfg, chatModel, err := a.assistant(ctx)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			if asst != nil {
				backends.Chat = asst
				a.pingers = append(a.pingers, server.NewLLMPinger(pcfg, chatModel, nil))
			}

			probeCtx, cancel := context.WithTimeout(ctx, startupProbeTimeout)
			if err := server.NewMultiPinger(a.pingers...).Ping(probeCtx); err != nil {
				log.Warn("serve: dependency not ready at startup", slog.String("error", err.Error()))
			}
			cancel()

			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("CIVIC_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("CIVIC_PORT", port)
			}

			srv, err := server.New(backends, &server.Config{
				Host:        host,
				Port:        port,
				Logger:      log,
				Pingers:     a.pingers,
				APIKey:      os.Getenv("CIVIC_API_KEY"),
				RateLimit:   getEnvFloat("CIVIC_RATE_LIMIT_RPS", 0),
				RateBurst:   getEnvInt("CIVIC_RATE_LIMIT_BURST", 0),
				DefaultTopK: getEnvInt("CIVIC_TOP_K", index.DefaultTopK),
			})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env: CIVIC_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env: CIVIC_PORT)")

	return cmd
}
