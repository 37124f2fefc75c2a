// Package tracing attaches Langfuse tracing to every Eino graph and agent
// run in the process.
package tracing

import (
	"log/slog"
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// Config holds Langfuse credentials.
type Config struct {
	Host      string
	PublicKey string
	SecretKey string
	// Name labels traces from this process.
	Name string
}

// Enabled reports whether both keys are set.
func (c Config) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// ConfigFromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY.
func ConfigFromEnv() Config {
	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = "http://localhost:3000"
	}
	return Config{
		Host:      host,
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
		Name:      "civic-go",
	}
}

// Setup builds the Langfuse handler for cfg. It returns the handler and a
// flush function that must run before process exit. When cfg is not
// enabled all return values are zero and tracing stays off.
func Setup(cfg Config) (callbacks.Handler, func(), bool) {
	if !cfg.Enabled() {
		return nil, nil, false
	}
	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      cfg.Host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
		Name:      cfg.Name,
	})
	return handler, flusher, true
}

// Install registers the Langfuse handler globally so orchestrator graphs
// and the assistant's ReAct loop are traced without per-call options. The
// returned function flushes pending traces and is never nil.
func Install(cfg Config, log *slog.Logger) func() {
	handler, flush, ok := Setup(cfg)
	if !ok {
		log.Debug("tracing: langfuse disabled")
		return func() {}
	}
	callbacks.AppendGlobalHandlers(handler)
	log.Info("tracing: langfuse enabled", slog.String("host", cfg.Host))
	return flush
}
