// Package handlers holds the terminal responders the orchestrator routes
// to. Each is a thin formatter over a narrow backend interface; none of
// them persists anything beyond process memory.
package handlers

import (
	"context"
	"log/slog"
	"strings"
)

// Handler answers a routed query.
type Handler interface {
	Handle(ctx context.Context, query string) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, query string) (string, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func componentLogger(log *slog.Logger, name string) *slog.Logger {
	if log == nil {
		log = slog.Default()
	}
	return log.With(slog.String("component", "handlers"), slog.String("handler", name))
}
