package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/civic-go/internal/orchestrator"
	"github.com/54b3r/civic-go/internal/rag"
	"github.com/54b3r/civic-go/internal/retrieval"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// ChatTimeout bounds a single /api/chat stream (default: 5m).
	ChatTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// DefaultTopK is used by /api/search when the request omits top_k.
	DefaultTopK int
	// MetricsRegistry receives the server metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Processor answers a one-shot query through the routing graph.
// *orchestrator.Orchestrator satisfies it.
type Processor interface {
	Process(ctx context.Context, query string) (orchestrator.State, error)
}

// Retriever runs hybrid retrieval without generation.
// *retrieval.Service satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, domain rag.Domain) (*retrieval.Result, error)
}

// Chatter streams a conversational reply. *assistant.Assistant satisfies it.
type Chatter interface {
	Query(ctx context.Context, session, message string, w io.Writer) error
}

// Backends groups the application services the server exposes. Chat may be
// nil when no chat model is configured; /api/chat then answers 503. Pass an
// untyped nil rather than a nil *assistant.Assistant.
type Backends struct {
	Orchestrator Processor
	Retrieval    Retriever
	Chat         Chatter
}

// Server is the HTTP server that exposes the civic assistant.
type Server struct {
	// orchestrator handles POST /api/query.
	orchestrator Processor
	// retrieval handles POST /api/search.
	retrieval Retriever
	// chat handles POST /api/chat; nil disables the endpoint.
	chat Chatter
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// Query is the citizen's question.
	Query string `json:"query"`
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the text to search for.
	Query string `json:"query"`
	// Domain optionally restricts retrieval to one civic domain.
	Domain string `json:"domain,omitempty"`
	// TopK is the number of chunks to return. Zero uses the server default.
	TopK int `json:"top_k,omitempty"`
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Message is the user's natural language query.
	Message string `json:"message"`
	// Session keys the conversation history. Empty uses the default session.
	Session string `json:"session,omitempty"`
}

// domainsResponse is the JSON response for GET /api/domains.
type domainsResponse struct {
	Domains []rag.Domain `json:"domains"`
}

// errorResponse is the JSON error body used by the JSON endpoints.
type errorResponse struct {
	Error string `json:"error"`
}
