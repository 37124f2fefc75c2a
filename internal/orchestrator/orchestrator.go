// Package orchestrator routes a civic query through a fixed graph:
// START -> classify -> {billing, incident, licensing, unknown} -> END.
// The graph is built with Eino's compose package and compiled once; every
// Process call starts from its own State, so concurrent queries share no
// mutable data.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/civic-go/internal/config"
	"github.com/54b3r/civic-go/internal/handlers"
	"github.com/54b3r/civic-go/internal/logging"
)

// Node names in the compiled graph.
const (
	nodeClassify  = "classify"
	nodeBilling   = "billing"
	nodeIncident  = "incident"
	nodeLicensing = "licensing"
	nodeUnknown   = "unknown"

	graphName = "civic_orchestrator"
)

// apology replaces the response of a branch that failed.
const apology = "Sorry, I encountered an error while handling your request. " +
	"Please try again, or contact the Masvingo City Council directly for assistance."

// Config holds the collaborators of an Orchestrator.
type Config struct {
	// Vocabulary supplies the route and intent keyword tables. Required.
	Vocabulary *config.Vocabulary

	// Billing, Incident and Licensing answer routed queries. Nil handlers
	// get the demo implementations from package handlers.
	Billing   handlers.Handler
	Incident  handlers.Handler
	Licensing handlers.Handler

	// Web backs the unknown branch. May be nil, in which case unknown
	// queries get the static help text.
	Web WebSource

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Registerer receives the orchestrator metrics. Defaults to a private
	// registry.
	Registerer prometheus.Registerer
}

// Orchestrator is the compiled routing graph.
type Orchestrator struct {
	runnable compose.Runnable[State, State]
	router   *Router
	fallback *fallback
	log      *slog.Logger
	metrics  *orchestratorMetrics
}

// New validates cfg and compiles the graph.
func New(ctx context.Context, cfg Config) (*Orchestrator, error) {
	if cfg.Vocabulary == nil {
		return nil, errors.New("orchestrator: vocabulary must not be nil")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "orchestrator"))
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if cfg.Billing == nil {
		cfg.Billing = handlers.NewBilling(nil, log)
	}
	if cfg.Incident == nil {
		cfg.Incident = handlers.NewIncident(nil, log)
	}
	if cfg.Licensing == nil {
		cfg.Licensing = handlers.NewLicensing(log)
	}

	o := &Orchestrator{
		router: NewRouter(cfg.Vocabulary),
		fallback: &fallback{
			web:     cfg.Web,
			intents: cfg.Vocabulary.Intents,
			baseURL: cfg.Vocabulary.Web.BaseURL,
			log:     log,
		},
		log:     log,
		metrics: newOrchestratorMetrics(reg),
	}

	unknown := handlers.HandlerFunc(func(ctx context.Context, query string) (string, error) {
		return o.fallback.respond(ctx, query), nil
	})

	r, err := o.build(ctx, map[string]handlers.Handler{
		nodeBilling:   cfg.Billing,
		nodeIncident:  cfg.Incident,
		nodeLicensing: cfg.Licensing,
		nodeUnknown:   unknown,
	})
	if err != nil {
		return nil, err
	}
	o.runnable = r
	return o, nil
}

func (o *Orchestrator) build(ctx context.Context, branches map[string]handlers.Handler) (compose.Runnable[State, State], error) {
	g := compose.NewGraph[State, State]()

	classify := func(_ context.Context, in State) (State, error) {
		return in.WithClassification(o.router.Route(in.Query)), nil
	}
	if err := g.AddLambdaNode(nodeClassify, compose.InvokableLambda(classify)); err != nil {
		return nil, fmt.Errorf("orchestrator: add node %s: %w", nodeClassify, err)
	}
	if err := g.AddEdge(compose.START, nodeClassify); err != nil {
		return nil, fmt.Errorf("orchestrator: add start edge: %w", err)
	}

	ends := make(map[string]bool, len(branches))
	for name, h := range branches {
		if err := g.AddLambdaNode(name, compose.InvokableLambda(o.branch(name, h))); err != nil {
			return nil, fmt.Errorf("orchestrator: add node %s: %w", name, err)
		}
		if err := g.AddEdge(name, compose.END); err != nil {
			return nil, fmt.Errorf("orchestrator: add end edge %s: %w", name, err)
		}
		ends[name] = true
	}

	cond := func(_ context.Context, in State) (string, error) {
		return branchNode(in.Classification), nil
	}
	if err := g.AddBranch(nodeClassify, compose.NewGraphBranch(cond, ends)); err != nil {
		return nil, fmt.Errorf("orchestrator: add branch: %w", err)
	}

	r, err := g.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: compile graph: %w", err)
	}
	return r, nil
}

// branchNode maps a route to its node. Anything unrecognised goes to the
// unknown node.
func branchNode(r Route) string {
	switch r {
	case RouteBilling:
		return nodeBilling
	case RouteIncident:
		return nodeIncident
	case RouteLicensing:
		return nodeLicensing
	default:
		return nodeUnknown
	}
}

// branch wraps h as a graph node. Handler errors and panics are logged,
// counted and replaced by the apology so the graph always reaches END.
func (o *Orchestrator) branch(name string, h handlers.Handler) func(context.Context, State) (State, error) {
	return func(ctx context.Context, in State) (out State, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				o.handlerFailed(ctx, name, fmt.Errorf("panic: %v", rec))
				out, err = in.WithResponse(name, apology), nil
			}
		}()
		resp, herr := h.Handle(ctx, in.Query)
		if herr != nil {
			o.handlerFailed(ctx, name, herr)
			return in.WithResponse(name, apology), nil
		}
		return in.WithResponse(name, resp), nil
	}
}

func (o *Orchestrator) handlerFailed(ctx context.Context, name string, err error) {
	o.metrics.failures.WithLabelValues(name).Inc()
	logging.FromContext(ctx).Error("orchestrator: handler failed",
		slog.String("component", "orchestrator"),
		slog.String("node", name),
		slog.String("error", err.Error()),
	)
}

// Process answers query. The returned State carries the classification,
// the branch that answered, and its response. An error means the graph
// itself could not run (for example, a cancelled context); handler
// failures are not errors.
func (o *Orchestrator) Process(ctx context.Context, query string) (State, error) {
	start := time.Now()
	out, err := o.runnable.Invoke(ctx, NewState(query))
	o.metrics.duration.Observe(time.Since(start).Seconds())
	if err != nil {
		return State{}, fmt.Errorf("orchestrator: process: %w", err)
	}
	o.metrics.routes.WithLabelValues(string(out.Classification)).Inc()
	o.log.Info("orchestrator: query processed",
		slog.String("classification", string(out.Classification)),
		slog.String("agent_used", out.AgentUsed),
		slog.Int("response_chars", len(out.Response)),
	)
	return out, nil
}

// Route exposes the classify step without running a branch.
func (o *Orchestrator) Route(query string) Route {
	return o.router.Route(query)
}
