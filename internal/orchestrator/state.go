package orchestrator

import (
	"strings"

	"github.com/54b3r/civic-go/internal/config"
)

// Route is the branch a query is dispatched to.
type Route string

const (
	RouteBilling   Route = "billing"
	RouteIncident  Route = "incident"
	RouteLicensing Route = "licensing"
	RouteUnknown   Route = "unknown"
)

// State is the value threaded through the graph for one query. Nodes never
// modify the State they receive; they return a new one.
type State struct {
	// Query is the user's text, unchanged.
	Query string `json:"query"`

	// Classification is the branch chosen by the classify node.
	Classification Route `json:"classification"`

	// Response is the text produced by the branch node.
	Response string `json:"response"`

	// AgentUsed names the branch node that produced Response.
	AgentUsed string `json:"agent_used"`
}

// NewState returns the initial state for query.
func NewState(query string) State {
	return State{Query: query, Classification: RouteUnknown}
}

// WithClassification returns a copy of s routed to r.
func (s State) WithClassification(r Route) State {
	s.Classification = r
	return s
}

// WithResponse returns a copy of s answered by agent.
func (s State) WithResponse(agent, response string) State {
	s.AgentUsed = agent
	s.Response = response
	return s
}

// Router maps a query to a Route with a first-match keyword rule: routes
// are checked in vocabulary order and the first whose keyword appears as a
// substring of the lowercased query wins.
type Router struct {
	routes []config.KeywordSet
}

// NewRouter builds a Router from the vocabulary's routes.
func NewRouter(vocab *config.Vocabulary) *Router {
	return &Router{routes: vocab.Routes}
}

// Route classifies query. It never fails; unmatched queries are unknown.
func (r *Router) Route(query string) Route {
	q := strings.ToLower(query)
	for _, rt := range r.routes {
		for _, kw := range rt.Keywords {
			if strings.Contains(q, kw) {
				return Route(rt.Name)
			}
		}
	}
	return RouteUnknown
}
