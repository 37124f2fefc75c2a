package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Severity levels assigned to incidents.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

var (
	knownLocations  = []string{"mucheke", "cbd", "city center", "high school", "clinic", "hospital"}
	locationPattern = regexp.MustCompile(`(?i)(?:near|at|in)\s+([A-Za-z\s]+)`)
)

// Incident is a reported infrastructure fault.
type Incident struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Severity    string    `json:"severity"`
	Status      string    `json:"status"`
	ReportedBy  string    `json:"reported_by"`
}

// Recorder keeps reported incidents in memory, in report order.
type Recorder struct {
	mu        sync.Mutex
	incidents []Incident
	now       func() time.Time
}

// NewRecorder returns an empty Recorder. A nil now uses time.Now.
func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{now: now}
}

// Record stores a new incident built from description.
func (r *Recorder) Record(description, location, severity string) Incident {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts := r.now()
	inc := Incident{
		ID:          "INC" + ts.Format("20060102150405"),
		Timestamp:   ts,
		Description: description,
		Location:    location,
		Severity:    severity,
		Status:      "reported",
		ReportedBy:  "user",
	}
	r.incidents = append(r.incidents, inc)
	return inc
}

// Incidents returns a copy of every recorded incident.
func (r *Recorder) Incidents() []Incident {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Incident, len(r.incidents))
	copy(out, r.incidents)
	return out
}

// IncidentReporter logs pipe bursts, leaks and other faults.
type IncidentReporter struct {
	recorder *Recorder
	log      *slog.Logger
}

// NewIncident returns an IncidentReporter. A nil recorder gets a fresh one.
func NewIncident(rec *Recorder, log *slog.Logger) *IncidentReporter {
	if rec == nil {
		rec = NewRecorder(nil)
	}
	return &IncidentReporter{recorder: rec, log: componentLogger(log, "incident")}
}

// Handle implements Handler.
func (h *IncidentReporter) Handle(_ context.Context, query string) (string, error) {
	q := strings.ToLower(query)
	if !containsAny(q, "burst", "pipe", "leak") && !(strings.Contains(q, "report") && strings.Contains(q, "incident")) {
		return "I can help you report pipe bursts, leaks, or other water infrastructure incidents. Please describe the issue with location details.", nil
	}

	inc := h.recorder.Record(query, Location(query), Severity(query))
	h.log.Info("incident: logged", slog.String("id", inc.ID), slog.String("severity", inc.Severity))

	var sb strings.Builder
	sb.WriteString("**Incident Report Logged Successfully**\n\n")
	fmt.Fprintf(&sb, "- **Report ID**: %s\n", inc.ID)
	fmt.Fprintf(&sb, "- **Location**: %s\n", inc.Location)
	fmt.Fprintf(&sb, "- **Severity**: %s\n", titleCase(inc.Severity))
	fmt.Fprintf(&sb, "- **Status**: %s\n", titleCase(inc.Status))
	fmt.Fprintf(&sb, "- **Timestamp**: %s\n\n", inc.Timestamp.Format(time.RFC3339))
	sb.WriteString("Thank you for reporting this incident. Our maintenance team will investigate and address it as soon as possible.\n\n")
	sb.WriteString("For urgent situations, please also contact the emergency hotline at +263-123-456-789.")
	return sb.String(), nil
}

// Location finds a known place in query, then a "near/at/in X" phrase.
func Location(query string) string {
	q := strings.ToLower(query)
	for _, loc := range knownLocations {
		if strings.Contains(q, loc) {
			return titleCase(loc)
		}
	}
	if m := locationPattern.FindStringSubmatch(query); m != nil {
		if loc := strings.TrimSpace(m[1]); loc != "" {
			return titleCase(loc)
		}
	}
	return "Location not specified"
}

// Severity grades query by keyword, defaulting to medium.
func Severity(query string) string {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, "major", "severe", "critical", "emergency"):
		return SeverityHigh
	case containsAny(q, "moderate", "medium", "significant"):
		return SeverityMedium
	case containsAny(q, "minor", "small", "slight"):
		return SeverityLow
	default:
		return SeverityMedium
	}
}
