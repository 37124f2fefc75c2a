// Package audit logs one structured entry per CLI command invocation: the
// command name and arguments, the config file in effect and the provider and
// backend selections. Secrets are recorded as "set" or "unset", never by value.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// envGroup is one concern's environment variables. Keys listed in secrets
// are reported by presence only.
type envGroup struct {
	name    string
	keys    []string
	secrets []string
}

var groups = []envGroup{
	{
		name: "model",
		keys: []string{"MODEL_PROVIDER", "OLLAMA_HOST", "OLLAMA_MODEL", "OPENAI_MODEL", "OPENAI_BASE_URL",
			"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT", "ARK_MODEL", "GEMINI_MODEL"},
		secrets: []string{"OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "ARK_API_KEY", "GOOGLE_API_KEY"},
	},
	{
		name:    "embedding",
		keys:    []string{"EMBEDDING_PROVIDER", "EMBEDDING_MODEL"},
		secrets: []string{"EMBEDDING_API_KEY"},
	},
	{
		name:    "index",
		keys:    []string{"CIVIC_VECTOR_BACKEND", "CIVIC_INDEX_DB", "QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION", "CIVIC_DATA_DIR", "CIVIC_CLASSIFIER_MODE", "CIVIC_VOCABULARY"},
		secrets: []string{"QDRANT_API_KEY", "PGVECTOR_DSN"},
	},
	{
		name: "web",
		keys: []string{"CIVIC_WEB_BASE_URL", "CIVIC_WEB_DISABLED"},
	},
	{
		name:    "server",
		keys:    []string{"CIVIC_HISTORY_DB", "LOG_LEVEL", "LOG_FORMAT"},
		secrets: []string{"CIVIC_API_KEY", "LANGFUSE_PUBLIC_KEY", "LANGFUSE_SECRET_KEY"},
	},
}

var secretKeys = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, g := range groups {
		for _, k := range g.secrets {
			m[k] = struct{}{}
		}
	}
	return m
}()

// LogCommandStart emits the audit record for a command about to run.
func LogCommandStart(ctx context.Context, log *slog.Logger, command string, args []string, configPath string) {
	attrs := make([]slog.Attr, 0, len(groups)+3)
	attrs = append(attrs,
		slog.String("command", command),
		slog.Any("args", args),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	for _, g := range groups {
		vals := make([]any, 0, len(g.keys)+len(g.secrets))
		for _, k := range append(append([]string{}, g.keys...), g.secrets...) {
			vals = append(vals, slog.String(k, SanitiseKey(k, os.Getenv(k))))
		}
		attrs = append(attrs, slog.Group(g.name, vals...))
	}
	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey returns the value to log for key: presence only for secrets,
// the value itself otherwise, and "unset" when empty.
func SanitiseKey(key, value string) string {
	if value == "" {
		return "unset"
	}
	if _, ok := secretKeys[key]; ok {
		return "set"
	}
	return value
}

// sanitiseConfigPath shortens the home directory to ~; empty is "none".
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" && strings.HasPrefix(p, home) {
		return "~" + strings.TrimPrefix(p, home)
	}
	return p
}
