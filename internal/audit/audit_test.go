package audit

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestSanitiseKey_Secret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("OPENAI_API_KEY", "sk-abc123"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := SanitiseKey("OPENAI_API_KEY", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseKey_NonSecret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("MODEL_PROVIDER", "azure"); got != "azure" {
		t.Errorf("expected 'azure', got %q", got)
	}
	if got := SanitiseKey("MODEL_PROVIDER", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.civic/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.civic/config.yaml" {
			t.Errorf("expected '~/.civic/config.yaml', got %q", got)
		}
	}
}

func TestSanitiseKey_CivicSecrets(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"CIVIC_API_KEY", "PGVECTOR_DSN", "ARK_API_KEY", "LANGFUSE_SECRET_KEY"} {
		if got := SanitiseKey(key, "value"); got != "set" {
			t.Errorf("%s: expected 'set', got %q", key, got)
		}
	}
}

func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("CIVIC_API_KEY", "super-secret-token")
	t.Setenv("CIVIC_DATA_DIR", "/srv/civic/data")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	LogCommandStart(context.Background(), log, "serve", []string{"--port", "8080"}, "")

	out := buf.String()
	if strings.Contains(out, "super-secret-token") {
		t.Fatalf("secret value leaked into audit log: %s", out)
	}
	if !strings.Contains(out, `"CIVIC_API_KEY":"set"`) {
		t.Errorf("expected CIVIC_API_KEY presence, got: %s", out)
	}
	if !strings.Contains(out, `"index":{`) {
		t.Errorf("expected index group, got: %s", out)
	}
	if !strings.Contains(out, `"args":["--port","8080"]`) {
		t.Errorf("expected args, got: %s", out)
	}
	if !strings.Contains(out, `"CIVIC_DATA_DIR":"/srv/civic/data"`) {
		t.Errorf("expected CIVIC_DATA_DIR value, got: %s", out)
	}
	if !strings.Contains(out, `"command":"serve"`) || !strings.Contains(out, `"config_file":"none"`) {
		t.Errorf("missing command attrs: %s", out)
	}
}
