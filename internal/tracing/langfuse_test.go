package tracing

import (
	"io"
	"log/slog"
	"testing"
)

func TestSetupDisabledWithoutKeys(t *testing.T) {
	cases := []Config{
		{},
		{PublicKey: "pk"},
		{SecretKey: "sk"},
	}
	for _, cfg := range cases {
		h, flush, ok := Setup(cfg)
		if ok || h != nil || flush != nil {
			t.Errorf("Setup(%+v) enabled tracing without both keys", cfg)
		}
	}
}

func TestInstallDisabledReturnsNoop(t *testing.T) {
	flush := Install(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if flush == nil {
		t.Fatal("Install returned nil flush")
	}
	flush()
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LANGFUSE_HOST", "")
	t.Setenv("LANGFUSE_PUBLIC_KEY", "pk-lf")
	t.Setenv("LANGFUSE_SECRET_KEY", "sk-lf")

	cfg := ConfigFromEnv()
	if cfg.Host != "http://localhost:3000" {
		t.Errorf("Host = %q, want default", cfg.Host)
	}
	if !cfg.Enabled() {
		t.Error("want tracing enabled with both keys")
	}
}
