package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
)

type constructor func(context.Context, *Config) (model.ToolCallingChatModel, error)

var constructors = map[Backend]constructor{
	BackendOllama: newOllama,
	BackendOpenAI: newOpenAI,
	BackendAzure:  newAzure,
	BackendArk:    newArk,
	BackendGemini: newGemini,
}

// ConfigFromEnv reads the assistant's model settings. MODEL_PROVIDER picks
// the backend (ollama, openai, azure, ark or gemini); unset disables the
// assistant. Per-backend variables carry the OLLAMA_, OPENAI_,
// AZURE_OPENAI_, ARK_ and GEMINI_/GOOGLE_ prefixes. MODEL_MAX_TOKENS
// (1024) and MODEL_TEMPERATURE (0.2) apply to all of them.
func ConfigFromEnv() *Config {
	return &Config{
		Backend: Backend(strings.ToLower(strings.TrimSpace(os.Getenv("MODEL_PROVIDER")))),
		Ollama: ProviderOllama{
			Host:  envOr("OLLAMA_HOST", "http://localhost:11434"),
			Model: envOr("OLLAMA_MODEL", "llama3"),
		},
		OpenAI: ProviderOpenAI{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   envOr("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		AzureOpenAI: ProviderAzureOpenAI{
			APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
			Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
			Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
			APIVersion: envOr("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		},
		Ark: ProviderArk{
			APIKey:  os.Getenv("ARK_API_KEY"),
			Model:   os.Getenv("ARK_MODEL"),
			BaseURL: os.Getenv("ARK_BASE_URL"),
			Region:  os.Getenv("ARK_REGION"),
		},
		Gemini: ProviderGemini{
			APIKey: os.Getenv("GOOGLE_API_KEY"),
			Model:  envOr("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		Tuning: SharedTuning{
			MaxTokens:   envParsed("MODEL_MAX_TOKENS", 1024, strconv.Atoi),
			Temperature: envParsed("MODEL_TEMPERATURE", float32(0.2), parseFloat32),
		},
	}
}

// New builds the chat model for cfg.Backend, or returns ErrDisabled when
// none is selected.
func New(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	build, ok := constructors[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("provider: no constructor for backend %q", cfg.Backend)
	}
	return build(ctx, cfg)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// envParsed parses key with parse, keeping fallback when unset or invalid.
func envParsed[T any](key string, fallback T, parse func(string) (T, error)) T {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if out, err := parse(v); err == nil {
		return out
	}
	return fallback
}

func parseFloat32(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	return float32(f), err
}
