// Package provider selects and constructs the chat model behind the civic
// assistant. Supported backends: Ollama, OpenAI, Azure OpenAI, Volcengine
// Ark and Google Gemini. The assistant is optional, so an unset backend is
// reported as ErrDisabled rather than a failure.
package provider

import (
	"errors"
	"fmt"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendNone disables the assistant.
	BackendNone Backend = ""
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendArk selects the Volcengine Ark model runtime.
	BackendArk Backend = "ark"
	// BackendGemini selects Google Gemini through AI Studio.
	BackendGemini Backend = "gemini"
)

// ErrDisabled is returned by New when no backend is configured.
var ErrDisabled = errors.New("provider: no model provider configured")

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	Host  string
	Model string
}

// ProviderOpenAI holds OpenAI settings. BaseURL is optional and lets any
// OpenAI-compatible endpoint stand in.
type ProviderOpenAI struct {
	APIKey  string
	Model   string
	BaseURL string
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	APIKey     string
	Endpoint   string
	Deployment string
	APIVersion string
}

// ProviderArk holds Volcengine Ark settings.
type ProviderArk struct {
	APIKey  string
	Model   string
	BaseURL string
	Region  string
}

// ProviderGemini holds Gemini settings.
type ProviderGemini struct {
	APIKey string
	Model  string
}

// SharedTuning applies to every backend.
type SharedTuning struct {
	// MaxTokens caps the tokens generated per response.
	MaxTokens int
	// Temperature controls response randomness (0.0 to 1.0).
	Temperature float32
}

// Config selects a backend and carries the settings of each.
type Config struct {
	Backend     Backend
	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Ark         ProviderArk
	Gemini      ProviderGemini
	Tuning      SharedTuning
}

// Enabled reports whether a backend is selected.
func (c *Config) Enabled() bool {
	return c.Backend != BackendNone
}

// Validate checks that the selected backend has what it needs. Error text
// names the environment variable to set.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendNone:
		return ErrDisabled
	case BackendOllama:
		if c.Ollama.Host == "" {
			return missing(c.Backend, "OLLAMA_HOST")
		}
		if c.Ollama.Model == "" {
			return missing(c.Backend, "OLLAMA_MODEL")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return missing(c.Backend, "OPENAI_API_KEY")
		}
		if c.OpenAI.Model == "" {
			return missing(c.Backend, "OPENAI_MODEL")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return missing(c.Backend, "AZURE_OPENAI_API_KEY")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return missing(c.Backend, "AZURE_OPENAI_ENDPOINT")
		}
		if c.AzureOpenAI.Deployment == "" {
			return missing(c.Backend, "AZURE_OPENAI_DEPLOYMENT")
		}
	case BackendArk:
		if c.Ark.APIKey == "" {
			return missing(c.Backend, "ARK_API_KEY")
		}
		if c.Ark.Model == "" {
			return missing(c.Backend, "ARK_MODEL")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return missing(c.Backend, "GOOGLE_API_KEY")
		}
		if c.Gemini.Model == "" {
			return missing(c.Backend, "GEMINI_MODEL")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q (valid values: ollama, openai, azure, ark, gemini)", c.Backend)
	}
	if c.Tuning.Temperature < 0 || c.Tuning.Temperature > 1 {
		return fmt.Errorf("provider: MODEL_TEMPERATURE must be between 0 and 1, got %v", c.Tuning.Temperature)
	}
	return nil
}

// Model returns the model name the selected backend will call.
func (c *Config) Model() string {
	switch c.Backend {
	case BackendOllama:
		return c.Ollama.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendArk:
		return c.Ark.Model
	case BackendGemini:
		return c.Gemini.Model
	}
	return ""
}

func missing(b Backend, env string) error {
	return fmt.Errorf("provider: %s is required for the %s backend", env, b)
}
