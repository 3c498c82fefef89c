// Package llm provides the text-generation capability used by every pipeline step.
// Steps depend on the Client interface; provider and model selection stays inside this package.
package llm

import "fmt"

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks: classification, basic summarization
	TierLite ModelTier = "lite"
	// TierStandard is for moderate reasoning: parsing, scoring, validation
	TierStandard ModelTier = "standard"
	// TierAdvanced is for complex reasoning: rewriting, analysis
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
	// ProviderAnthropic is the Anthropic/Claude provider
	ProviderAnthropic Provider = "anthropic"
)

// DefaultTemperature is used when a configuration leaves temperature unset
const DefaultTemperature float32 = 0.7

// Config holds the model configuration for one provider
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	Temperature float32
	MaxTokens   int // 0 leaves the provider default
}

// DefaultConfig returns the default configuration (Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperature: DefaultTemperature,
	}
}

// DefaultAnthropicConfig returns the default Anthropic configuration
func DefaultAnthropicConfig() *Config {
	return &Config{
		Provider: ProviderAnthropic,
		Models: map[ModelTier]string{
			TierLite:     "claude-3-5-haiku-latest",
			TierStandard: "claude-3-7-sonnet-latest",
			TierAdvanced: "claude-sonnet-4-0",
		},
		Temperature: DefaultTemperature,
	}
}

// DefaultConfigFor returns the default configuration for a provider
func DefaultConfigFor(provider Provider) (*Config, error) {
	switch provider {
	case ProviderGemini, "":
		return DefaultGeminiConfig(), nil
	case ProviderAnthropic:
		return DefaultAnthropicConfig(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Provider:    c.Provider,
		Models:      make(map[ModelTier]string, len(c.Models)+1),
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}

// Options controls a single generation call
type Options struct {
	Tier            ModelTier
	Temperature     float32
	MaxOutputTokens int
	JSON            bool // ask the provider for a JSON response when it supports it
}

// withDefaults fills unset option values from the config
func (c *Config) withDefaults(opts Options) Options {
	if opts.Tier == "" {
		opts.Tier = TierStandard
	}
	if opts.Temperature == 0 {
		opts.Temperature = c.Temperature
	}
	if opts.MaxOutputTokens == 0 {
		opts.MaxOutputTokens = c.MaxTokens
	}
	return opts
}
