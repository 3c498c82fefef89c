// Package config loads and validates runtime configuration.
package config

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. CV_ADAPTOR_WORKFLOW_MAX_QA_ITERATIONS.
const EnvPrefix = "CV_ADAPTOR"

// Config is the full runtime configuration.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Facts    FactsConfig    `mapstructure:"facts"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// LLMConfig selects the generation provider and models.
type LLMConfig struct {
	Provider        string                 `mapstructure:"provider" validate:"oneof=gemini anthropic"`
	Models          map[string]string      `mapstructure:"models" validate:"omitempty,dive,keys,oneof=lite standard advanced,endkeys,required"`
	Temperature     float32                `mapstructure:"temperature" validate:"gte=0,lte=1"`
	MaxTokens       int                    `mapstructure:"max_tokens" validate:"gte=0"`
	Agents          map[string]AgentConfig `mapstructure:"agents" validate:"omitempty,dive,keys,oneof=parser scoring rewriter qa,endkeys"`
	GeminiAPIKey    string                 `mapstructure:"gemini_api_key"`
	AnthropicAPIKey string                 `mapstructure:"anthropic_api_key"`
}

// AgentConfig pins one step to a provider and model.
type AgentConfig struct {
	Provider string `mapstructure:"provider" validate:"omitempty,oneof=gemini anthropic"`
	Model    string `mapstructure:"model"`
}

// WorkflowConfig holds the routing thresholds and loop bounds.
type WorkflowConfig struct {
	HighScoreThreshold   float64 `mapstructure:"high_score_threshold" validate:"gte=0,lte=100"`
	MinRelevanceScore    float64 `mapstructure:"min_relevance_score" validate:"gte=0,lte=100,ltefield=HighScoreThreshold"`
	MaxQAIterations      int     `mapstructure:"max_qa_iterations" validate:"gte=1"`
	EnableSelfCorrection bool    `mapstructure:"enable_self_correction"`
	ExtractionAttempts   int     `mapstructure:"extraction_attempts" validate:"gte=1,lte=10"`
}

// FactsConfig configures the per-run fact index.
type FactsConfig struct {
	TopK           int    `mapstructure:"top_k" validate:"gte=1"`
	Embedder       string `mapstructure:"embedder" validate:"oneof=hash gemini"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	Dimensions     int    `mapstructure:"dimensions" validate:"gte=8"`
}

// FetchConfig configures job posting retrieval.
type FetchConfig struct {
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	UseBrowser     bool          `mapstructure:"use_browser"`
	BrowserTimeout time.Duration `mapstructure:"browser_timeout" validate:"gt=0"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int             `mapstructure:"port" validate:"gte=1,lte=65535"`
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout" validate:"gt=0"`
	Auth           AuthConfig      `mapstructure:"auth"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// AuthConfig enables bearer-token auth when JWTSecret is set.
type AuthConfig struct {
	JWTSecret       string `mapstructure:"jwt_secret" validate:"omitempty,min=16"`
	ExpirationHours int    `mapstructure:"expiration_hours" validate:"gte=1"`
}

// Enabled reports whether requests must carry a token.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// RateLimitConfig is a per-client token bucket. Zero RPS disables limiting.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" validate:"gte=0"`
	Burst int     `mapstructure:"burst" validate:"gte=0"`
}

// DatabaseConfig enables run persistence when URL is set.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// LogConfig selects the log encoder and level.
type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// SetDefaults registers every key with its default so env overrides resolve.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.anthropic_api_key", "")

	v.SetDefault("workflow.high_score_threshold", 95.0)
	v.SetDefault("workflow.min_relevance_score", 50.0)
	v.SetDefault("workflow.max_qa_iterations", 2)
	v.SetDefault("workflow.enable_self_correction", true)
	v.SetDefault("workflow.extraction_attempts", 3)

	v.SetDefault("facts.top_k", 5)
	v.SetDefault("facts.embedder", "hash")
	v.SetDefault("facts.embedding_model", "text-embedding-004")
	v.SetDefault("facts.dimensions", 256)

	v.SetDefault("fetch.timeout", 10*time.Second)
	v.SetDefault("fetch.use_browser", false)
	v.SetDefault("fetch.browser_timeout", 30*time.Second)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.request_timeout", 3*time.Minute)
	v.SetDefault("server.auth.jwt_secret", "")
	v.SetDefault("server.auth.expiration_hours", 24)
	v.SetDefault("server.rate_limit.rps", 1.0)
	v.SetDefault("server.rate_limit.burst", 5)

	v.SetDefault("database.url", "")
	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)
}

// Load reads configuration into v from defaults, an optional file at path and
// the environment. Flags bound to v by the caller take precedence over all three.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{
		"llm.gemini_api_key":     "GEMINI_API_KEY",
		"llm.anthropic_api_key":  "ANTHROPIC_API_KEY",
		"database.url":           "DATABASE_URL",
		"server.auth.jwt_secret": "JWT_SECRET",
	} {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value ranges and cross-field constraints.
func (c *Config) Validate() error {
	var msgs []string
	if err := collect(validate.Struct(c), "Config.", "", &msgs); err != nil {
		return err
	}

	// map values are not reached by dive when the key is validated
	roles := make([]string, 0, len(c.LLM.Agents))
	for role := range c.LLM.Agents {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		prefix := fmt.Sprintf("LLM.Agents[%s].", role)
		if err := collect(validate.Struct(c.LLM.Agents[role]), "AgentConfig.", prefix, &msgs); err != nil {
			return err
		}
	}

	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("config error: %s", strings.Join(msgs, "; "))
}

// collect appends one message per field error of err. Non-field errors are returned.
func collect(err error, trim, prefix string, msgs *[]string) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("config error: %w", err)
	}
	for _, fe := range fieldErrs {
		msg := describe(prefix+strings.TrimPrefix(fe.Namespace(), trim), fe)
		if !slices.Contains(*msgs, msg) {
			*msgs = append(*msgs, msg)
		}
	}
	return nil
}

func describe(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "gte", "lte", "gt", "min":
		return fmt.Sprintf("%s failed %s=%s, got %v", field, fe.Tag(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
