package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Role identifies the pipeline step a client serves
type Role string

// Roles with independently configurable models
const (
	RoleParser   Role = "parser"
	RoleScoring  Role = "scoring"
	RoleRewriter Role = "rewriter" // also serves the analysis step
	RoleQA       Role = "qa"
)

// AgentOverride pins a role to a provider and model
type AgentOverride struct {
	Provider Provider
	Model    string
}

// RegistryConfig configures a Registry
type RegistryConfig struct {
	Default *Config
	Agents  map[Role]AgentOverride
	APIKeys map[Provider]string
}

// Registry builds one Client per distinct (provider, model set) and hands them out by role
type Registry struct {
	cfg       RegistryConfig
	newClient func(ctx context.Context, config *Config, apiKey string) (Client, error)

	mu      sync.Mutex
	clients map[string]Client
}

// NewRegistry creates a registry that lazily constructs clients
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Default == nil {
		cfg.Default = DefaultConfig()
	}
	return &Registry{
		cfg:       cfg,
		newClient: NewClient,
		clients:   make(map[string]Client),
	}
}

// ConfigFor resolves the effective configuration for a role
func (r *Registry) ConfigFor(role Role) (*Config, error) {
	override, ok := r.cfg.Agents[role]
	if !ok || (override.Provider == "" && override.Model == "") {
		return r.cfg.Default, nil
	}

	provider := override.Provider
	if provider == "" {
		provider = r.cfg.Default.Provider
	}

	var base *Config
	if provider == r.cfg.Default.Provider {
		base = r.cfg.Default
	} else {
		var err error
		base, err = DefaultConfigFor(provider)
		if err != nil {
			return nil, fmt.Errorf("role %s: %w", role, err)
		}
		base.Temperature = r.cfg.Default.Temperature
		base.MaxTokens = r.cfg.Default.MaxTokens
	}

	if override.Model == "" {
		return base, nil
	}

	pinned := base.WithModel(TierLite, override.Model).
		WithModel(TierStandard, override.Model).
		WithModel(TierAdvanced, override.Model)
	return pinned, nil
}

// For returns the client serving a role, creating it on first use
func (r *Registry) For(ctx context.Context, role Role) (Client, error) {
	config, err := r.ConfigFor(role)
	if err != nil {
		return nil, err
	}

	key := cacheKey(config)

	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[key]; ok {
		return client, nil
	}

	client, err := r.newClient(ctx, config, r.cfg.APIKeys[config.Provider])
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client for role %s: %w", config.Provider, role, err)
	}
	r.clients[key] = client
	return client, nil
}

// Close releases every client created by the registry
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for key, client := range r.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.clients, key)
	}
	return errors.Join(errs...)
}

func cacheKey(c *Config) string {
	return fmt.Sprintf("%s|%s|%s|%s", c.Provider, c.Models[TierLite], c.Models[TierStandard], c.Models[TierAdvanced])
}
