package config

import (
	"fmt"

	"github.com/jonathan/cv-adaptor/internal/llm"
	"github.com/jonathan/cv-adaptor/internal/pipeline"
)

// PipelineSettings maps the workflow section onto orchestrator settings.
func (c *Config) PipelineSettings() pipeline.Settings {
	return pipeline.Settings{
		HighScoreThreshold:   c.Workflow.HighScoreThreshold,
		MinRelevanceScore:    c.Workflow.MinRelevanceScore,
		MaxQAIterations:      c.Workflow.MaxQAIterations,
		EnableSelfCorrection: c.Workflow.EnableSelfCorrection,
	}
}

// RegistryConfig maps the llm section onto per-role client configuration.
func (c *Config) RegistryConfig() (llm.RegistryConfig, error) {
	base, err := llm.DefaultConfigFor(llm.Provider(c.LLM.Provider))
	if err != nil {
		return llm.RegistryConfig{}, fmt.Errorf("config error: %w", err)
	}
	for tier, model := range c.LLM.Models {
		base = base.WithModel(llm.ModelTier(tier), model)
	}
	base.Temperature = c.LLM.Temperature
	base.MaxTokens = c.LLM.MaxTokens

	agents := make(map[llm.Role]llm.AgentOverride, len(c.LLM.Agents))
	for role, agent := range c.LLM.Agents {
		agents[llm.Role(role)] = llm.AgentOverride{
			Provider: llm.Provider(agent.Provider),
			Model:    agent.Model,
		}
	}

	keys := map[llm.Provider]string{}
	if c.LLM.GeminiAPIKey != "" {
		keys[llm.ProviderGemini] = c.LLM.GeminiAPIKey
	}
	if c.LLM.AnthropicAPIKey != "" {
		keys[llm.ProviderAnthropic] = c.LLM.AnthropicAPIKey
	}

	return llm.RegistryConfig{Default: base, Agents: agents, APIKeys: keys}, nil
}
