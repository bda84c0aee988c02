package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Issues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"port range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bind", func(c *Config) { c.Server.Bind = "tailnet" }, "server.bind"},
		{"custom bind host", func(c *Config) { c.Server.Bind = "custom" }, "server.customBindHost"},
		{"provider", func(c *Config) { c.Model.Provider = "bard" }, "model.provider"},
		{"model name", func(c *Config) { c.Model.Model = "" }, "model.model"},
		{"anthropic key", func(c *Config) { c.Model.Provider = "anthropic" }, "model.apiKey"},
		{"openai key", func(c *Config) { c.Model.Provider = "openai" }, "model.apiKey"},
		{"temperature", func(c *Config) { v := 3.0; c.Model.Temperature = &v }, "model.temperature"},
		{"transport", func(c *Config) { c.Tools.Transport = "grpc" }, "tools.transport"},
		{"tools url", func(c *Config) { c.Tools.BaseURL = "" }, "tools.baseUrl"},
		{"catalog cap", func(c *Config) { c.Agent.CatalogCap = 0 }, "agent.catalogCap"},
		{"max tool calls", func(c *Config) { c.Agent.MaxToolCalls = 0 }, "agent.maxToolCalls"},
		{"context window", func(c *Config) { c.Agent.ContextWindow = 2 }, "agent.contextWindow"},
		{"language", func(c *Config) { c.Agent.DefaultLanguage = "fr" }, "agent.defaultLanguage"},
		{"redis addr", func(c *Config) { c.Session.Store = "redis" }, "session.redisAddr"},
		{"sweep schedule", func(c *Config) { c.Session.SweepSchedule = "every now and then" }, "session.sweepSchedule"},
		{"history store", func(c *Config) { c.History.Store = "postgres" }, "history.store"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"console style", func(c *Config) { c.Logging.ConsoleStyle = "fancy" }, "logging.consoleStyle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			issues := Validate(&cfg)
			require.Len(t, issues, 1, "issues: %v", issues)
			assert.Equal(t, tt.path, issues[0].Path)
		})
	}
}

func TestValidate_OpenAIWithEndpoint(t *testing.T) {
	cfg := Defaults()
	cfg.Model.Provider = "openai"
	cfg.Model.Endpoint = "http://localhost:8000/v1"
	assert.Empty(t, Validate(&cfg))
}

func TestValidationIssueString(t *testing.T) {
	v := ValidationIssue{Path: "server.port", Message: "bad"}
	assert.Equal(t, "server.port: bad", v.String())
}
