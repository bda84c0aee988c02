package config

import (
	"fmt"
	"slices"

	"github.com/robfig/cron/v3"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Providers lists the supported model backends.
var Providers = []string{"ollama", "openai", "anthropic", "gemini"}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}
	oneOf := func(path, value string, valid []string) {
		if value != "" && !slices.Contains(valid, value) {
			add(path, "must be one of %v, got %q", valid, value)
		}
	}

	// Server
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		add("server.port", "port must be 0-65535, got %d", cfg.Server.Port)
	}
	oneOf("server.bind", cfg.Server.Bind, []string{"loopback", "lan", "custom"})
	if cfg.Server.Bind == "custom" && cfg.Server.CustomBindHost == "" {
		add("server.customBindHost", "required when bind is custom")
	}

	// Model
	oneOf("model.provider", cfg.Model.Provider, Providers)
	if cfg.Model.Model == "" {
		add("model.model", "model name is required")
	}
	switch cfg.Model.Provider {
	case "anthropic", "gemini":
		if cfg.Model.APIKey == "" {
			add("model.apiKey", "required for provider %s", cfg.Model.Provider)
		}
	case "openai":
		if cfg.Model.APIKey == "" && cfg.Model.Endpoint == "" {
			add("model.apiKey", "required for provider openai unless endpoint is set")
		}
	}
	if t := cfg.Model.Temperature; t != nil && (*t < 0 || *t > 2) {
		add("model.temperature", "must be between 0 and 2, got %v", *t)
	}
	if cfg.Model.TimeoutSeconds < 0 {
		add("model.timeoutSeconds", "must not be negative")
	}

	// Tools
	oneOf("tools.transport", cfg.Tools.Transport, []string{"http", "mcp"})
	if cfg.Tools.BaseURL == "" {
		add("tools.baseUrl", "tool backend URL is required")
	}
	if cfg.Tools.TimeoutSeconds < 0 {
		add("tools.timeoutSeconds", "must not be negative")
	}

	// Agent
	if cfg.Agent.CatalogCap < 1 {
		add("agent.catalogCap", "must be at least 1, got %d", cfg.Agent.CatalogCap)
	}
	if cfg.Agent.MaxToolCalls < 1 {
		add("agent.maxToolCalls", "must be at least 1, got %d", cfg.Agent.MaxToolCalls)
	}
	if cfg.Agent.PromptWindow < 0 {
		add("agent.promptWindow", "must not be negative")
	}
	if cfg.Agent.ContextWindow < cfg.Agent.PromptWindow {
		add("agent.contextWindow", "must be at least promptWindow (%d)", cfg.Agent.PromptWindow)
	}
	oneOf("agent.defaultLanguage", cfg.Agent.DefaultLanguage, []string{"en", "vi"})

	// Session
	oneOf("session.store", cfg.Session.Store, []string{"memory", "redis"})
	if cfg.Session.Store == "redis" && cfg.Session.RedisAddr == "" {
		add("session.redisAddr", "required when store is redis")
	}
	if cfg.Session.DefaultTTLSeconds < 0 {
		add("session.defaultTtlSeconds", "must not be negative")
	}
	if cfg.Session.SweepSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Session.SweepSchedule); err != nil {
			add("session.sweepSchedule", "invalid schedule: %v", err)
		}
	}

	// History
	oneOf("history.store", cfg.History.Store, []string{"memory", "sqlite"})

	// Logging
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	oneOf("logging.level", cfg.Logging.Level, validLogLevels)
	oneOf("logging.consoleStyle", cfg.Logging.ConsoleStyle, []string{"pretty", "compact", "json"})

	return issues
}
