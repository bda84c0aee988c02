package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           8787,
			Bind:           "loopback",
			RequestTimeout: 120,
		},
		Model: ModelConfig{
			Provider:       "ollama",
			Model:          "llama3.1",
			TimeoutSeconds: 60,
		},
		Tools: ToolsConfig{
			Transport:         "http",
			BaseURL:           "http://localhost:3001",
			TimeoutSeconds:    30,
			CatalogTTLSeconds: 60,
		},
		Agent: AgentConfig{
			AssistantName:        "Rentdesk",
			CatalogCap:           15,
			MaxToolCalls:         5,
			PromptWindow:         6,
			ContextWindow:        10,
			DefaultLanguage:      "en",
			ConversationalMaxLen: 40,
		},
		Session: SessionConfig{
			Store:             "memory",
			KeyPrefix:         "rentdesk:session:",
			DefaultTTLSeconds: 3600,
			SweepSchedule:     "@every 5m",
		},
		History: HistoryConfig{
			Store: "memory",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
