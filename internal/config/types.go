package config

// Config is the root configuration for rentdesk.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Model   ModelConfig   `yaml:"model,omitempty"`
	Tools   ToolsConfig   `yaml:"tools,omitempty"`
	Agent   AgentConfig   `yaml:"agent,omitempty"`
	Session SessionConfig `yaml:"session,omitempty"`
	History HistoryConfig `yaml:"history,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket API.
type ServerConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty"`
	APIKey         string   `yaml:"apiKey,omitempty"` // optional shared key for /api routes
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
	RequestTimeout int      `yaml:"requestTimeoutSeconds,omitempty"`
}

// ModelConfig selects the single model backend.
type ModelConfig struct {
	Provider       string   `yaml:"provider,omitempty"` // "ollama" | "openai" | "anthropic" | "gemini"
	Model          string   `yaml:"model,omitempty"`
	APIKey         string   `yaml:"apiKey,omitempty"`
	Endpoint       string   `yaml:"endpoint,omitempty"`
	MaxTokens      int      `yaml:"maxTokens,omitempty"`
	Temperature    *float64 `yaml:"temperature,omitempty"`
	TimeoutSeconds int      `yaml:"timeoutSeconds,omitempty"`
	Aliases        []string `yaml:"aliases,omitempty"`
}

// ToolsConfig points at the tool backend.
type ToolsConfig struct {
	Transport         string `yaml:"transport,omitempty"` // "http" | "mcp"
	BaseURL           string `yaml:"baseUrl,omitempty"`
	TimeoutSeconds    int    `yaml:"timeoutSeconds,omitempty"`
	CatalogTTLSeconds int    `yaml:"catalogTtlSeconds,omitempty"`
	ValidateArgs      *bool  `yaml:"validateArgs,omitempty"`
}

// AgentConfig bounds the orchestrator.
type AgentConfig struct {
	AssistantName        string `yaml:"assistantName,omitempty"`
	CatalogCap           int    `yaml:"catalogCap,omitempty"`
	MaxToolCalls         int    `yaml:"maxToolCalls,omitempty"`
	PromptWindow         int    `yaml:"promptWindow,omitempty"`
	ContextWindow        int    `yaml:"contextWindow,omitempty"`
	DefaultLanguage      string `yaml:"defaultLanguage,omitempty"` // "en" | "vi"
	ConversationalMaxLen int    `yaml:"conversationalMaxLen,omitempty"`
	ExtraPrompt          string `yaml:"extraPrompt,omitempty"`
}

// SessionConfig selects the session context store.
type SessionConfig struct {
	Store             string `yaml:"store,omitempty"` // "memory" | "redis"
	RedisAddr         string `yaml:"redisAddr,omitempty"`
	RedisPassword     string `yaml:"redisPassword,omitempty"`
	RedisDB           int    `yaml:"redisDb,omitempty"`
	KeyPrefix         string `yaml:"keyPrefix,omitempty"`
	DefaultTTLSeconds int    `yaml:"defaultTtlSeconds,omitempty"`
	SweepSchedule     string `yaml:"sweepSchedule,omitempty"` // robfig/cron spec, "" disables
}

// HistoryConfig selects the conversation history store.
type HistoryConfig struct {
	Store string `yaml:"store,omitempty"` // "memory" | "sqlite"
	Path  string `yaml:"path,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// ArgValidation reports whether extracted tool arguments are schema-checked.
func (t ToolsConfig) ArgValidation() bool {
	return t.ValidateArgs == nil || *t.ValidateArgs
}
