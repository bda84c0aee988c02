package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envPrefix namespaces every environment override.
const envPrefix = "RENTDESK_"

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields resolves ${ENV_VAR} references in credential and
// endpoint fields so secrets can stay out of the config file.
func expandSensitiveFields(cfg *Config) {
	cfg.Server.APIKey = expandEnvVars(cfg.Server.APIKey)
	cfg.Model.APIKey = expandEnvVars(cfg.Model.APIKey)
	cfg.Model.Endpoint = expandEnvVars(cfg.Model.Endpoint)
	cfg.Tools.BaseURL = expandEnvVars(cfg.Tools.BaseURL)
	cfg.Session.RedisAddr = expandEnvVars(cfg.Session.RedisAddr)
	cfg.Session.RedisPassword = expandEnvVars(cfg.Session.RedisPassword)
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are skipped and variables that are already set
// win over the file.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return &ConfigError{Message: "failed to load " + f + ": " + err.Error()}
		}
	}
	return nil
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. A .env file next to the config is loaded first. Missing
// files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if err := LoadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			expandSensitiveFields(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields left empty by a partial config file.
func applyDefaults(cfg *Config) {
	d := Defaults()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = d.Server.Bind
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = d.Server.RequestTimeout
	}
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = d.Model.Provider
	}
	if cfg.Model.TimeoutSeconds == 0 {
		cfg.Model.TimeoutSeconds = d.Model.TimeoutSeconds
	}
	if cfg.Tools.Transport == "" {
		cfg.Tools.Transport = d.Tools.Transport
	}
	if cfg.Tools.TimeoutSeconds == 0 {
		cfg.Tools.TimeoutSeconds = d.Tools.TimeoutSeconds
	}
	if cfg.Agent.AssistantName == "" {
		cfg.Agent.AssistantName = d.Agent.AssistantName
	}
	if cfg.Agent.CatalogCap == 0 {
		cfg.Agent.CatalogCap = d.Agent.CatalogCap
	}
	if cfg.Agent.MaxToolCalls == 0 {
		cfg.Agent.MaxToolCalls = d.Agent.MaxToolCalls
	}
	if cfg.Agent.PromptWindow == 0 {
		cfg.Agent.PromptWindow = d.Agent.PromptWindow
	}
	if cfg.Agent.ContextWindow == 0 {
		cfg.Agent.ContextWindow = d.Agent.ContextWindow
	}
	if cfg.Agent.DefaultLanguage == "" {
		cfg.Agent.DefaultLanguage = d.Agent.DefaultLanguage
	}
	if cfg.Agent.ConversationalMaxLen == 0 {
		cfg.Agent.ConversationalMaxLen = d.Agent.ConversationalMaxLen
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = d.Session.Store
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = d.Session.KeyPrefix
	}
	if cfg.Session.DefaultTTLSeconds == 0 {
		cfg.Session.DefaultTTLSeconds = d.Session.DefaultTTLSeconds
	}
	if cfg.History.Store == "" {
		cfg.History.Store = d.History.Store
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = d.Logging.ConsoleStyle
	}
}

// applyEnvOverrides reads RENTDESK_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envPrefix + "SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv(envPrefix + "SERVER_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv(envPrefix + "API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv(envPrefix + "MODEL_PROVIDER"); v != "" {
		cfg.Model.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(envPrefix + "MODEL"); v != "" {
		cfg.Model.Model = v
	}
	if v := os.Getenv(envPrefix + "MODEL_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv(envPrefix + "MODEL_ENDPOINT"); v != "" {
		cfg.Model.Endpoint = v
	}
	if v := os.Getenv(envPrefix + "TOOLS_URL"); v != "" {
		cfg.Tools.BaseURL = v
	}
	if v := os.Getenv(envPrefix + "TOOLS_TRANSPORT"); v != "" {
		cfg.Tools.Transport = strings.ToLower(v)
	}
	if v := os.Getenv(envPrefix + "REDIS_ADDR"); v != "" {
		cfg.Session.RedisAddr = v
		cfg.Session.Store = "redis"
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
