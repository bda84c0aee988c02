package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/rentdesk/internal/config"
	"github.com/soyeahso/rentdesk/internal/logging"
)

// ProviderError is returned when a model provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP-like status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Registry manages provider clients and resolves model references to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // model alias → provider name
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered model provider")
}

// Alias maps a model name/alias to a provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// SetFallback sets the default provider used when no model/provider match is found.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Resolve returns the Client for the given model reference.
// Resolution order: exact provider name → alias → fallback.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[model]; ok {
		return c, nil
	}
	if provider, ok := r.aliases[model]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, nil
		}
	}
	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no model provider for %q", model)
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	return names
}

// NewRegistryFromConfig builds a Registry holding the single configured
// provider, set as the fallback and aliased by the model name and any
// configured aliases.
func NewRegistryFromConfig(ctx context.Context, cfg config.ModelConfig, log *logging.Logger) (*Registry, error) {
	reg := NewRegistry(log)
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	var client Client
	switch cfg.Provider {
	case "", "ollama":
		client = NewOllamaClient(cfg.Endpoint, cfg.Model, timeout)
	case "openai":
		client = NewOpenAIClient(cfg.APIKey, cfg.Endpoint, cfg.Model, log)
	case "anthropic":
		client = NewAnthropicClient(cfg.APIKey, cfg.Endpoint, cfg.Model, log)
	case "gemini":
		gc, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, log)
		if err != nil {
			return nil, err
		}
		client = gc
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}

	name := client.Name()
	reg.Register(name, client)
	reg.SetFallback(name)
	if cfg.Model != "" {
		reg.Alias(cfg.Model, name)
	}
	for _, a := range cfg.Aliases {
		reg.Alias(a, name)
	}
	return reg, nil
}
