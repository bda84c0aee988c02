package llm

import (
	"context"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/soyeahso/rentdesk/internal/logging"
	"github.com/soyeahso/rentdesk/internal/version"
)

// OpenAIClient calls the Chat Completions API. Setting an endpoint points it
// at any OpenAI-compatible server (vLLM, LM Studio, llama.cpp).
type OpenAIClient struct {
	client openai.Client
	model  string
	log    *logging.Logger
}

// NewOpenAIClient creates a client for the given key, optional base URL and model.
func NewOpenAIClient(apiKey, endpoint, model string, log *logging.Logger) *OpenAIClient {
	opts := []option.RequestOption{option.WithHeader("User-Agent", version.UserAgent())}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if endpoint != "" {
		opts = append(opts, option.WithBaseURL(endpoint))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
		log:    log.Sub("llm.openai"),
	}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return "openai" }

// Complete sends one chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &ProviderError{Provider: c.Name(), Message: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: c.Name(), Message: "no response choices returned"}
	}

	choice := resp.Choices[0]
	c.log.Debug().
		Str("model", resp.Model).
		Int64("inputTokens", resp.Usage.PromptTokens).
		Int64("outputTokens", resp.Usage.CompletionTokens).
		Msg("completion received")

	return &CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Model:      resp.Model,
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
		Duration: time.Since(start),
	}, nil
}
