package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/soyeahso/rentdesk/internal/logging"
	"google.golang.org/api/option"
)

// GeminiClient calls Google's Gemini models through the generative-ai SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
	log    *logging.Logger
}

// NewGeminiClient connects a Gemini client with an API key.
func NewGeminiClient(ctx context.Context, apiKey, model string, log *logging.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model, log: log.Sub("llm.gemini")}, nil
}

// Name returns the provider name.
func (c *GeminiClient) Name() string { return "gemini" }

// Close releases the underlying connection.
func (c *GeminiClient) Close() error { return c.client.Close() }

// Complete replays the earlier turns as chat history and sends the final
// user message.
func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	if len(req.Messages) == 0 {
		return nil, &ProviderError{Provider: c.Name(), Message: "no messages to send"}
	}

	modelID := c.model
	if req.Model != "" {
		modelID = req.Model
	}
	model := c.client.GenerativeModel(modelID)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.Temperature != nil {
		model.SetTemperature(float32(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	last := req.Messages[len(req.Messages)-1]
	cs := model.StartChat()
	cs.History = geminiHistory(req.Messages[:len(req.Messages)-1])

	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return nil, &ProviderError{Provider: c.Name(), Message: err.Error()}
	}

	out := &CompletionResponse{Model: modelID, Duration: time.Since(start)}
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		var b strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				b.WriteString(string(txt))
			}
		}
		out.Content = b.String()
		out.StopReason = resp.Candidates[0].FinishReason.String()
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

// geminiHistory maps turns to Gemini's "user"/"model" roles.
func geminiHistory(msgs []Message) []*genai.Content {
	history := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return history
}
