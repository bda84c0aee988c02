package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/rentdesk/internal/llm"
	"github.com/soyeahso/rentdesk/internal/logging"
	"github.com/soyeahso/rentdesk/internal/metrics"
)

// Model call stages, used as the metrics stage label.
const (
	stageConversational = "conversational"
	stageDecide         = "decide"
	stageRetry          = "retry"
	stageSummarize      = "summarize"
)

// modelCaller resolves the configured model and makes bounded calls to it.
// There is no provider failover: a failed call surfaces as an error.
type modelCaller struct {
	registry    *llm.Registry
	model       string
	maxTokens   int
	temperature *float64
	timeout     time.Duration
	metrics     *metrics.Metrics
	log         *logging.Logger
}

func (m *modelCaller) complete(ctx context.Context, stage, system string, msgs []llm.Message) (string, error) {
	client, err := m.registry.Resolve(m.model)
	if err != nil {
		return "", err
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := client.Complete(ctx, llm.CompletionRequest{
		Model:       m.model,
		System:      system,
		Messages:    msgs,
		MaxTokens:   m.maxTokens,
		Temperature: m.temperature,
	})
	elapsed := time.Since(start)
	m.metrics.ObserveModel(client.Name(), stage, elapsed, err)
	if err != nil {
		return "", fmt.Errorf("model %s call: %w", stage, err)
	}

	m.log.Debug().
		Str("stage", stage).
		Str("provider", client.Name()).
		Int("inputTokens", resp.Usage.InputTokens).
		Int("outputTokens", resp.Usage.OutputTokens).
		Dur("duration", elapsed).
		Msg("model call complete")
	return resp.Content, nil
}
