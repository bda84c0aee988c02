// Package agent runs one chat turn end to end: small-talk detection, catalog
// filtering, the model's tool decision, bounded tool execution and a
// localized summary.
package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/soyeahso/rentdesk/internal/catalog"
	"github.com/soyeahso/rentdesk/internal/config"
	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/soyeahso/rentdesk/internal/hooks"
	"github.com/soyeahso/rentdesk/internal/llm"
	"github.com/soyeahso/rentdesk/internal/logging"
	"github.com/soyeahso/rentdesk/internal/metrics"
	"github.com/soyeahso/rentdesk/internal/session"
	"github.com/soyeahso/rentdesk/internal/toolcall"
	"github.com/soyeahso/rentdesk/internal/tools"
)

// Defaults for Config fields left at zero.
const (
	DefaultMaxToolCalls = 5
	DefaultPromptWindow = 6
)

// ErrEmptyMessage is returned for a request without a message.
var ErrEmptyMessage = errors.New("message is required")

// Config bounds one orchestration pass.
type Config struct {
	AssistantName        string
	Model                string
	MaxTokens            int
	Temperature          *float64
	ModelTimeout         time.Duration
	MaxToolCalls         int
	PromptWindow         int
	ContextWindow        int
	DefaultLanguage      string
	ConversationalMaxLen int
	ExtraPrompt          string
}

// ConfigFrom maps the file configuration onto orchestrator settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		AssistantName:        cfg.Agent.AssistantName,
		Model:                cfg.Model.Model,
		MaxTokens:            cfg.Model.MaxTokens,
		Temperature:          cfg.Model.Temperature,
		ModelTimeout:         time.Duration(cfg.Model.TimeoutSeconds) * time.Second,
		MaxToolCalls:         cfg.Agent.MaxToolCalls,
		PromptWindow:         cfg.Agent.PromptWindow,
		ContextWindow:        cfg.Agent.ContextWindow,
		DefaultLanguage:      cfg.Agent.DefaultLanguage,
		ConversationalMaxLen: cfg.Agent.ConversationalMaxLen,
		ExtraPrompt:          cfg.Agent.ExtraPrompt,
	}
}

func (c *Config) applyDefaults() {
	if c.MaxToolCalls <= 0 {
		c.MaxToolCalls = DefaultMaxToolCalls
	}
	if c.ContextWindow <= 0 {
		c.ContextWindow = DefaultContextWindow
	}
	if c.PromptWindow <= 0 {
		c.PromptWindow = DefaultPromptWindow
	}
	c.PromptWindow = min(c.PromptWindow, c.ContextWindow)
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = LangEnglish
	}
}

// CatalogSource lists the full tool catalog.
type CatalogSource interface {
	Tools(ctx context.Context) ([]domain.ToolDescriptor, error)
}

// Invoker executes one tool call. Failures come back as a tools.Failure payload.
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]any, auth tools.Auth) any
}

// Deps are the collaborators of an Orchestrator. Hooks and Metrics may be nil.
type Deps struct {
	Registry *llm.Registry
	Catalog  CatalogSource
	Filter   *catalog.Filter
	Invoker  Invoker
	Sessions session.Store
	History  HistoryStore
	Hooks    *hooks.Manager
	Metrics  *metrics.Metrics
}

// Orchestrator answers chat requests. It holds no per-session state; history
// lives in the HistoryStore and auth in the session store.
type Orchestrator struct {
	cfg      Config
	model    *modelCaller
	catalog  CatalogSource
	filter   *catalog.Filter
	invoker  Invoker
	sessions session.Store
	history  HistoryStore
	hooks    *hooks.Manager
	metrics  *metrics.Metrics
	log      *logging.Logger
	now      func() time.Time
}

// New creates an orchestrator.
func New(cfg Config, deps Deps, log *logging.Logger) *Orchestrator {
	cfg.applyDefaults()
	alog := log.Sub("agent")
	filter := deps.Filter
	if filter == nil {
		filter = catalog.NewFilter(catalog.DefaultCap, log)
	}
	history := deps.History
	if history == nil {
		history = NewMemoryHistory()
	}
	return &Orchestrator{
		cfg: cfg,
		model: &modelCaller{
			registry:    deps.Registry,
			model:       cfg.Model,
			maxTokens:   cfg.MaxTokens,
			temperature: cfg.Temperature,
			timeout:     cfg.ModelTimeout,
			metrics:     deps.Metrics,
			log:         alog,
		},
		catalog:  deps.Catalog,
		filter:   filter,
		invoker:  deps.Invoker,
		sessions: deps.Sessions,
		history:  history,
		hooks:    deps.Hooks,
		metrics:  deps.Metrics,
		log:      alog,
		now:      time.Now,
	}
}

// History returns the history store.
func (o *Orchestrator) History() HistoryStore { return o.history }

// turn is the in-progress state of one Chat call.
type turn struct {
	req     domain.ChatRequest
	sc      domain.SessionContext
	lang    string
	history []domain.ConversationTurn
	resp    *domain.ChatResponse
}

// Chat runs one orchestration pass. It never returns an error: failures
// produce Success=false with a localized apology, and the turn is not
// recorded.
func (o *Orchestrator) Chat(ctx context.Context, req domain.ChatRequest) domain.ChatResponse {
	start := o.now()
	sessionID := domain.ResolveSessionID(req.SessionID)
	sc := o.sessionContext(ctx, sessionID)
	lang := DetectLanguage(req.Message, o.cfg.DefaultLanguage)

	resp := domain.ChatResponse{
		ToolsCalled:     []string{},
		ToolResults:     []domain.ToolInvocationResult{},
		UserID:          req.UserID,
		SessionID:       sessionID,
		IsAuthenticated: sc.IsAuthenticated,
	}
	if resp.UserID == "" {
		resp.UserID = sc.UserID
	}

	log := o.log.With("sessionId", sessionID)
	o.hooks.Emit(ctx, hooks.EventMessageReceived, map[string]any{
		"sessionId":     sessionID,
		"authenticated": sc.IsAuthenticated,
		"length":        len(req.Message),
	})

	t := &turn{req: req, sc: sc, lang: lang, resp: &resp}
	answer, path, err := o.run(ctx, t)
	resp.Timestamp = o.now()
	if err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("chat failed")
		resp.Success = false
		resp.Error = err.Error()
		resp.Response = textsFor(lang).Apology
		o.metrics.ObserveChat(metrics.PathError, time.Since(start))
		o.hooks.Emit(ctx, hooks.EventResponseSent, map[string]any{"sessionId": sessionID, "success": false})
		return resp
	}

	resp.Success = true
	resp.Response = answer
	if err := o.record(ctx, sessionID, req.Message, answer, resp.ToolsCalled, start, resp.Timestamp); err != nil {
		log.Warn().Err(err).Msg("failed to record conversation turn")
	}

	log.Info().
		Str("path", path).
		Strs("toolsCalled", resp.ToolsCalled).
		Bool("authenticated", sc.IsAuthenticated).
		Dur("duration", time.Since(start)).
		Msg("chat answered")
	o.metrics.ObserveChat(path, time.Since(start))
	o.hooks.Emit(ctx, hooks.EventResponseSent, map[string]any{
		"sessionId":   sessionID,
		"success":     true,
		"path":        path,
		"toolsCalled": resp.ToolsCalled,
	})
	return resp
}

func (o *Orchestrator) sessionContext(ctx context.Context, sessionID string) domain.SessionContext {
	if o.sessions == nil {
		return domain.Anonymous(sessionID)
	}
	return o.sessions.GetSessionContext(ctx, sessionID)
}

func (o *Orchestrator) run(ctx context.Context, t *turn) (string, string, error) {
	if strings.TrimSpace(t.req.Message) == "" {
		return "", "", ErrEmptyMessage
	}

	history, err := o.history.Recent(ctx, t.resp.SessionID, o.cfg.ContextWindow)
	if err != nil {
		return "", "", err
	}
	t.history = history

	if IsConversational(t.req.Message, o.cfg.ConversationalMaxLen) {
		answer, err := o.converse(ctx, t)
		return answer, metrics.PathConversational, err
	}

	selected := o.selectTools(ctx, t)

	text, calls, err := o.decide(ctx, t, selected)
	if err != nil {
		return "", "", err
	}
	if len(calls) == 0 {
		answer := toolcall.Clean(text)
		if answer == "" {
			answer = textsFor(t.lang).NoAnswer
		}
		return answer, metrics.PathDirect, nil
	}

	if err := o.execute(ctx, t, calls); err != nil {
		return "", "", err
	}

	answer, err := o.summarize(ctx, t)
	return answer, metrics.PathTools, err
}

// converse answers small talk with one model call and no catalog.
func (o *Orchestrator) converse(ctx context.Context, t *turn) (string, error) {
	msgs := o.promptMessages(t)
	text, err := o.model.complete(ctx, stageConversational, conversationalPrompt(o.cfg.AssistantName, t.lang), msgs)
	if err != nil {
		return "", err
	}
	if answer := toolcall.Clean(text); answer != "" {
		return answer, nil
	}
	return textsFor(t.lang).Greeting, nil
}

// selectTools fetches and filters the catalog. A failed listing is treated
// as an empty catalog.
func (o *Orchestrator) selectTools(ctx context.Context, t *turn) []domain.ToolDescriptor {
	var all []domain.ToolDescriptor
	if o.catalog != nil {
		var err error
		all, err = o.catalog.Tools(ctx)
		if err != nil {
			o.log.Warn().Err(err).Msg("tool catalog unavailable, continuing without tools")
			all = nil
		}
	}

	sel := o.filter.Apply(all, t.req.Message)
	o.metrics.ObserveCatalog(len(all), len(sel.Tools))
	o.hooks.Emit(ctx, hooks.EventToolsFiltered, map[string]any{
		"sessionId": t.resp.SessionID,
		"catalog":   len(all),
		"selected":  sel.Names(),
		"defaulted": sel.Defaulted,
	})
	return sel.Tools
}

// decide asks the model for tool calls, retrying once with a stricter
// instruction when tools were offered but none was named.
func (o *Orchestrator) decide(ctx context.Context, t *turn, selected []domain.ToolDescriptor) (string, []domain.ToolInvocationRequest, error) {
	system := BuildSystemPrompt(PromptConfig{
		AssistantName: o.cfg.AssistantName,
		Tools:         selected,
		Language:      t.lang,
		Authenticated: t.sc.IsAuthenticated,
		Now:           o.now(),
		ExtraPrompt:   o.cfg.ExtraPrompt,
	})
	msgs := o.promptMessages(t)
	known := toolcall.KnownFrom(selected)

	text, err := o.model.complete(ctx, stageDecide, system, msgs)
	if err != nil {
		return "", nil, err
	}
	calls := toolcall.ExtractAll(text, known)
	if len(calls) > 0 || len(selected) == 0 {
		return text, calls, nil
	}

	o.log.Debug().Msg("no tool call in decision, retrying with strict format")
	text, err = o.model.complete(ctx, stageRetry, system+strictRetryInstruction, msgs)
	if err != nil {
		return "", nil, err
	}
	return text, toolcall.ExtractAll(text, known), nil
}

// execute runs calls in order up to the configured cap. Failures become
// error results and still count toward the cap.
func (o *Orchestrator) execute(ctx context.Context, t *turn, calls []domain.ToolInvocationRequest) error {
	if len(calls) > o.cfg.MaxToolCalls {
		o.log.Warn().
			Int("proposed", len(calls)).
			Int("cap", o.cfg.MaxToolCalls).
			Msg("dropping tool calls over the cap")
		calls = calls[:o.cfg.MaxToolCalls]
	}

	auth := tools.AuthFor(t.sc, t.req.UserID)
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return err
		}

		var result domain.ToolInvocationResult
		if o.invoker == nil {
			result = domain.NewToolError(call, "no tool backend configured")
		} else {
			payload := o.invoker.Invoke(ctx, call.Name, call.Arguments, auth)
			if f, failed := tools.AsFailure(payload); failed {
				result = domain.NewToolError(call, f.Error)
			} else {
				result = domain.NewToolResult(call, payload)
			}
		}

		t.resp.ToolsCalled = append(t.resp.ToolsCalled, call.Name)
		t.resp.ToolResults = append(t.resp.ToolResults, result)
		o.hooks.Emit(ctx, hooks.EventToolInvoked, map[string]any{
			"sessionId": t.resp.SessionID,
			"tool":      call.Name,
			"success":   !result.Failed(),
		})
	}
	return nil
}

// summarize turns tool results into a short answer in the user's language.
func (o *Orchestrator) summarize(ctx context.Context, t *turn) (string, error) {
	msgs := []llm.Message{{Role: llm.RoleUser, Content: summaryInput(t.req.Message, t.resp.ToolResults)}}
	text, err := o.model.complete(ctx, stageSummarize, summaryPrompt(o.cfg.AssistantName, t.lang), msgs)
	if err != nil {
		return "", err
	}
	if answer := toolcall.Clean(text); answer != "" {
		return answer, nil
	}
	return textsFor(t.lang).NoAnswer, nil
}

// promptMessages is the prompt window of recent turns plus the new message.
func (o *Orchestrator) promptMessages(t *turn) []llm.Message {
	msgs := toMessages(lastTurns(t.history, o.cfg.PromptWindow))
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: t.req.Message})
}

func (o *Orchestrator) record(ctx context.Context, sessionID, message, answer string, toolsCalled []string, asked, answered time.Time) error {
	return o.history.Append(ctx, sessionID,
		domain.ConversationTurn{
			Role:      domain.RoleUser,
			Content:   message,
			SessionID: sessionID,
			Timestamp: asked,
		},
		domain.ConversationTurn{
			Role:        domain.RoleAssistant,
			Content:     answer,
			SessionID:   sessionID,
			Timestamp:   answered,
			ToolsCalled: append([]string(nil), toolsCalled...),
		},
	)
}
