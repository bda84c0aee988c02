package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/soyeahso/rentdesk/internal/hooks"
	"github.com/soyeahso/rentdesk/internal/llm"
	"github.com/soyeahso/rentdesk/internal/logging"
	"github.com/soyeahso/rentdesk/internal/session"
	"github.com/soyeahso/rentdesk/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func testRegistry(mock llm.Client) *llm.Registry {
	reg := llm.NewRegistry(silentLog())
	reg.Register("mock", mock)
	reg.SetFallback("mock")
	return reg
}

type fakeCatalog struct {
	tools []domain.ToolDescriptor
	err   error
	calls atomic.Int32
}

func (f *fakeCatalog) Tools(context.Context) ([]domain.ToolDescriptor, error) {
	f.calls.Add(1)
	return f.tools, f.err
}

type fakeInvoker struct {
	mu    sync.Mutex
	calls []domain.ToolInvocationRequest
	auths []tools.Auth
	fn    func(name string, args map[string]any) any
}

func (f *fakeInvoker) Invoke(_ context.Context, name string, args map[string]any, auth tools.Auth) any {
	f.mu.Lock()
	f.calls = append(f.calls, domain.ToolInvocationRequest{Name: name, Arguments: args})
	f.auths = append(f.auths, auth)
	f.mu.Unlock()
	if f.fn == nil {
		return map[string]any{"ok": true}
	}
	return f.fn(name, args)
}

func rentalCatalog() []domain.ToolDescriptor {
	return []domain.ToolDescriptor{
		{Name: "login", Description: "Sign in"},
		{Name: "list_houses", Description: "List houses"},
		{
			Name:        "count_rooms_by_house_and_status",
			Description: "Count rooms in a house by status",
			Parameters: map[string]domain.ParameterSpec{
				"houseId": {Type: "integer", Required: true},
				"status":  {Type: "string", Enum: []any{"vacant", "occupied"}},
			},
		},
		{Name: "list_invoices", Description: "List invoices"},
	}
}

// scripted returns a mock that answers the n-th model call with replies[n]
// and records every request.
func scripted(replies ...string) (*llm.MockClient, *[]llm.CompletionRequest) {
	var mu sync.Mutex
	var reqs []llm.CompletionRequest
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			mu.Lock()
			defer mu.Unlock()
			reqs = append(reqs, req)
			i := len(reqs) - 1
			if i >= len(replies) {
				return nil, fmt.Errorf("unexpected model call %d", i+1)
			}
			return &llm.CompletionResponse{Content: replies[i], Model: "mock-model"}, nil
		},
	}
	return mock, &reqs
}

type harness struct {
	orch    *Orchestrator
	catalog *fakeCatalog
	invoker *fakeInvoker
	history *MemoryHistory
	store   *session.MemoryStore
}

func newHarness(mock llm.Client, cfg Config) *harness {
	h := &harness{
		catalog: &fakeCatalog{tools: rentalCatalog()},
		invoker: &fakeInvoker{},
		history: NewMemoryHistory(),
		store:   session.NewMemoryStore(time.Hour, silentLog()),
	}
	h.orch = New(cfg, Deps{
		Registry: testRegistry(mock),
		Catalog:  h.catalog,
		Invoker:  h.invoker,
		Sessions: h.store,
		History:  h.history,
		Hooks:    hooks.NewManager(silentLog()),
	}, silentLog())
	return h
}

func TestChat_ConversationalSkipsCatalog(t *testing.T) {
	mock, reqs := scripted("Hi! How can I help with your properties?")
	h := newHarness(mock, Config{Model: "mock"})

	resp := h.orch.Chat(context.Background(), domain.ChatRequest{Message: "Hello!", SessionID: "s1"})

	require.True(t, resp.Success)
	assert.Equal(t, "Hi! How can I help with your properties?", resp.Response)
	assert.Zero(t, h.catalog.calls.Load(), "small talk must not fetch the catalog")
	assert.Empty(t, resp.ToolsCalled)
	require.Len(t, *reqs, 1)
	assert.NotContains(t, (*reqs)[0].System, "Available Tools")

	turns, err := h.history.All(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestChat_RoomCountEndToEnd(t *testing.T) {
	mock, reqs := scripted(
		`Let me check. {"name": "count_rooms_by_house_and_status", "arguments": {"houseId": 1, "status": "vacant"}}`,
		"House 1 has 3 vacant rooms.",
	)
	h := newHarness(mock, Config{Model: "mock"})
	h.invoker.fn = func(string, map[string]any) any {
		return map[string]any{"houseId": 1, "status": "vacant", "count": 3}
	}

	resp := h.orch.Chat(context.Background(), domain.ChatRequest{
		Message:   "How many vacant rooms are in house 1?",
		SessionID: "s1",
		UserID:    "u1",
	})

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "House 1 has 3 vacant rooms.", resp.Response)
	assert.Equal(t, []string{"count_rooms_by_house_and_status"}, resp.ToolsCalled)
	require.Len(t, resp.ToolResults, 1)
	assert.False(t, resp.ToolResults[0].Failed())
	assert.Equal(t, 3, resp.ToolResults[0].Result.(map[string]any)["count"])
	assert.Equal(t, "u1", resp.UserID)
	assert.Equal(t, "s1", resp.SessionID)
	assert.False(t, resp.Timestamp.IsZero())

	require.Len(t, *reqs, 2)
	decide := (*reqs)[0]
	assert.Contains(t, decide.System, "count_rooms_by_house_and_status")
	assert.Contains(t, decide.System, "houseId (integer; required)")
	assert.NotContains(t, decide.System, "### login", "auth tools are filtered out")
	summary := (*reqs)[1]
	assert.Contains(t, summary.System, "English")
	assert.Contains(t, summary.Messages[0].Content, `"count":3`)

	require.Len(t, h.invoker.calls, 1)
	assert.Equal(t, float64(1), h.invoker.calls[0].Arguments["houseId"])

	turns, _ := h.history.All(context.Background(), "s1")
	require.Len(t, turns, 2)
	assert.Equal(t, domain.RoleAssistant, turns[1].Role)
	assert.Equal(t, []string{"count_rooms_by_house_and_status"}, turns[1].ToolsCalled)
}

func TestChat_AvailableRoomsInHouse(t *testing.T) {
	mock, reqs := scripted(
		`{"name":"count_rooms_by_house_and_status","arguments":{"houseId":1,"status":"AVAILABLE"}}`,
		"There are 2 available rooms in house 1.",
	)
	h := newHarness(mock, Config{Model: "mock"})
	h.invoker.fn = func(string, map[string]any) any {
		return map[string]any{"count": 2}
	}

	resp := h.orch.Chat(context.Background(), domain.ChatRequest{Message: "How many available rooms in house 1?"})

	require.True(t, resp.Success, resp.Error)
	assert.NotEmpty(t, resp.Response)
	assert.Equal(t, []string{"count_rooms_by_house_and_status"}, resp.ToolsCalled)

	decide := (*reqs)[0]
	assert.Contains(t, decide.System, "count_rooms_by_house_and_status")
	assert.NotContains(t, decide.System, "list_invoices", "invoice tools are outside the room and house categories")

	require.Len(t, h.invoker.calls, 1)
	assert.Equal(t, map[string]any{"houseId": float64(1), "status": "AVAILABLE"}, h.invoker.calls[0].Arguments)
}

func TestChat_RepeatedCallRunsOnce(t *testing.T) {
	call := `{"name":"list_invoices","arguments":{"houseId":1}}`
	mock, _ := scripted(
		"Checking now.\n```json\n"+call+"\n```\nTo recap, I called "+call+".",
		"House 1 has no invoices.",
	)
	h := newHarness(mock, Config{Model: "mock"})

	resp := h.orch.Chat(context.Background(), domain.ChatRequest{Message: "Show invoices for house 1"})

	require.True(t, resp.Success, resp.Error)
	require.Len(t, h.invoker.calls, 1)
	assert.Equal(t, []string{"list_invoices"}, resp.ToolsCalled)
}

func TestChat_EmptyCatalog(t *testing.T) {
	mock, reqs := scripted("I can't look that up right now.")
	h := newHarness(mock, Config{Model: "mock"})
	h.catalog.tools = nil
	h.catalog.err = errors.New("connection refused")

	resp := h.orch.Chat(context.Background(), domain.ChatRequest{Message: "How many vacant rooms are in house 1?"})

	require.True(t, resp.Success)
	assert.Equal(t, "I can't look that up right now.", resp.Response)
	assert.Empty(t, resp.ToolsCalled)
	assert.Empty(t, h.invoker.calls)
	require.Len(t, *reqs, 1, "no retry without tools")
	assert.Contains(t, (*reqs)[0].System, "No tools are available")
	assert.Equal(t, domain.DefaultSessionID, resp.SessionID)
}

func TestChat_EmptyAnswerUsesFallback(t *testing.T) {
	mock, _ := scripted("```\n```")
	h := newHarness(mock, Config{Model: "mock"})
	h.catalog.tools = nil

	resp := h.orch.Chat(context.Background(), domain.ChatRequest{Message: "Có bao nhiêu phòng trống?"})
	require.True(t, resp.Success)
	assert.Equal(t, textsFor(LangVietnamese).NoAnswer, resp.Response)
}

func TestChat_RetryOnce(t *testing.T) {
	t.Run("retry yields a call", func(t *testing.T) {
		mock, reqs := scripted(
			"Let me look into the houses for you.",
			`{"name":"list_houses","arguments":{}}`,
			"You have 2 houses.",
		)
		h := newHarness(mock, Config{Model: "mock"})

		resp := h.orch.Chat(context.Background(), domain.ChatRequest{Message: "Show my houses"})
		require.True(t, resp.Success)
		assert.Equal(t, "You have 2 houses.", resp.Response)
		assert.Equal(t, []string{"list_houses"}, resp.ToolsCalled)
		require.Len(t, *reqs, 3)
		assert.NotContains(t, (*reqs)[0].System, "IMPORTANT")
		assert.Contains(t, (*reqs)[1].System, "IMPORTANT")
	})

	t.Run("retry text accepted as is", func(t *testing.T) {
		mock, reqs := scripted("Let me look.", "I'm not sure which house you mean.")
		h := newHarness(mock, Config{Model: "mock"})

		resp := h.orch.Chat(context.Background(), domain.ChatRequest{Message: "Show my houses"})
		require.True(t, resp.Success)
		assert.Equal(t, "I'm not sure which house you mean.", resp.Response)
		assert.Len(t, *reqs, 2, "only one retry")
		assert.Empty(t, h.invoker.calls)
	})
}

func TestChat_CapsToolCalls(t *testing.T) {
	var calls []string
	for i := 1; i <= 8; i++ {
		calls = append(calls, fmt.Sprintf(`{"name":"count_rooms_by_house_and_status","arguments":{"houseId":%d}}`, i))
	}
	mock, _ := scripted("["+strings.Join(calls, ",")+"]", "Counted.")
	h := newHarness(mock, Config{Model: "mock", MaxToolCalls: 5})

	resp := h.orch.Chat(context.Background(), domain.ChatRequest{Message: "Count rooms in every house"})

	require.True(t, resp.Success)
	assert.Len(t, h.invoker.calls, 5)
	assert.Len(t, resp.ToolsCalled, 5)
	assert.Len(t, resp.ToolResults, 5)
	assert.Equal(t, float64(5), h.invoker.calls[4].Arguments["houseId"])
}

func TestChat_ToolFailuresCountAndContinue(t *testing.T) {
	mock, reqs := scripted(
		`[{"name":"list_houses","arguments":{}},{"name":"list_invoices","arguments":{"month":"2026-09"}}]`,
		"Houses are unavailable; there are no unpaid invoices.",
	)
	h := newHarness(mock, Config{Model: "mock"})
	h.invoker.fn = func(name string, _ map[string]any) any {
		if name == "list_houses" {
			return tools.Failure{Error: "tool backend: 503 unavailable"}
		}
		return []any{}
	}

	resp := h.orch.Chat(context.Background(), domain.ChatRequest{Message: "Show houses and unpaid invoices"})

	require.True(t, resp.Success)
	require.Len(t, resp.ToolResults, 2)
	assert.True(t, resp.ToolResults[0].Failed())
	assert.Equal(t, "tool backend: 503 unavailable", resp.ToolResults[0].ErrorMessage)
	assert.False(t, resp.ToolResults[1].Failed())
	assert.Contains(t, (*reqs)[1].Messages[0].Content, "ERROR: tool backend: 503 unavailable")
}

func TestChat_ModelErrorApologizesWithoutRecording(t *testing.T) {
	tests := []struct {
		name    string
		message string
		lang    string
	}{
		{"english", "How many rooms are vacant?", LangEnglish},
		{"vietnamese", "Có bao nhiêu phòng trống?", LangVietnamese},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &llm.MockClient{
				ProviderName: "mock",
				CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
					return nil, &llm.ProviderError{Provider: "mock", Message: "service down", Code: 503}
				},
			}
			h := newHarness(mock, Config{Model: "mock"})

			resp := h.orch.Chat(context.Background(), domain.ChatRequest{Message: tt.message, SessionID: "s1"})

			assert.False(t, resp.Success)
			assert.Equal(t, textsFor(tt.lang).Apology, resp.Response)
			assert.Contains(t, resp.Error, "service down")
			assert.NotNil(t, resp.ToolsCalled)
			turns, _ := h.history.All(context.Background(), "s1")
			assert.Empty(t, turns)
		})
	}
}

func TestChat_EmptyMessage(t *testing.T) {
	mock, _ := scripted()
	h := newHarness(mock, Config{Model: "mock"})

	resp := h.orch.Chat(context.Background(), domain.ChatRequest{Message: "   "})
	assert.False(t, resp.Success)
	assert.Equal(t, ErrEmptyMessage.Error(), resp.Error)
	assert.Zero(t, mock.Calls())
}

func TestChat_ForwardsSessionAuth(t *testing.T) {
	mock, reqs := scripted(`{"name":"list_houses","arguments":{}}`, "Two houses.")
	h := newHarness(mock, Config{Model: "mock"})
	require.NoError(t, h.store.SetToken(context.Background(), "tok-1", "owner-7", "s1", session.TokenOptions{}))

	resp := h.orch.Chat(context.Background(), domain.ChatRequest{Message: "List houses", SessionID: "s1"})

	require.True(t, resp.Success)
	assert.True(t, resp.IsAuthenticated)
	assert.Equal(t, "owner-7", resp.UserID)
	require.Len(t, h.invoker.auths, 1)
	assert.Equal(t, tools.Auth{Token: "tok-1", UserID: "owner-7"}, h.invoker.auths[0])
	assert.Contains(t, (*reqs)[0].System, "The user is signed in.")
}

func TestChat_PromptWindow(t *testing.T) {
	mock, reqs := scripted("No tool needed.")
	h := newHarness(mock, Config{Model: "mock", PromptWindow: 6, ContextWindow: 10})
	h.catalog.tools = nil

	for i := range 12 {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		require.NoError(t, h.history.Append(context.Background(), "s1", domain.ConversationTurn{Role: role, Content: fmt.Sprintf("turn %d", i)}))
	}

	h.orch.Chat(context.Background(), domain.ChatRequest{Message: "What did I ask?", SessionID: "s1"})

	require.Len(t, *reqs, 1)
	msgs := (*reqs)[0].Messages
	require.Len(t, msgs, 7)
	assert.Equal(t, "turn 6", msgs[0].Content)
	assert.Equal(t, "What did I ask?", msgs[6].Content)

	all, _ := h.history.All(context.Background(), "s1")
	assert.Len(t, all, 14, "full history is retained")
}

func TestChat_EmitsHooks(t *testing.T) {
	mock, _ := scripted(`{"name":"list_houses","arguments":{}}`, "Two houses.")
	h := newHarness(mock, Config{Model: "mock"})
	hm := hooks.NewManager(silentLog())
	h.orch.hooks = hm

	var events []string
	var mu sync.Mutex
	hm.OnAll("test", func(_ context.Context, p hooks.Payload) error {
		mu.Lock()
		events = append(events, p.Event)
		mu.Unlock()
		return nil
	})

	h.orch.Chat(context.Background(), domain.ChatRequest{Message: "List houses"})
	assert.Equal(t, []string{
		hooks.EventMessageReceived,
		hooks.EventToolsFiltered,
		hooks.EventToolInvoked,
		hooks.EventResponseSent,
	}, events)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()
	assert.Equal(t, DefaultMaxToolCalls, cfg.MaxToolCalls)
	assert.Equal(t, DefaultPromptWindow, cfg.PromptWindow)
	assert.Equal(t, DefaultContextWindow, cfg.ContextWindow)
	assert.Equal(t, LangEnglish, cfg.DefaultLanguage)

	small := Config{PromptWindow: 8, ContextWindow: 4}
	small.applyDefaults()
	assert.Equal(t, 4, small.PromptWindow)
}
