package agent

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestBuildSystemPrompt(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	prompt := BuildSystemPrompt(PromptConfig{
		Tools: []domain.ToolDescriptor{{
			Name:        "list_invoices",
			Description: "List invoices of a house",
			Parameters: map[string]domain.ParameterSpec{
				"status":  {Type: "string", Enum: []any{"paid", "unpaid"}, Description: "payment state"},
				"houseId": {Type: "integer", Required: true},
			},
		}},
		Language:    LangVietnamese,
		Now:         now,
		ExtraPrompt: "Amounts are in VND.",
	})

	assert.Contains(t, prompt, "You are RentDesk")
	assert.Contains(t, prompt, "Current date: 2026-10-16")
	assert.Contains(t, prompt, "not signed in")
	assert.Contains(t, prompt, "Answer in Vietnamese.")
	assert.Contains(t, prompt, "### list_invoices\nList invoices of a house\n")
	assert.Contains(t, prompt, "- status (string; one of: paid, unpaid): payment state")
	assert.Less(t, strings.Index(prompt, "- houseId"), strings.Index(prompt, "- status"), "parameters are sorted")
	assert.Contains(t, prompt, `{"name": "tool_name", "arguments": {"param": "value"}}`)
	assert.True(t, strings.HasSuffix(prompt, "Amounts are in VND.\n"))
}

func TestBuildSystemPrompt_NoTools(t *testing.T) {
	prompt := BuildSystemPrompt(PromptConfig{AssistantName: "Desk", Authenticated: true, Now: time.Now()})
	assert.Contains(t, prompt, "You are Desk")
	assert.Contains(t, prompt, "The user is signed in.")
	assert.Contains(t, prompt, "No tools are available")
	assert.NotContains(t, prompt, "Available Tools")
}

func TestSummaryInput(t *testing.T) {
	ok := domain.NewToolResult(domain.ToolInvocationRequest{Name: "list_rooms", Arguments: map[string]any{"houseId": 1}}, map[string]any{"count": 2})
	bad := domain.NewToolError(domain.ToolInvocationRequest{Name: "list_tenants"}, "forbidden")
	big := domain.NewToolResult(domain.ToolInvocationRequest{Name: "dump"}, strings.Repeat("x", maxResultChars*2))

	in := summaryInput("how many rooms?", []domain.ToolInvocationResult{ok, bad, big})
	assert.Contains(t, in, "Question: how many rooms?")
	assert.Contains(t, in, `- list_rooms {"houseId":1}: {"count":2}`)
	assert.Contains(t, in, "- list_tenants {}: ERROR: forbidden")
	assert.Contains(t, in, "...(truncated)")
	assert.Less(t, len(in), maxResultChars+500)
}

func TestSummaryInput_TruncatesOnRuneBoundary(t *testing.T) {
	big := domain.NewToolResult(domain.ToolInvocationRequest{Name: "list_rooms"}, strings.Repeat("ơ", maxResultChars))

	in := summaryInput("phòng trống?", []domain.ToolInvocationResult{big})
	assert.True(t, utf8.ValidString(in))
	assert.Contains(t, in, "...(truncated)")
}

func TestClip(t *testing.T) {
	assert.Equal(t, "h", clip("hóa đơn", 2))
	assert.Equal(t, "hó", clip("hóa đơn", 3))
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "", clip("đ", 1))
}

func TestLanguagePrompts(t *testing.T) {
	assert.Contains(t, conversationalPrompt("", LangVietnamese), "Vietnamese")
	assert.Contains(t, summaryPrompt("Desk", LangEnglish), "You are Desk")
	assert.Contains(t, summaryPrompt("", LangEnglish), "English")
}
