package domain

import "time"

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one recorded message of a conversation.
type ConversationTurn struct {
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	SessionID   string    `json:"sessionId"`
	Timestamp   time.Time `json:"timestamp"`
	ToolsCalled []string  `json:"toolsCalled,omitempty"`
}

// ChatRequest is the input of one orchestration pass.
type ChatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// ChatResponse is the output of one orchestration pass. Response is always
// populated, with a localized apology when Success is false.
type ChatResponse struct {
	Success         bool                   `json:"success"`
	Response        string                 `json:"response"`
	ToolsCalled     []string               `json:"toolsCalled"`
	ToolResults     []ToolInvocationResult `json:"toolResults"`
	UserID          string                 `json:"userId,omitempty"`
	SessionID       string                 `json:"sessionId"`
	IsAuthenticated bool                   `json:"isAuthenticated"`
	Timestamp       time.Time              `json:"timestamp"`
	Error           string                 `json:"error,omitempty"`
}
