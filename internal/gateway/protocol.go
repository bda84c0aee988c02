package gateway

import "encoding/json"

// Frame types for the WebSocket protocol.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// RPC methods served over the WebSocket.
const (
	MethodConnect        = "connect"
	MethodChatSend       = "chat.send"
	MethodSessionContext = "session.context"
	MethodHealth         = "health"
)

// EventChallenge is the first frame a new connection receives.
const EventChallenge = "connect.challenge"

// ProtocolVersion is the frame protocol revision spoken by this server.
const ProtocolVersion = 1

// maxPayload bounds a single inbound WebSocket message.
const maxPayload = 1 << 20

// Frame is the envelope of every WebSocket message. Type discriminates
// request, response and event frames.
type Frame struct {
	Type string `json:"type"`

	// Request fields
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// Response fields
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Event fields
	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`

	Error *ErrorShape `json:"error,omitempty"`
}

// ErrorShape is the error body of a failed response frame.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConnectParams are sent by the client in the initial connect request.
// SessionID pins the connection to an existing session; when empty the
// server assigns a fresh one.
type ConnectParams struct {
	Protocol  int        `json:"protocol"`
	Client    ClientInfo `json:"client"`
	APIKey    string     `json:"apiKey,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
	UserID    string     `json:"userId,omitempty"`
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	ID       string `json:"id"`
	Version  string `json:"version,omitempty"`
	Platform string `json:"platform,omitempty"`
}

// HelloOK answers a successful connect.
type HelloOK struct {
	Protocol  int      `json:"protocol"`
	Version   string   `json:"version"`
	ConnID    string   `json:"connId"`
	SessionID string   `json:"sessionId"`
	Methods   []string `json:"methods"`
	MaxBytes  int      `json:"maxPayload"`
}

// ChatParams is the chat.send payload. Empty SessionID and UserID fall back
// to the values bound at connect time.
type ChatParams struct {
	Message   string `json:"message"`
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// SessionParams is the session.context payload.
type SessionParams struct {
	SessionID string `json:"sessionId,omitempty"`
}

// NewRequest creates a request frame.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:   FrameTypeRequest,
		ID:     id,
		Method: method,
		Params: raw,
	}, nil
}

// NewResponse creates a success response frame.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	ok := true
	return Frame{
		Type:    FrameTypeResponse,
		ID:      id,
		OK:      &ok,
		Payload: raw,
	}, nil
}

// NewErrorResponse creates an error response frame.
func NewErrorResponse(id string, errShape ErrorShape) Frame {
	ok := false
	return Frame{
		Type:  FrameTypeResponse,
		ID:    id,
		OK:    &ok,
		Error: &errShape,
	}
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:    FrameTypeEvent,
		Event:   event,
		Payload: raw,
		Seq:     seq,
	}, nil
}
