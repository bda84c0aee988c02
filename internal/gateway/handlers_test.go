package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/rentdesk/internal/config"
	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/soyeahso/rentdesk/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, h *harness) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(h.srv.Handler())
	t.Cleanup(ts.Close)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func call(t *testing.T, conn *websocket.Conn, id, method string, params any) Frame {
	t.Helper()
	req, err := NewRequest(id, method, params)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))
	f := readFrame(t, conn)
	require.Equal(t, FrameTypeResponse, f.Type)
	require.Equal(t, id, f.ID)
	return f
}

func connect(t *testing.T, conn *websocket.Conn, params ConnectParams) HelloOK {
	t.Helper()
	challenge := readFrame(t, conn)
	require.Equal(t, FrameTypeEvent, challenge.Type)
	require.Equal(t, EventChallenge, challenge.Event)

	f := call(t, conn, "c1", MethodConnect, params)
	require.NotNil(t, f.OK)
	require.True(t, *f.OK, "connect failed: %+v", f.Error)
	var hello HelloOK
	require.NoError(t, json.Unmarshal(f.Payload, &hello))
	return hello
}

func TestWebSocketHandshake(t *testing.T) {
	h := newHarness(t, config.ServerConfig{})
	conn := dialWS(t, h)

	hello := connect(t, conn, ConnectParams{Protocol: ProtocolVersion, Client: ClientInfo{ID: "cli"}})
	assert.Equal(t, ProtocolVersion, hello.Protocol)
	assert.Len(t, hello.ConnID, 36)
	assert.Len(t, hello.SessionID, 36, "a session is assigned when none is requested")
	assert.Equal(t, []string{MethodChatSend, MethodHealth, MethodSessionContext}, hello.Methods)
	assert.Eventually(t, func() bool { return h.srv.clients.Count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketHandshake_RejectsBadKey(t *testing.T) {
	h := newHarness(t, config.ServerConfig{APIKey: "k-1"})
	conn := dialWS(t, h)

	readFrame(t, conn)
	req, err := NewRequest("c1", MethodConnect, ConnectParams{APIKey: "wrong"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	f := readFrame(t, conn)
	require.NotNil(t, f.OK)
	assert.False(t, *f.OK)
	require.NotNil(t, f.Error)
	assert.Equal(t, "unauthorized", f.Error.Code)

	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "the server closes the socket")
}

func TestWebSocketHandshake_RequiresConnectFirst(t *testing.T) {
	h := newHarness(t, config.ServerConfig{})
	conn := dialWS(t, h)

	readFrame(t, conn)
	req, err := NewRequest("x", MethodChatSend, ChatParams{Message: "hi"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	f := readFrame(t, conn)
	require.NotNil(t, f.Error)
	assert.Equal(t, "protocol_error", f.Error.Code)
}

func TestWebSocketHandshake_UnsupportedProtocol(t *testing.T) {
	h := newHarness(t, config.ServerConfig{})
	conn := dialWS(t, h)

	readFrame(t, conn)
	req, err := NewRequest("c1", MethodConnect, ConnectParams{Protocol: 99})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	f := readFrame(t, conn)
	require.NotNil(t, f.Error)
	assert.Equal(t, "protocol_error", f.Error.Code)
}

func TestWebSocketChatSend(t *testing.T) {
	h := newHarness(t, config.ServerConfig{APIKey: "k-1"})
	conn := dialWS(t, h)
	hello := connect(t, conn, ConnectParams{APIKey: "k-1", SessionID: "ws-s1", UserID: "owner-1"})
	require.Equal(t, "ws-s1", hello.SessionID)

	f := call(t, conn, "r1", MethodChatSend, ChatParams{Message: "show rooms"})
	require.True(t, *f.OK)
	var resp domain.ChatResponse
	require.NoError(t, json.Unmarshal(f.Payload, &resp))
	assert.Equal(t, "echo: show rooms", resp.Response)
	assert.Equal(t, "ws-s1", resp.SessionID, "bound session is used")
	assert.Equal(t, "owner-1", resp.UserID)

	f = call(t, conn, "r2", MethodChatSend, ChatParams{Message: "again", SessionID: "other"})
	require.True(t, *f.OK)
	assert.Equal(t, "other", h.chat.last().SessionID, "an explicit session wins")

	f = call(t, conn, "r3", MethodChatSend, ChatParams{Message: " "})
	require.False(t, *f.OK)
	assert.Equal(t, "invalid_params", f.Error.Code)
}

func TestWebSocketSessionContextAndHealth(t *testing.T) {
	h := newHarness(t, config.ServerConfig{})
	require.NoError(t, h.sessions.SetToken(context.Background(), "tok", "owner-2", "ws-s2", session.TokenOptions{}))
	conn := dialWS(t, h)
	connect(t, conn, ConnectParams{SessionID: "ws-s2"})

	f := call(t, conn, "r1", MethodSessionContext, nil)
	require.True(t, *f.OK)
	assert.NotContains(t, string(f.Payload), "tok\"")
	var sc domain.SessionContext
	require.NoError(t, json.Unmarshal(f.Payload, &sc))
	assert.True(t, sc.IsAuthenticated)
	assert.Equal(t, "owner-2", sc.UserID)

	f = call(t, conn, "r2", MethodSessionContext, SessionParams{SessionID: "unknown"})
	require.NoError(t, json.Unmarshal(f.Payload, &sc))
	assert.False(t, sc.IsAuthenticated)
	assert.Equal(t, "unknown", sc.SessionID)

	f = call(t, conn, "r3", MethodHealth, nil)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(f.Payload, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Clients)
}

func TestWebSocketUnknownMethod(t *testing.T) {
	h := newHarness(t, config.ServerConfig{})
	conn := dialWS(t, h)
	connect(t, conn, ConnectParams{})

	f := call(t, conn, "r1", "config.set", map[string]any{"path": "x"})
	require.False(t, *f.OK)
	assert.Equal(t, "method_not_found", f.Error.Code)

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameTypeEvent, Event: "noise"}))
	f = call(t, conn, "r2", MethodHealth, nil)
	assert.True(t, *f.OK, "non-request frames are ignored")
}

func TestFrameConstructors(t *testing.T) {
	req, err := NewRequest("1", MethodChatSend, ChatParams{Message: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"hi"}`, string(req.Params))

	res, err := NewResponse("1", map[string]int{"n": 2})
	require.NoError(t, err)
	require.NotNil(t, res.OK)
	assert.True(t, *res.OK)

	errRes := NewErrorResponse("1", ErrorShape{Code: "c", Message: "m"})
	assert.False(t, *errRes.OK)
	raw, err := json.Marshal(errRes)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"res","id":"1","ok":false,"error":{"code":"c","message":"m"}}`, string(raw))

	ev, err := NewEvent(EventChallenge, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, FrameTypeEvent, ev.Type)
	assert.Equal(t, int64(3), ev.Seq)
}
