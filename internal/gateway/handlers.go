package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/soyeahso/rentdesk/internal/version"
)

// rpcHandler serves one WebSocket method.
type rpcHandler func(rc *RequestContext)

// RequestContext carries one WebSocket request to its handler.
type RequestContext struct {
	Ctx    context.Context
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	if err := rc.Client.RespondError(rc.Frame.ID, code, message); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send error response")
	}
}

// Params decodes the request params into target. Absent params leave target
// untouched.
func (rc *RequestContext) Params(target any) error {
	if len(rc.Frame.Params) == 0 {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}

func (s *Server) registerRPC() {
	s.rpc = map[string]rpcHandler{
		MethodChatSend:       s.rpcChatSend,
		MethodSessionContext: s.rpcSessionContext,
		MethodHealth:         s.rpcHealth,
	}
}

// Methods returns the WebSocket methods, sorted.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.rpc))
	for m := range s.rpc {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

func (s *Server) rpcChatSend(rc *RequestContext) {
	if s.chat == nil {
		rc.RespondError("unavailable", "chat is not configured")
		return
	}
	var p ChatParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", "invalid chat params")
		return
	}
	if strings.TrimSpace(p.Message) == "" {
		rc.RespondError("invalid_params", "message is required")
		return
	}
	req := domain.ChatRequest{Message: p.Message, UserID: p.UserID, SessionID: p.SessionID}
	if req.SessionID == "" {
		req.SessionID = rc.Client.SessionID
	}
	if req.UserID == "" {
		req.UserID = rc.Client.UserID
	}

	ctx, cancel := context.WithTimeout(rc.Ctx, s.requestTimeout())
	defer cancel()
	rc.Respond(s.chat.Chat(ctx, req))
}

func (s *Server) rpcSessionContext(rc *RequestContext) {
	var p SessionParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", "invalid session params")
		return
	}
	id := p.SessionID
	if id == "" {
		id = rc.Client.SessionID
	}
	if s.sessions == nil {
		rc.Respond(domain.Anonymous(id))
		return
	}
	rc.Respond(s.sessions.GetSessionContext(rc.Ctx, id))
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(s.health(rc.Ctx))
}

// handleWebSocket upgrades the request and serves frames until the peer
// disconnects.
func (s *Server) handleWebSocket(c *gin.Context) {
	r := c.Request
	if !s.limiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited after repeated auth failures")
		c.JSON(http.StatusTooManyRequests, errorBody("too many failed authentication attempts"))
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayload)

	client, err := s.handshake(conn)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("handshake failed")
		s.limiter.recordFailure(r.RemoteAddr)
		_ = conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		_ = client.Close()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	s.readLoop(ctx, client)
}

// handshake runs challenge, connect and hello. The connect request must
// arrive within ten seconds.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	challenge, err := NewEvent(EventChallenge, map[string]any{
		"nonce": uuid.NewString(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("creating challenge: %w", err)
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, fmt.Errorf("sending challenge: %w", err)
	}

	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		return nil, fmt.Errorf("reading connect: %w", err)
	}
	if frame.Type != FrameTypeRequest || frame.Method != MethodConnect {
		sendErrorAndClose(conn, frame.ID, "protocol_error", "expected connect request")
		return nil, fmt.Errorf("expected connect request, got type=%s method=%s", frame.Type, frame.Method)
	}

	var params ConnectParams
	if len(frame.Params) > 0 {
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			sendErrorAndClose(conn, frame.ID, "invalid_params", "invalid connect params")
			return nil, fmt.Errorf("parsing connect params: %w", err)
		}
	}
	if params.Protocol != 0 && params.Protocol != ProtocolVersion {
		sendErrorAndClose(conn, frame.ID, "protocol_error", fmt.Sprintf("unsupported protocol %d", params.Protocol))
		return nil, fmt.Errorf("unsupported protocol %d", params.Protocol)
	}
	if res := Authorize(s.cfg.APIKey, params.APIKey); !res.OK {
		sendErrorAndClose(conn, frame.ID, "unauthorized", res.Reason)
		return nil, fmt.Errorf("auth failed: %s", res.Reason)
	}

	_ = conn.SetReadDeadline(time.Time{})
	client := NewClient(conn, params, s.log)

	resp, err := NewResponse(frame.ID, HelloOK{
		Protocol:  ProtocolVersion,
		Version:   version.Version,
		ConnID:    client.ConnID,
		SessionID: client.SessionID,
		Methods:   s.Methods(),
		MaxBytes:  maxPayload,
	})
	if err != nil {
		return nil, fmt.Errorf("creating hello: %w", err)
	}
	if err := conn.WriteJSON(resp); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}
	return client, nil
}

// readLoop serves requests one at a time.
func (s *Server) readLoop(ctx context.Context, client *Client) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				client.log.Debug().Msg("client closed connection")
			} else {
				client.log.Warn().Err(err).Msg("read error")
			}
			return
		}
		if frame.Type != FrameTypeRequest {
			client.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}
		s.dispatch(ctx, client, frame)
	}
}

func (s *Server) dispatch(ctx context.Context, client *Client, frame Frame) {
	handler, ok := s.rpc[frame.Method]
	if !ok {
		_ = client.RespondError(frame.ID, "method_not_found", "unknown method: "+frame.Method)
		return
	}
	handler(&RequestContext{Ctx: ctx, Client: client, Frame: frame, Server: s})
}

// sendErrorAndClose answers a failed handshake and closes the socket.
func sendErrorAndClose(conn *websocket.Conn, reqID, code, message string) {
	_ = conn.WriteJSON(NewErrorResponse(reqID, ErrorShape{Code: code, Message: message}))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message))
}
