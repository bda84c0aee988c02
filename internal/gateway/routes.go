package gateway

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/soyeahso/rentdesk/internal/hooks"
	"github.com/soyeahso/rentdesk/internal/session"
	"github.com/soyeahso/rentdesk/internal/version"
)

const (
	defaultSearchLimit = 20
	maxListLimit       = 500
)

// TokenRequest stores a credential for a session. ExpiresIn is in seconds;
// zero uses the store default.
type TokenRequest struct {
	Token        string `json:"token"`
	UserID       string `json:"userId,omitempty"`
	SessionID    string `json:"sessionId,omitempty"`
	ExpiresIn    int    `json:"expiresIn,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// HealthResponse is returned by GET /health and the health RPC.
type HealthResponse struct {
	Status      string        `json:"status"` // "ok" | "degraded"
	Version     string        `json:"version"`
	Uptime      string        `json:"uptime"`
	Clients     int           `json:"clients"`
	Sessions    int           `json:"sessions"`
	ToolBackend *BackendCheck `json:"toolBackend,omitempty"`
}

// BackendCheck is the tool backend part of a health report.
type BackendCheck struct {
	Name      string `json:"name"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// ToolsResponse lists the catalog, or the filtered selection when a message
// was given.
type ToolsResponse struct {
	Tools      []domain.ToolDescriptor `json:"tools"`
	Total      int                     `json:"total"`
	Categories []domain.ToolCategory   `json:"categories,omitempty"`
	Defaulted  bool                    `json:"defaulted,omitempty"`
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(s.log, s.metrics), cors(s.cfg.AllowedOrigins))

	r.GET("/health", s.handleHealth)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api/v1", requireAPIKey(s.cfg.APIKey, s.limiter, s.log))
	api.POST("/chat", s.handleChat)
	api.POST("/auth/token", s.handleSetToken)
	api.GET("/auth/session/:id", s.handleGetSession)
	api.DELETE("/auth/session/:id", s.handleClearSession)
	api.GET("/history/:id", s.handleHistory)
	api.GET("/history/:id/search", s.handleHistorySearch)
	api.GET("/tools", s.handleTools)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "path": c.Request.URL.Path})
	})
	return r
}

func (s *Server) handleChat(c *gin.Context) {
	if s.chat == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody("chat is not configured"))
		return
	}
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request: "+err.Error()))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, errorBody("message is required"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.requestTimeout())
	defer cancel()
	c.JSON(http.StatusOK, s.chat.Chat(ctx, req))
}

func (s *Server) handleSetToken(c *gin.Context) {
	if s.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody("sessions are not configured"))
		return
	}
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request: "+err.Error()))
		return
	}
	if req.Token == "" {
		c.JSON(http.StatusBadRequest, errorBody("token is required"))
		return
	}
	if req.ExpiresIn < 0 {
		c.JSON(http.StatusBadRequest, errorBody("expiresIn must not be negative"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx := c.Request.Context()
	opts := session.TokenOptions{
		ExpiresIn:    time.Duration(req.ExpiresIn) * time.Second,
		RefreshToken: req.RefreshToken,
	}
	if err := s.sessions.SetToken(ctx, req.Token, req.UserID, req.SessionID, opts); err != nil {
		s.log.Error().Err(err).Str("sessionId", req.SessionID).Msg("storing session token failed")
		c.JSON(http.StatusInternalServerError, errorBody("could not store session"))
		return
	}
	s.metrics.SetActiveSessions(s.sessions.Len(ctx))
	s.hooks.Emit(ctx, hooks.EventSessionLogin, map[string]any{"sessionId": req.SessionID, "userId": req.UserID})

	c.JSON(http.StatusOK, gin.H{"success": true, "session": s.sessions.GetSessionContext(ctx, req.SessionID)})
}

func (s *Server) handleGetSession(c *gin.Context) {
	if s.sessions == nil {
		c.JSON(http.StatusOK, domain.Anonymous(c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, s.sessions.GetSessionContext(c.Request.Context(), c.Param("id")))
}

func (s *Server) handleClearSession(c *gin.Context) {
	id := c.Param("id")
	if s.sessions != nil {
		ctx := c.Request.Context()
		if err := s.sessions.ClearSession(ctx, id); err != nil {
			s.log.Error().Err(err).Str("sessionId", id).Msg("clearing session failed")
			c.JSON(http.StatusInternalServerError, errorBody("could not clear session"))
			return
		}
		s.metrics.SetActiveSessions(s.sessions.Len(ctx))
		s.hooks.Emit(ctx, hooks.EventSessionLogout, map[string]any{"sessionId": id})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessionId": id})
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody("history is not configured"))
		return
	}
	limit, ok := queryLimit(c, 0)
	if !ok {
		return
	}
	id := c.Param("id")
	var (
		turns []domain.ConversationTurn
		err   error
	)
	if limit > 0 {
		turns, err = s.history.Recent(c.Request.Context(), id, limit)
	} else {
		turns, err = s.history.All(c.Request.Context(), id)
	}
	if err != nil {
		s.log.Error().Err(err).Str("sessionId", id).Msg("loading history failed")
		c.JSON(http.StatusInternalServerError, errorBody("could not load history"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": id, "turns": nonNil(turns)})
}

func (s *Server) handleHistorySearch(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody("history is not configured"))
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, errorBody("query parameter q is required"))
		return
	}
	limit, ok := queryLimit(c, defaultSearchLimit)
	if !ok {
		return
	}
	id := c.Param("id")
	turns, err := s.history.Search(c.Request.Context(), id, q, limit)
	if err != nil {
		s.log.Error().Err(err).Str("sessionId", id).Msg("searching history failed")
		c.JSON(http.StatusInternalServerError, errorBody("could not search history"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": id, "query": q, "turns": nonNil(turns)})
}

func (s *Server) handleTools(c *gin.Context) {
	if s.catalog == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody("tools are not configured"))
		return
	}
	all, err := s.catalog.Tools(c.Request.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("listing tools failed")
		c.JSON(http.StatusBadGateway, errorBody("tool backend unavailable"))
		return
	}
	resp := ToolsResponse{Tools: all, Total: len(all)}
	if msg := c.Query("message"); msg != "" {
		sel := s.filter.Apply(all, msg)
		resp.Tools = sel.Tools
		resp.Categories = sel.Categories
		resp.Defaulted = sel.Defaulted
	}
	if resp.Tools == nil {
		resp.Tools = []domain.ToolDescriptor{}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.health(c.Request.Context()))
}

// health probes the tool backend with a short deadline.
func (s *Server) health(ctx context.Context) HealthResponse {
	h := HealthResponse{
		Status:  "ok",
		Version: version.Version,
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
		Clients: s.clients.Count(),
	}
	if s.sessions != nil {
		h.Sessions = s.sessions.Len(ctx)
	}
	if s.backend != nil {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		check := &BackendCheck{Name: s.backend.Name(), Reachable: true}
		if err := s.backend.Health(probeCtx); err != nil {
			check.Reachable = false
			check.Error = err.Error()
			h.Status = "degraded"
		}
		h.ToolBackend = check
	}
	return h
}

// queryLimit parses ?limit=, writing a 400 when it is malformed.
func queryLimit(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, errorBody("limit must be a non-negative integer"))
		return 0, false
	}
	return min(n, maxListLimit), true
}

func nonNil(turns []domain.ConversationTurn) []domain.ConversationTurn {
	if turns == nil {
		return []domain.ConversationTurn{}
	}
	return turns
}
