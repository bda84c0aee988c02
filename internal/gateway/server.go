// Package gateway exposes the orchestrator over HTTP and WebSocket.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/rentdesk/internal/agent"
	"github.com/soyeahso/rentdesk/internal/catalog"
	"github.com/soyeahso/rentdesk/internal/config"
	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/soyeahso/rentdesk/internal/hooks"
	"github.com/soyeahso/rentdesk/internal/logging"
	"github.com/soyeahso/rentdesk/internal/metrics"
	"github.com/soyeahso/rentdesk/internal/session"
)

// ErrClientClosed is returned when writing to a closed WebSocket client.
var ErrClientClosed = errors.New("client connection closed")

// Chatter answers one chat request.
type Chatter interface {
	Chat(ctx context.Context, req domain.ChatRequest) domain.ChatResponse
}

// ToolCatalog lists the tools currently offered by the backend.
type ToolCatalog interface {
	Tools(ctx context.Context) ([]domain.ToolDescriptor, error)
}

// HealthChecker reports tool backend reachability.
type HealthChecker interface {
	Name() string
	Health(ctx context.Context) error
}

// Server is the rentdesk HTTP + WebSocket API.
type Server struct {
	cfg      config.ServerConfig
	log      *logging.Logger
	chat     Chatter
	sessions session.Store
	history  agent.HistoryStore
	catalog  ToolCatalog
	backend  HealthChecker
	filter   *catalog.Filter
	hooks    *hooks.Manager
	metrics  *metrics.Metrics

	clients    *ClientRegistry
	limiter    *authRateLimiter
	upgrader   websocket.Upgrader
	engine     *gin.Engine
	rpc        map[string]rpcHandler
	startedAt  time.Time
	httpServer *http.Server
	addrMu     sync.RWMutex
	listenAddr string
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithOrchestrator sets the chat handler behind /api/v1/chat and chat.send.
func WithOrchestrator(c Chatter) ServerOption {
	return func(s *Server) { s.chat = c }
}

// WithSessions sets the session context store.
func WithSessions(st session.Store) ServerOption {
	return func(s *Server) { s.sessions = st }
}

// WithHistory sets the conversation history store.
func WithHistory(h agent.HistoryStore) ServerOption {
	return func(s *Server) { s.history = h }
}

// WithTools sets the tool catalog and the backend probed by /health.
func WithTools(c ToolCatalog, backend HealthChecker) ServerOption {
	return func(s *Server) {
		s.catalog = c
		s.backend = backend
	}
}

// WithFilter sets the filter used to preview a selection on /api/v1/tools.
func WithFilter(f *catalog.Filter) ServerOption {
	return func(s *Server) { s.filter = f }
}

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) { s.hooks = hm }
}

// WithMetrics enables /metrics and HTTP instrumentation.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// New creates a server. Routes are built immediately so Handler can be used
// without Start.
func New(cfg config.ServerConfig, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log.Sub("gateway"),
		clients:   NewClientRegistry(log.Sub("ws")),
		limiter:   newAuthRateLimiter(),
		startedAt: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.filter == nil {
		s.filter = catalog.NewFilter(catalog.DefaultCap, log)
	}
	s.registerRPC()
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.engine }

// checkWebSocketOrigin allows clients without an Origin header and browsers
// from a configured origin.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isOriginAllowed(origin, allowed)
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// requestTimeout bounds one chat request.
func (s *Server) requestTimeout() time.Duration {
	if s.cfg.RequestTimeout <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(s.cfg.RequestTimeout) * time.Second
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.requestTimeout() + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.addrMu.Lock()
	s.listenAddr = ln.Addr().String()
	s.addrMu.Unlock()
	s.startedAt = time.Now()

	if s.cfg.Bind != "" && s.cfg.Bind != "loopback" && s.cfg.APIKey == "" {
		s.log.Warn().Msg("listening beyond loopback without an api key")
	}
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Bool("apiKey", s.cfg.APIKey != "").
		Msg("gateway server ready")
	s.hooks.Emit(ctx, hooks.EventServerStart, map[string]any{"addr": ln.Addr().String()})

	go s.limiter.run(ctx)
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		s.hooks.Emit(context.Background(), hooks.EventServerStop, nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.CloseAll()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("graceful shutdown incomplete")
		}
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.listenAddr
}
