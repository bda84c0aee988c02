// Package tools executes catalog tools against the external tool backend.
package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/rentdesk/internal/config"
	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/soyeahso/rentdesk/internal/logging"
)

// ErrUnknownTool is returned for a tool name the backend does not list.
var ErrUnknownTool = errors.New("unknown tool")

// BackendError is a failure reported by the tool backend itself.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("tool backend: %d %s", e.Status, e.Message)
	}
	return "tool backend: " + e.Message
}

// Auth is the caller identity forwarded with an invocation. The backend,
// not rentdesk, decides what the identity may do.
type Auth struct {
	Token  string
	UserID string
}

// AuthFor derives the forwarded identity for a session. The bearer token is
// only sent while the session is authenticated; userID, when given, wins
// over the session's stored user.
func AuthFor(sc domain.SessionContext, userID string) Auth {
	a := Auth{UserID: userID}
	if sc.IsAuthenticated {
		a.Token = sc.Token
		if a.UserID == "" {
			a.UserID = sc.UserID
		}
	}
	return a
}

// Backend is the external tool service.
type Backend interface {
	// Name identifies the transport ("http", "mcp").
	Name() string

	// ListTools returns the full catalog.
	ListTools(ctx context.Context) ([]domain.ToolDescriptor, error)

	// CallTool invokes one tool and returns its decoded result payload.
	CallTool(ctx context.Context, name string, args map[string]any, auth Auth) (any, error)

	// Health returns nil when the backend is reachable.
	Health(ctx context.Context) error
}

// NewBackendFromConfig builds the configured transport.
func NewBackendFromConfig(cfg config.ToolsConfig, log *logging.Logger) (Backend, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Transport {
	case "", "http":
		return NewHTTPBackend(cfg.BaseURL, timeout, log), nil
	case "mcp":
		return NewMCPBackend(cfg.BaseURL, timeout, log), nil
	default:
		return nil, fmt.Errorf("unknown tool transport %q", cfg.Transport)
	}
}
