// Package session holds short-lived bearer credentials keyed by session id.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/soyeahso/rentdesk/internal/domain"
)

// DefaultTTL is applied when SetToken is called without an expiry.
const DefaultTTL = time.Hour

// ErrNoStore is returned when a store backend is requested that does not exist.
var ErrNoStore = errors.New("session: unknown store backend")

// TokenOptions tunes SetToken. A zero ExpiresIn means the store default.
type TokenOptions struct {
	ExpiresIn    time.Duration
	RefreshToken string
}

// Store maps a session id to a credential with expiry. An empty session id
// always resolves to domain.DefaultSessionID. Implementations must keep
// every operation atomic per session key.
type Store interface {
	// SetToken creates or overwrites the credential of a session.
	SetToken(ctx context.Context, token, userID, sessionID string, opts TokenOptions) error

	// GetToken returns the token while it is unexpired. An expired session
	// is removed as a side effect.
	GetToken(ctx context.Context, sessionID string) (string, bool)

	// GetSessionContext never fails; unknown sessions are unauthenticated.
	GetSessionContext(ctx context.Context, sessionID string) domain.SessionContext

	// ClearSession removes one session. Clearing an unknown session is a no-op.
	ClearSession(ctx context.Context, sessionID string) error

	// ClearAllSessions removes every session.
	ClearAllSessions(ctx context.Context) error

	// Len reports the number of stored sessions, expired or not.
	Len(ctx context.Context) int
}

// Sweeper is implemented by stores that need periodic eviction of expired
// entries in addition to the lazy eviction on read.
type Sweeper interface {
	Sweep(ctx context.Context) int
}

func expiryFor(now time.Time, ttl time.Duration, opts TokenOptions) time.Time {
	if opts.ExpiresIn != 0 {
		ttl = opts.ExpiresIn
	}
	return now.Add(ttl)
}
