package domain

import "time"

// DefaultSessionID is used whenever a caller does not name a session.
const DefaultSessionID = "default"

// ResolveSessionID returns id, or DefaultSessionID when id is empty.
func ResolveSessionID(id string) string {
	if id == "" {
		return DefaultSessionID
	}
	return id
}

// SessionCredential is the stored auth state of one logical user session.
type SessionCredential struct {
	SessionID      string    `json:"sessionId"`
	UserID         string    `json:"userId,omitempty"`
	Token          string    `json:"token"`
	TokenExpiresAt time.Time `json:"tokenExpiresAt,omitzero"`
	RefreshToken   string    `json:"refreshToken,omitempty"`
	LoginTime      time.Time `json:"loginTime"`
}

// ValidAt reports whether the credential carries a token that has not
// expired at now. A zero TokenExpiresAt means the token never expires.
func (c SessionCredential) ValidAt(now time.Time) bool {
	if c.Token == "" {
		return false
	}
	return c.TokenExpiresAt.IsZero() || !now.After(c.TokenExpiresAt)
}

// SessionContext is the read-side view of a session. An unknown or expired
// session yields IsAuthenticated=false rather than an error.
type SessionContext struct {
	SessionID       string     `json:"sessionId"`
	IsAuthenticated bool       `json:"isAuthenticated"`
	Token           string     `json:"-"`
	UserID          string     `json:"userId,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	RefreshToken    string     `json:"-"`
}

// Anonymous returns the unauthenticated context for a session id.
func Anonymous(sessionID string) SessionContext {
	return SessionContext{SessionID: ResolveSessionID(sessionID)}
}

// ContextFrom derives the read view of a stored credential at now.
func ContextFrom(c SessionCredential, now time.Time) SessionContext {
	if !c.ValidAt(now) {
		return Anonymous(c.SessionID)
	}
	sc := SessionContext{
		SessionID:       c.SessionID,
		IsAuthenticated: true,
		Token:           c.Token,
		UserID:          c.UserID,
		RefreshToken:    c.RefreshToken,
	}
	if !c.TokenExpiresAt.IsZero() {
		exp := c.TokenExpiresAt
		sc.ExpiresAt = &exp
	}
	return sc
}
