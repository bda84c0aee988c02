package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/rentdesk/internal/domain"
)

// defaultSearchLimit applies when Search is given a non-positive limit.
const defaultSearchLimit = 20

// SQLiteHistory keeps conversation turns in SQLite. It satisfies
// agent.HistoryStore.
type SQLiteHistory struct {
	db *DB
}

// NewSQLiteHistory creates a history store using the given database.
func NewSQLiteHistory(db *DB) *SQLiteHistory {
	return &SQLiteHistory{db: db}
}

// Append inserts turns in one transaction so a user/assistant pair is
// recorded together or not at all.
func (h *SQLiteHistory) Append(ctx context.Context, sessionID string, turns ...domain.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := h.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO turns (session_id, role, content, tools_called, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for _, t := range turns {
		var toolsJSON sql.NullString
		if len(t.ToolsCalled) > 0 {
			if data, err := json.Marshal(t.ToolsCalled); err == nil {
				toolsJSON = sql.NullString{String: string(data), Valid: true}
			}
		}
		ts := t.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, sessionID, t.Role, t.Content, toolsJSON, ts.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("append turn: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Recent returns up to n of the latest turns, oldest first.
func (h *SQLiteHistory) Recent(ctx context.Context, sessionID string, n int) ([]domain.ConversationTurn, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := h.db.sql.QueryContext(ctx,
		`SELECT session_id, role, content, tools_called, created_at FROM (
			SELECT id, session_id, role, content, tools_called, created_at
			FROM turns WHERE session_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

// All returns every turn of a session, oldest first.
func (h *SQLiteHistory) All(ctx context.Context, sessionID string) ([]domain.ConversationTurn, error) {
	rows, err := h.db.sql.QueryContext(ctx,
		`SELECT session_id, role, content, tools_called, created_at
		 FROM turns WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

// Search runs a full-text query over one session's turns, most recent
// first. Every word of query must occur; case and diacritics are ignored.
func (h *SQLiteHistory) Search(ctx context.Context, sessionID, query string, limit int) ([]domain.ConversationTurn, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	rows, err := h.db.sql.QueryContext(ctx,
		`SELECT t.session_id, t.role, t.content, t.tools_called, t.created_at
		 FROM turns_fts
		 JOIN turns t ON t.id = turns_fts.rowid
		 WHERE turns_fts MATCH ?
		   AND t.session_id = ?
		 ORDER BY t.id DESC
		 LIMIT ?`,
		match, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search turns: %w", err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

// Clear deletes a session's turns.
func (h *SQLiteHistory) Clear(ctx context.Context, sessionID string) error {
	_, err := h.db.sql.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sessionID)
	return err
}

// SessionSummary describes one session with recorded history.
type SessionSummary struct {
	SessionID    string    `json:"sessionId"`
	Turns        int       `json:"turns"`
	LastActivity time.Time `json:"lastActivity"`
}

// Sessions lists sessions by most recent activity.
func (h *SQLiteHistory) Sessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := h.db.sql.QueryContext(ctx,
		`SELECT session_id, COUNT(*), MAX(created_at)
		 FROM turns GROUP BY session_id ORDER BY MAX(id) DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var last string
		if err := rows.Scan(&s.SessionID, &s.Turns, &last); err != nil {
			return nil, err
		}
		s.LastActivity, _ = time.Parse(time.RFC3339Nano, last)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ftsQuery quotes each word so user text is never parsed as FTS5 syntax.
func ftsQuery(q string) string {
	words := strings.Fields(q)
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, `"`+strings.ReplaceAll(w, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}

func scanTurns(rows *sql.Rows) ([]domain.ConversationTurn, error) {
	var turns []domain.ConversationTurn
	for rows.Next() {
		var t domain.ConversationTurn
		var created string
		var toolsJSON sql.NullString

		if err := rows.Scan(&t.SessionID, &t.Role, &t.Content, &toolsJSON, &created); err != nil {
			return nil, err
		}
		t.Timestamp, _ = time.Parse(time.RFC3339Nano, created)
		if toolsJSON.Valid && toolsJSON.String != "" {
			_ = json.Unmarshal([]byte(toolsJSON.String), &t.ToolsCalled)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
