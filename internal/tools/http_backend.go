package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/soyeahso/rentdesk/internal/logging"
	"github.com/soyeahso/rentdesk/internal/version"
)

// HeaderUserID carries the caller's user id to the tool backend.
const HeaderUserID = "X-User-Id"

// HTTPBackend talks to a REST tool server:
//
//	GET  /tools       → {"tools": [...]} or [...]
//	POST /tools/call  ← {"name": ..., "arguments": {...}}
//	GET  /health
type HTTPBackend struct {
	baseURL string
	client  *http.Client
	log     *logging.Logger
}

// NewHTTPBackend creates a REST backend. A non-positive timeout means 30s.
func NewHTTPBackend(baseURL string, timeout time.Duration, log *logging.Logger) *HTTPBackend {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log.Sub("tools.http"),
	}
}

func (b *HTTPBackend) Name() string { return "http" }

// wireTool is a catalog entry as served by the backend. Parameters may come
// either as a flat map or as a JSON Schema object.
type wireTool struct {
	Name        string                          `json:"name"`
	Description string                          `json:"description"`
	Parameters  map[string]domain.ParameterSpec `json:"parameters,omitempty"`
	InputSchema map[string]any                  `json:"inputSchema,omitempty"`
	Category    domain.ToolCategory             `json:"category,omitempty"`
}

func (w wireTool) descriptor() domain.ToolDescriptor {
	params := w.Parameters
	if len(params) == 0 && w.InputSchema != nil {
		params = ParametersFromSchema(w.InputSchema)
	}
	return domain.ToolDescriptor{
		Name:        w.Name,
		Description: w.Description,
		Parameters:  params,
		Category:    w.Category,
	}
}

func (b *HTTPBackend) ListTools(ctx context.Context) ([]domain.ToolDescriptor, error) {
	body, err := b.do(ctx, http.MethodGet, "/tools", nil, Auth{})
	if err != nil {
		return nil, err
	}

	var list []wireTool
	if err := json.Unmarshal(body, &list); err != nil {
		var wrapped struct {
			Tools []wireTool `json:"tools"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to parse tool list: %w", err)
		}
		list = wrapped.Tools
	}

	out := make([]domain.ToolDescriptor, 0, len(list))
	for _, w := range list {
		if w.Name == "" {
			continue
		}
		out = append(out, w.descriptor())
	}
	return out, nil
}

func (b *HTTPBackend) CallTool(ctx context.Context, name string, args map[string]any, auth Auth) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	payload, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal arguments: %w", err)
	}

	body, err := b.do(ctx, http.MethodPost, "/tools/call", payload, auth)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var result any
	if err := json.Unmarshal(body, &result); err != nil {
		return string(body), nil
	}
	return result, nil
}

func (b *HTTPBackend) Health(ctx context.Context) error {
	_, err := b.do(ctx, http.MethodGet, "/health", nil, Auth{})
	return err
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, payload []byte, auth Auth) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth.Token != "" {
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	}
	if auth.UserID != "" {
		req.Header.Set(HeaderUserID, auth.UserID)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tool backend request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool backend response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &BackendError{Status: resp.StatusCode, Message: errorMessage(respBody)}
	}
	return respBody, nil
}

// maxErrorBytes bounds an error body quoted back to the caller.
const maxErrorBytes = 200

// errorMessage pulls a readable message out of an error body.
func errorMessage(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, k := range []string{"error", "message"} {
			if s, ok := obj[k].(string); ok && s != "" {
				return s
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBytes {
		n := maxErrorBytes
		for n > 0 && !utf8.RuneStart(msg[n]) {
			n--
		}
		msg = msg[:n]
	}
	return msg
}
