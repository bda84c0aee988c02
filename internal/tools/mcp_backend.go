package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/soyeahso/rentdesk/internal/logging"
	"github.com/soyeahso/rentdesk/internal/version"
)

type authKey struct{}

// withAuth stores the caller identity for authRoundTripper.
func withAuth(ctx context.Context, a Auth) context.Context {
	return context.WithValue(ctx, authKey{}, a)
}

// authRoundTripper adds the per-call identity to MCP HTTP requests, since
// one MCP session is shared by every caller.
type authRoundTripper struct {
	next http.RoundTripper
}

func (t authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	a, _ := req.Context().Value(authKey{}).(Auth)
	if a.Token == "" && a.UserID == "" {
		return t.next.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}
	if a.UserID != "" {
		req.Header.Set(HeaderUserID, a.UserID)
	}
	return t.next.RoundTrip(req)
}

// MCPBackend talks to an MCP server over the streamable HTTP transport. The
// session is opened on first use and reopened after a failure.
type MCPBackend struct {
	endpoint string
	timeout  time.Duration
	client   *mcp.Client
	http     *http.Client
	log      *logging.Logger

	mu      sync.Mutex
	session *mcp.ClientSession
}

// NewMCPBackend creates an MCP backend for the given endpoint URL.
func NewMCPBackend(endpoint string, timeout time.Duration, log *logging.Logger) *MCPBackend {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MCPBackend{
		endpoint: endpoint,
		timeout:  timeout,
		client:   mcp.NewClient(&mcp.Implementation{Name: "rentdesk", Version: version.Version}, nil),
		http:     &http.Client{Transport: authRoundTripper{next: http.DefaultTransport}},
		log:      log.Sub("tools.mcp"),
	}
}

func (b *MCPBackend) Name() string { return "mcp" }

func (b *MCPBackend) connect(ctx context.Context) (*mcp.ClientSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		return b.session, nil
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	session, err := b.client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   b.endpoint,
		HTTPClient: b.http,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to MCP server %s: %w", b.endpoint, err)
	}
	b.log.Info().Str("endpoint", b.endpoint).Msg("MCP session opened")
	b.session = session
	return session, nil
}

// reset drops a session after a transport failure so the next call reconnects.
func (b *MCPBackend) reset(s *mcp.ClientSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == s {
		_ = s.Close()
		b.session = nil
	}
}

// Close ends the MCP session.
func (b *MCPBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	err := b.session.Close()
	b.session = nil
	return err
}

func (b *MCPBackend) ListTools(ctx context.Context) ([]domain.ToolDescriptor, error) {
	session, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}

	var out []domain.ToolDescriptor
	params := &mcp.ListToolsParams{}
	for {
		res, err := session.ListTools(ctx, params)
		if err != nil {
			b.reset(session)
			return nil, fmt.Errorf("listing MCP tools: %w", err)
		}
		for _, t := range res.Tools {
			out = append(out, descriptorFromMCP(t))
		}
		if res.NextCursor == "" {
			break
		}
		params = &mcp.ListToolsParams{Cursor: res.NextCursor}
	}
	return out, nil
}

func (b *MCPBackend) CallTool(ctx context.Context, name string, args map[string]any, auth Auth) (any, error) {
	session, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}

	res, err := session.CallTool(withAuth(ctx, auth), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		if ctx.Err() == nil {
			b.reset(session)
		}
		return nil, fmt.Errorf("calling MCP tool %s: %w", name, err)
	}
	return resultFromMCP(res), nil
}

func (b *MCPBackend) Health(ctx context.Context) error {
	session, err := b.connect(ctx)
	if err != nil {
		return err
	}
	if err := session.Ping(ctx, nil); err != nil {
		b.reset(session)
		return err
	}
	return nil
}

// descriptorFromMCP converts an MCP tool. The input schema goes through
// JSON so any schema representation the SDK uses is accepted.
func descriptorFromMCP(t *mcp.Tool) domain.ToolDescriptor {
	d := domain.ToolDescriptor{Name: t.Name, Description: t.Description}
	if t.InputSchema != nil {
		if raw, err := json.Marshal(t.InputSchema); err == nil {
			var schema map[string]any
			if json.Unmarshal(raw, &schema) == nil {
				d.Parameters = ParametersFromSchema(schema)
			}
		}
	}
	if t.Meta != nil {
		if c, ok := t.Meta["category"].(string); ok {
			d.Category = domain.ToolCategory(c)
		}
	}
	return d
}

// resultFromMCP returns structured content when present, otherwise the text
// content decoded as JSON when possible. Tool-level errors become a
// Failure payload.
func resultFromMCP(res *mcp.CallToolResult) any {
	var texts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	text := strings.Join(texts, "\n")

	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return Failure{Success: false, Error: text}
	}
	if res.StructuredContent != nil {
		return res.StructuredContent
	}

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err == nil {
		return decoded
	}
	return text
}
