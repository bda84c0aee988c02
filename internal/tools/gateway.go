package tools

import (
	"context"
	"errors"
	"time"

	"github.com/soyeahso/rentdesk/internal/logging"
	"github.com/soyeahso/rentdesk/internal/metrics"
)

// Failure is the payload returned for a call that did not succeed. It never
// surfaces as a Go error to the caller.
type Failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// AsFailure reports whether v is a failure payload, either a Failure or a
// decoded {"success": false, ...} object from the backend.
func AsFailure(v any) (Failure, bool) {
	switch f := v.(type) {
	case Failure:
		return f, true
	case *Failure:
		if f != nil {
			return *f, true
		}
	case map[string]any:
		if ok, present := f["success"].(bool); present && !ok {
			out := Failure{Error: "tool reported failure"}
			for _, k := range []string{"error", "message"} {
				if s, _ := f[k].(string); s != "" {
					out.Error = s
					break
				}
			}
			return out, true
		}
	}
	return Failure{}, false
}

// GatewayOptions tunes a Gateway.
type GatewayOptions struct {
	// Timeout bounds each invocation. Zero means no extra deadline.
	Timeout time.Duration

	// ValidateArgs checks arguments against the catalog schema before calling.
	ValidateArgs bool

	Metrics *metrics.Metrics
}

// Gateway invokes tools on the backend on behalf of a session.
type Gateway struct {
	backend Backend
	catalog *CatalogCache
	opts    GatewayOptions
	log     *logging.Logger
}

// NewGateway creates a gateway. catalog may be nil, which disables
// argument validation.
func NewGateway(backend Backend, catalog *CatalogCache, opts GatewayOptions, log *logging.Logger) *Gateway {
	return &Gateway{
		backend: backend,
		catalog: catalog,
		opts:    opts,
		log:     log.Sub("tools.gateway"),
	}
}

// Backend returns the underlying backend.
func (g *Gateway) Backend() Backend { return g.backend }

// Invoke calls a tool and returns its result payload. Every failure, from
// transport errors to backend-reported errors, comes back as a Failure
// value rather than an error.
func (g *Gateway) Invoke(ctx context.Context, name string, args map[string]any, auth Auth) any {
	if name == "" {
		return Failure{Error: "tool name is required"}
	}

	if g.opts.ValidateArgs && g.catalog != nil {
		if desc, ok := g.catalog.Lookup(ctx, name); ok {
			if err := ValidateArguments(desc, args); err != nil {
				g.opts.Metrics.ObserveTool(name, "error", 0)
				g.log.Warn().Str("tool", name).Err(err).Msg("rejected tool arguments")
				return Failure{Error: err.Error()}
			}
		}
	}

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := g.backend.CallTool(ctx, name, args, auth)
	elapsed := time.Since(start)

	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "tool call timed out: " + name
		}
		g.opts.Metrics.ObserveTool(name, "error", elapsed)
		g.log.Warn().Str("tool", name).Dur("elapsed", elapsed).Err(err).Msg("tool call failed")
		return Failure{Error: msg}
	}

	if f, failed := AsFailure(result); failed {
		g.opts.Metrics.ObserveTool(name, "error", elapsed)
		g.log.Info().Str("tool", name).Str("error", f.Error).Msg("tool reported failure")
		return f
	}

	g.opts.Metrics.ObserveTool(name, "success", elapsed)
	g.log.Debug().Str("tool", name).Dur("elapsed", elapsed).Bool("authenticated", auth.Token != "").Msg("tool call succeeded")
	return result
}
