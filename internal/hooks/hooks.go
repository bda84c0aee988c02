// Package hooks dispatches rentdesk lifecycle events to registered handlers.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/soyeahso/rentdesk/internal/logging"
)

// Event names.
const (
	EventMessageReceived = "message_received"
	EventToolsFiltered   = "tools_filtered"
	EventToolInvoked     = "tool_invoked"
	EventResponseSent    = "response_sent"
	EventSessionLogin    = "session_login"
	EventSessionLogout   = "session_logout"
	EventServerStart     = "server_start"
	EventServerStop      = "server_stop"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventMessageReceived,
	EventToolsFiltered,
	EventToolInvoked,
	EventResponseSent,
	EventSessionLogin,
	EventSessionLogout,
	EventServerStart,
	EventServerStop,
}

// Payload carries event data to hook handlers. Data never holds tokens.
type Payload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler handles one event. An error is logged and does not stop the
// remaining handlers.
type Handler func(ctx context.Context, p Payload) error

// Manager holds hook registrations. A nil *Manager accepts Emit calls and
// does nothing, so components can treat hooks as optional.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a named handler for event.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// OnAll registers handler for every known event.
func (m *Manager) OnAll(name string, handler Handler) {
	for _, e := range AllEvents {
		m.On(e, name, handler)
	}
}

// Off removes all handlers with the given name from the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handlers := m.handlers[event]
	filtered := make([]namedHandler, 0, len(handlers))
	for _, h := range handlers {
		if h.name != name {
			filtered = append(filtered, h)
		}
	}
	m.handlers[event] = filtered
}

func (m *Manager) snapshot(event string) []namedHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]namedHandler(nil), m.handlers[event]...)
}

// Emit runs the event's handlers synchronously in registration order.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	if m == nil {
		return
	}
	payload := Payload{Event: event, Data: data}
	for _, h := range m.snapshot(event) {
		m.call(ctx, h, payload)
	}
}

// EmitAsync runs each handler in its own goroutine and returns immediately.
func (m *Manager) EmitAsync(ctx context.Context, event string, data map[string]any) {
	if m == nil {
		return
	}
	payload := Payload{Event: event, Data: data}
	for _, h := range m.snapshot(event) {
		go m.call(ctx, h, payload)
	}
}

// call runs one handler, turning a panic into a logged error.
func (m *Manager) call(ctx context.Context, h namedHandler, p Payload) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return h.handler(ctx, p)
	}()
	if err != nil {
		m.log.Warn().
			Err(err).
			Str("event", p.Event).
			Str("handler", h.name).
			Msg("hook handler error")
	}
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the sorted events that have at least one handler.
func (m *Manager) Events() []string {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]string, 0, len(m.handlers))
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	sort.Strings(events)
	return events
}

// LogHandler returns a handler that writes each event to log at debug level.
func LogHandler(log *logging.Logger) Handler {
	return func(_ context.Context, p Payload) error {
		ev := log.Debug().Str("event", p.Event)
		for k, v := range p.Data {
			ev = ev.Interface(k, v)
		}
		ev.Msg("hook event")
		return nil
	}
}
