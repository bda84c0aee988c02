// Package toolcall turns free-text model replies into structured tool calls.
//
// Model output is never assumed to be valid JSON. Extraction runs an ordered
// chain of strategies and returns the first success; a reply that names no
// known tool is a normal "no call" outcome rather than an error.
package toolcall

import (
	"encoding/json"
	"strings"

	"github.com/soyeahso/rentdesk/internal/domain"
)

// Known is the set of tool names a reply may refer to.
type Known map[string]struct{}

// NewKnown builds a Known set from tool names.
func NewKnown(names ...string) Known {
	k := make(Known, len(names))
	for _, n := range names {
		if n != "" {
			k[n] = struct{}{}
		}
	}
	return k
}

// KnownFrom builds a Known set from tool descriptors.
func KnownFrom(tools []domain.ToolDescriptor) Known {
	k := make(Known, len(tools))
	for _, t := range tools {
		k[t.Name] = struct{}{}
	}
	return k
}

// Has reports whether name is a known tool.
func (k Known) Has(name string) bool {
	_, ok := k[name]
	return ok
}

// Strategy attempts to read one tool call out of text.
type Strategy func(text string, known Known) (domain.ToolInvocationRequest, bool)

// Chain is the strategy order used by Extract.
var Chain = []Strategy{
	WholeText,
	EmbeddedObject,
	LiteralName,
}

// Extract returns the single tool call carried by text, if any.
func Extract(text string, known Known) (domain.ToolInvocationRequest, bool) {
	if len(known) == 0 {
		return domain.ToolInvocationRequest{}, false
	}
	for _, s := range Chain {
		if call, ok := s(text, known); ok {
			return call, true
		}
	}
	return domain.ToolInvocationRequest{}, false
}

// ExtractAll returns the tool calls carried by text. Several calls are
// only read from an explicit batch: a JSON array of calls, or an object
// with a "tool_calls" or "calls" array. Anything else yields at most the
// single call Extract finds. Repeated identical calls are dropped. It
// returns nil when there is none.
func ExtractAll(text string, known Known) []domain.ToolInvocationRequest {
	if len(known) == 0 {
		return nil
	}

	var whole any
	if err := json.Unmarshal([]byte(StripFences(text)), &whole); err == nil {
		if calls := fromValue(whole, known); len(calls) > 0 {
			return dedupe(calls)
		}
	}

	// A batch wrapper inside prose counts only when no single call comes
	// before it.
	for _, cand := range scanObjects(text) {
		obj, ok := parseObject(cand)
		if !ok {
			continue
		}
		if _, ok := fromObject(obj, known); ok {
			break
		}
		if calls := fromValue(obj, known); len(calls) > 0 {
			return dedupe(calls)
		}
	}

	if call, ok := Extract(text, known); ok {
		return []domain.ToolInvocationRequest{call}
	}
	return nil
}

// dedupe drops calls whose name and arguments repeat an earlier call.
func dedupe(calls []domain.ToolInvocationRequest) []domain.ToolInvocationRequest {
	seen := make(map[string]struct{}, len(calls))
	out := calls[:0:0]
	for _, c := range calls {
		args, err := json.Marshal(c.Arguments)
		if err != nil {
			out = append(out, c)
			continue
		}
		key := c.Name + "\x00" + string(args)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// WholeText parses the fence-stripped text as one JSON object.
func WholeText(text string, known Known) (domain.ToolInvocationRequest, bool) {
	obj, ok := parseObject(StripFences(text))
	if !ok {
		return domain.ToolInvocationRequest{}, false
	}
	return fromObject(obj, known)
}

// EmbeddedObject tries every balanced {...} substring in order of
// appearance, outer objects before the objects nested in them.
func EmbeddedObject(text string, known Known) (domain.ToolInvocationRequest, bool) {
	for _, cand := range scanObjects(text) {
		if call, ok := fromCandidate(cand, known); ok {
			return call, true
		}
	}
	return domain.ToolInvocationRequest{}, false
}

// LiteralName looks for a known tool name written out in the text. A JSON
// object following the name is unwrapped when it names a tool itself and
// is otherwise taken as the arguments.
func LiteralName(text string, known Known) (domain.ToolInvocationRequest, bool) {
	name, end := findName(text, known)
	if name == "" {
		return domain.ToolInvocationRequest{}, false
	}

	call := domain.ToolInvocationRequest{Name: name, Arguments: map[string]any{}}
	rest := text[end:]
	open := strings.IndexByte(rest, '{')
	if open < 0 {
		return call, true
	}
	raw, ok := balancedAt(rest, open)
	if !ok {
		return call, true
	}
	obj, ok := parseObject(raw)
	if !ok {
		return call, true
	}
	if inner, ok := fromObject(obj, known); ok {
		return inner, true
	}
	call.Arguments = obj
	return call, true
}

// fromCandidate extracts the first call from one balanced substring. When
// the object names no tool, the objects nested inside it are tried instead.
func fromCandidate(raw string, known Known) (domain.ToolInvocationRequest, bool) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		if calls := fromValue(v, known); len(calls) > 0 {
			return calls[0], true
		}
	}

	for _, inner := range scanObjects(raw[1 : len(raw)-1]) {
		if call, ok := fromCandidate(inner, known); ok {
			return call, true
		}
	}
	return domain.ToolInvocationRequest{}, false
}

// fromValue reads calls from a decoded JSON value: a call object, an array
// of call objects, or an object wrapping such an array.
func fromValue(v any, known Known) []domain.ToolInvocationRequest {
	switch t := v.(type) {
	case map[string]any:
		if call, ok := fromObject(t, known); ok {
			return []domain.ToolInvocationRequest{call}
		}
		for _, key := range []string{"tool_calls", "toolCalls", "calls"} {
			if list, ok := t[key].([]any); ok {
				return fromValue(list, known)
			}
		}
	case []any:
		var calls []domain.ToolInvocationRequest
		for _, item := range t {
			if obj, ok := item.(map[string]any); ok {
				if call, ok := fromObject(obj, known); ok {
					calls = append(calls, call)
				}
			}
		}
		return calls
	}
	return nil
}

var (
	nameKeys = []string{"tool", "name", "function"}
	argKeys  = []string{"args", "arguments", "parameters"}
)

// fromObject reads a call from an object that names a known tool. An
// OpenAI-style {"function": {"name": ..., "arguments": "..."}} is unwrapped.
func fromObject(obj map[string]any, known Known) (domain.ToolInvocationRequest, bool) {
	for _, key := range nameKeys {
		switch v := obj[key].(type) {
		case string:
			if known.Has(v) {
				return domain.ToolInvocationRequest{Name: v, Arguments: argsOf(obj)}, true
			}
		case map[string]any:
			if call, ok := fromObject(v, known); ok {
				return call, true
			}
		}
	}
	return domain.ToolInvocationRequest{}, false
}

func argsOf(obj map[string]any) map[string]any {
	for _, key := range argKeys {
		v, present := obj[key]
		if !present {
			continue
		}
		switch a := v.(type) {
		case map[string]any:
			return a
		case string:
			if nested, ok := parseObject(a); ok {
				return nested
			}
		}
		return map[string]any{}
	}
	return map[string]any{}
}

func parseObject(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// findName returns the known name that occurs earliest in text, preferring
// the longest name at the same position, and the offset just past it. A
// name standing as a whole identifier wins over one embedded in a longer
// word, which is only used when nothing else matches.
func findName(text string, known Known) (string, int) {
	if name, end := earliest(text, known, indexIdent); name != "" {
		return name, end
	}
	return earliest(text, known, strings.Index)
}

func earliest(text string, known Known, index func(s, name string) int) (string, int) {
	best, bestAt := "", -1
	for name := range known {
		at := index(text, name)
		if at < 0 {
			continue
		}
		if bestAt < 0 || at < bestAt || (at == bestAt && len(name) > len(best)) {
			best, bestAt = name, at
		}
	}
	if bestAt < 0 {
		return "", 0
	}
	return best, bestAt + len(best)
}

// indexIdent finds name in text where it is not part of a longer identifier.
func indexIdent(text, name string) int {
	from := 0
	for {
		i := strings.Index(text[from:], name)
		if i < 0 {
			return -1
		}
		at := from + i
		end := at + len(name)
		if (at == 0 || !isIdentByte(text[at-1])) && (end == len(text) || !isIdentByte(text[end])) {
			return at
		}
		from = at + 1
	}
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '-' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
