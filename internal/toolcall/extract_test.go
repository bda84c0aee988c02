package toolcall

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var known = NewKnown(
	"count_rooms_by_house_and_status",
	"list_houses",
	"get_room",
	"get_room_services",
	"create_tenant",
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantName string
		wantArgs map[string]any
	}{
		{
			name:     "plain object",
			text:     `{"tool":"list_houses","args":{}}`,
			wantName: "list_houses",
			wantArgs: map[string]any{},
		},
		{
			name:     "fenced object",
			text:     "```json\n{\"tool\": \"get_room\", \"args\": {\"roomId\": 12}}\n```",
			wantName: "get_room",
			wantArgs: map[string]any{"roomId": float64(12)},
		},
		{
			name:     "name and arguments keys",
			text:     `{"name":"get_room","arguments":{"roomId":"A1"}}`,
			wantName: "get_room",
			wantArgs: map[string]any{"roomId": "A1"},
		},
		{
			name:     "function and parameters keys",
			text:     `{"function":"list_houses","parameters":{"page":2}}`,
			wantName: "list_houses",
			wantArgs: map[string]any{"page": float64(2)},
		},
		{
			name:     "arguments as a JSON string",
			text:     `{"tool":"get_room","arguments":"{\"roomId\": 7}"}`,
			wantName: "get_room",
			wantArgs: map[string]any{"roomId": float64(7)},
		},
		{
			name:     "openai style function object",
			text:     `{"type":"function","function":{"name":"get_room","arguments":"{\"roomId\":3}"}}`,
			wantName: "get_room",
			wantArgs: map[string]any{"roomId": float64(3)},
		},
		{
			name:     "missing args",
			text:     `{"tool":"list_houses"}`,
			wantName: "list_houses",
			wantArgs: map[string]any{},
		},
		{
			name:     "prose around object",
			text:     "Sure! I'll check that.\n{\"tool\": \"count_rooms_by_house_and_status\", \"args\": {\"houseId\": 1, \"status\": \"AVAILABLE\"}}\nOne moment.",
			wantName: "count_rooms_by_house_and_status",
			wantArgs: map[string]any{"houseId": float64(1), "status": "AVAILABLE"},
		},
		{
			name:     "braces inside strings",
			text:     `Note: {"note":"use } carefully"} then {"tool":"create_tenant","args":{"name":"An {Nguyen}"}}`,
			wantName: "create_tenant",
			wantArgs: map[string]any{"name": "An {Nguyen}"},
		},
		{
			name:     "call nested in a wrapper object",
			text:     `Result: {"response": {"tool": "get_room", "args": {"roomId": 5}}}`,
			wantName: "get_room",
			wantArgs: map[string]any{"roomId": float64(5)},
		},
		{
			name:     "stray unbalanced brace before call",
			text:     `I think { this needs {"tool":"list_houses","args":{"city":"HCM"}}`,
			wantName: "list_houses",
			wantArgs: map[string]any{"city": "HCM"},
		},
		{
			name:     "literal name with trailing arguments",
			text:     `I will call get_room with {"roomId": 9}`,
			wantName: "get_room",
			wantArgs: map[string]any{"roomId": float64(9)},
		},
		{
			name:     "literal name followed by invalid json",
			text:     `call get_room_services: {"tool": "get_room_services", "args": {"roomId": 4}, "x": }`,
			wantName: "get_room_services",
			wantArgs: map[string]any{},
		},
		{
			name:     "literal name without json",
			text:     "Let me run list_houses for you.",
			wantName: "list_houses",
			wantArgs: map[string]any{},
		},
		{
			name:     "truncated json falls back to literal name",
			text:     `{"tool":"get_room","args":{"roomId":11}`,
			wantName: "get_room",
			wantArgs: map[string]any{"roomId": float64(11)},
		},
		{
			name:     "longest name at same position wins",
			text:     "use get_room_services now",
			wantName: "get_room_services",
			wantArgs: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, ok := Extract(tt.text, known)
			require.True(t, ok)
			assert.Equal(t, tt.wantName, call.Name)
			assert.Equal(t, tt.wantArgs, call.Arguments)
		})
	}
}

func TestExtract_NoCall(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"conversational", "There are 3 houses in your portfolio."},
		{"unknown tool json", `{"tool":"delete_everything","args":{}}`},
		{"malformed", "{{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Extract(tt.text, known)
			assert.False(t, ok)
		})
	}
}

func TestLiteralName_EmbeddedNames(t *testing.T) {
	t.Run("substring inside a longer word", func(t *testing.T) {
		call, ok := Extract("see get_rooms_by_floor", known)
		require.True(t, ok)
		assert.Equal(t, "get_room", call.Name)
		assert.Empty(t, call.Arguments)
	})

	t.Run("whole identifier preferred", func(t *testing.T) {
		call, ok := LiteralName("get_rooms2 is gone, use get_room_services", known)
		require.True(t, ok)
		assert.Equal(t, "get_room_services", call.Name)
	})
}

func TestLiteralName_UnwrapsFollowingCall(t *testing.T) {
	call, ok := LiteralName(`get_room -> {"tool":"get_room","args":{"roomId":2}}`, known)
	require.True(t, ok)
	assert.Equal(t, "get_room", call.Name)
	assert.Equal(t, map[string]any{"roomId": float64(2)}, call.Arguments)
}

func TestExtract_NoKnownTools(t *testing.T) {
	_, ok := Extract(`{"tool":"list_houses"}`, NewKnown())
	assert.False(t, ok)
}

func TestExtract_RoundTrip(t *testing.T) {
	argSets := []map[string]any{
		{},
		{"houseId": float64(1), "status": "AVAILABLE"},
		{"filter": map[string]any{"floor": float64(2), "tags": []any{"a", "b"}}},
		{"note": "braces { } and \"quotes\""},
	}
	for name := range known {
		for i, args := range argSets {
			t.Run(fmt.Sprintf("%s/%d", name, i), func(t *testing.T) {
				raw, err := json.Marshal(map[string]any{"tool": name, "args": args})
				require.NoError(t, err)

				call, ok := Extract(string(raw), known)
				require.True(t, ok)
				assert.Equal(t, domain.ToolInvocationRequest{Name: name, Arguments: args}, call)
			})
		}
	}
}

func TestExtractAll(t *testing.T) {
	t.Run("array", func(t *testing.T) {
		calls := ExtractAll(`[{"tool":"list_houses"},{"tool":"get_room","args":{"roomId":1}},{"tool":"nope"}]`, known)
		require.Len(t, calls, 2)
		assert.Equal(t, "list_houses", calls[0].Name)
		assert.Equal(t, "get_room", calls[1].Name)
	})

	t.Run("tool_calls wrapper", func(t *testing.T) {
		calls := ExtractAll("```json\n{\"tool_calls\":[{\"name\":\"get_room\"},{\"name\":\"list_houses\"}]}\n```", known)
		require.Len(t, calls, 2)
		assert.Equal(t, "get_room", calls[0].Name)
	})

	t.Run("several objects in prose yield the first", func(t *testing.T) {
		var b strings.Builder
		b.WriteString("Running these:\n")
		for i := range 8 {
			fmt.Fprintf(&b, "%d. {\"tool\":\"get_room\",\"args\":{\"roomId\":%d}}\n", i+1, i)
		}
		calls := ExtractAll(b.String(), known)
		require.Len(t, calls, 1)
		assert.Equal(t, float64(0), calls[0].Arguments["roomId"])
	})

	t.Run("call repeated in a recap runs once", func(t *testing.T) {
		text := "I'll add it now.\n```json\n{\"name\":\"create_tenant\",\"arguments\":{\"roomId\":1}}\n```\n" +
			"To recap, I called {\"name\":\"create_tenant\",\"arguments\":{\"roomId\":1}}."
		calls := ExtractAll(text, known)
		require.Len(t, calls, 1)
		assert.Equal(t, "create_tenant", calls[0].Name)
		assert.Equal(t, map[string]any{"roomId": float64(1)}, calls[0].Arguments)
	})

	t.Run("identical calls in a batch collapse", func(t *testing.T) {
		calls := ExtractAll(`[{"tool":"get_room","args":{"roomId":1}},{"tool":"get_room","args":{"roomId":1}},{"tool":"get_room","args":{"roomId":2}}]`, known)
		require.Len(t, calls, 2)
		assert.Equal(t, float64(2), calls[1].Arguments["roomId"])
	})

	t.Run("batch wrapper inside prose", func(t *testing.T) {
		calls := ExtractAll(`Sure: {"calls":[{"name":"list_houses"},{"name":"get_room","arguments":{"roomId":3}}]} done`, known)
		require.Len(t, calls, 2)
		assert.Equal(t, "list_houses", calls[0].Name)
	})

	t.Run("single literal", func(t *testing.T) {
		calls := ExtractAll("call list_houses", known)
		require.Len(t, calls, 1)
		assert.Equal(t, "list_houses", calls[0].Name)
	})

	t.Run("none", func(t *testing.T) {
		assert.Nil(t, ExtractAll("hello there", known))
		assert.Nil(t, ExtractAll(`{"tool":"list_houses"}`, nil))
	})
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("```\n{\"a\":1}```"))
	assert.Equal(t, "plain", StripFences("  plain \n"))
}

func TestScanObjects(t *testing.T) {
	got := scanObjects(`a {"x":{"y":1}} b {"s":"}"} c {`)
	assert.Equal(t, []string{`{"x":{"y":1}}`, `{"s":"}"}`}, got)
	assert.Empty(t, scanObjects("no braces"))
}

func TestClean(t *testing.T) {
	in := "Here you go:\n```\nroom A1\n```\n<function_calls><invoke name=\"x\"></invoke></function_calls>\n\n\n\nDone."
	assert.Equal(t, "Here you go:\n\nroom A1\n\nDone.", Clean(in))
}
