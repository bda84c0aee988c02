package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/soyeahso/rentdesk/internal/domain"
)

// DefaultAssistantName is used when no name is configured.
const DefaultAssistantName = "RentDesk"

// maxResultChars bounds each tool result quoted back to the model.
const maxResultChars = 4000

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	AssistantName string
	Tools         []domain.ToolDescriptor
	Language      string
	Authenticated bool
	Now           time.Time
	ExtraPrompt   string
}

// BuildSystemPrompt constructs the decision prompt: identity, guidelines and
// the in-prompt tool list with the JSON call format the extractor parses.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	name := cfg.AssistantName
	if name == "" {
		name = DefaultAssistantName
	}
	fmt.Fprintf(&b, "You are %s, an assistant for a rental property management system.\n", name)
	fmt.Fprintf(&b, "Current date: %s\n", cfg.Now.Format("2006-01-02"))
	if cfg.Authenticated {
		b.WriteString("The user is signed in.\n")
	} else {
		b.WriteString("The user is not signed in; tools that need an account may fail.\n")
	}
	b.WriteString("\n")

	b.WriteString("Guidelines:\n")
	fmt.Fprintf(&b, "- Answer in %s.\n", textsFor(cfg.Language).LanguageName)
	b.WriteString("- Use a tool whenever the question needs data from the system.\n")
	b.WriteString("- Never invent ids, counts or amounts.\n")

	if len(cfg.Tools) > 0 {
		b.WriteString("\n## Available Tools\n\n")
		b.WriteString("To call a tool, reply with only a JSON object:\n\n")
		b.WriteString(`{"name": "tool_name", "arguments": {"param": "value"}}` + "\n\n")
		b.WriteString("To call several tools, reply with a JSON array of such objects. ")
		b.WriteString("If no tool is needed, answer in plain text.\n\n")
		for _, t := range cfg.Tools {
			writeTool(&b, t)
		}
	} else {
		b.WriteString("\nNo tools are available right now. Answer from the conversation alone.\n")
	}

	if cfg.ExtraPrompt != "" {
		b.WriteString("\n")
		b.WriteString(cfg.ExtraPrompt)
		b.WriteString("\n")
	}

	return b.String()
}

func writeTool(b *strings.Builder, t domain.ToolDescriptor) {
	fmt.Fprintf(b, "### %s\n", t.Name)
	if t.Description != "" {
		fmt.Fprintf(b, "%s\n", t.Description)
	}
	if len(t.Parameters) > 0 {
		names := make([]string, 0, len(t.Parameters))
		for n := range t.Parameters {
			names = append(names, n)
		}
		sort.Strings(names)

		b.WriteString("Parameters:\n")
		for _, n := range names {
			p := t.Parameters[n]
			attrs := []string{}
			if p.Type != "" {
				attrs = append(attrs, p.Type)
			}
			if p.Required {
				attrs = append(attrs, "required")
			}
			if len(p.Enum) > 0 {
				vals := make([]string, len(p.Enum))
				for i, v := range p.Enum {
					vals[i] = fmt.Sprint(v)
				}
				attrs = append(attrs, "one of: "+strings.Join(vals, ", "))
			}
			fmt.Fprintf(b, "- %s", n)
			if len(attrs) > 0 {
				fmt.Fprintf(b, " (%s)", strings.Join(attrs, "; "))
			}
			if p.Description != "" {
				fmt.Fprintf(b, ": %s", p.Description)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
}

// strictRetryInstruction is appended to the system prompt when the first
// decision named no tool although tools were offered.
const strictRetryInstruction = "\nIMPORTANT: your previous reply did not contain a tool call. " +
	"Reply with ONLY one JSON object of the form " +
	`{"name": "tool_name", "arguments": {...}}` +
	" using a tool from the list above. Do not add any other text.\n"

// conversationalPrompt is the system prompt for small talk.
func conversationalPrompt(name, lang string) string {
	if name == "" {
		name = DefaultAssistantName
	}
	return fmt.Sprintf("You are %s, a friendly assistant for a rental property management system. "+
		"The user is making small talk. Reply warmly in one or two short sentences in %s, "+
		"and offer help with houses, rooms, tenants, contracts or invoices.",
		name, textsFor(lang).LanguageName)
}

// summaryPrompt is the system prompt for turning tool results into an answer.
func summaryPrompt(name, lang string) string {
	if name == "" {
		name = DefaultAssistantName
	}
	return fmt.Sprintf("You are %s. Using only the tool results provided, answer the user's question "+
		"concisely in %s. Do not mention tool names or JSON. If a tool failed, say briefly what "+
		"could not be retrieved.", name, textsFor(lang).LanguageName)
}

// summaryInput renders the question and the executed calls for the summary call.
func summaryInput(question string, results []domain.ToolInvocationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nTool results:\n", question)
	for _, r := range results {
		args, _ := json.Marshal(r.Arguments)
		fmt.Fprintf(&b, "- %s %s: ", r.Name, args)
		if r.Failed() {
			fmt.Fprintf(&b, "ERROR: %s\n", r.ErrorMessage)
			continue
		}
		out, err := json.Marshal(r.Result)
		if err != nil {
			out = []byte(fmt.Sprint(r.Result))
		}
		s := string(out)
		if len(s) > maxResultChars {
			s = clip(s, maxResultChars) + "...(truncated)"
		}
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String()
}

// clip cuts s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
