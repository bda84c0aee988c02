package toolcall

import (
	"regexp"
	"strings"
)

// xmlFuncCallRe matches <function_calls>...</function_calls> blocks some
// models emit instead of the requested JSON.
var xmlFuncCallRe = regexp.MustCompile(`(?s)<function_calls>.*?</function_calls>`)

// xmlBlockLevelRe matches self-contained tool-use XML blocks.
var xmlBlockLevelRe = regexp.MustCompile(`(?s)(?:` +
	`<invoke\b[^>]*>.*?</invoke>` +
	`|<tool_call\b[^>]*>.*?</tool_call>` +
	`|<tool_use\b[^>]*>.*?</tool_use>` +
	`)`)

// codeFenceRe matches fence markers on their own line. Content between
// fences is kept.
var codeFenceRe = regexp.MustCompile(`(?m)^\s*` + "```" + `\w*\s*$`)

// whitespaceLineRe matches lines containing only horizontal whitespace.
var whitespaceLineRe = regexp.MustCompile(`(?m)^[ \t]+$`)

// blankLineCollapseRe collapses 3+ consecutive newlines.
var blankLineCollapseRe = regexp.MustCompile(`\n{3,}`)

// Clean strips tool-use markup from a reply that is shown to the user
// as-is.
func Clean(text string) string {
	cleaned := xmlFuncCallRe.ReplaceAllString(text, "\n\n")
	cleaned = xmlBlockLevelRe.ReplaceAllString(cleaned, "\n\n")
	cleaned = codeFenceRe.ReplaceAllString(cleaned, "")
	cleaned = whitespaceLineRe.ReplaceAllString(cleaned, "")
	cleaned = blankLineCollapseRe.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}
