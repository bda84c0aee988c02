package toolcall

import (
	"regexp"
	"strings"
)

// fenceOpenRe matches an opening code fence with an optional language tag.
var fenceOpenRe = regexp.MustCompile("^```[A-Za-z0-9_-]*[ \t]*\n?")

// StripFences removes a code fence surrounding the whole text.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = fenceOpenRe.ReplaceAllString(s, "")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// scanObjects returns the top-level balanced {...} substrings of text in
// order of appearance. Braces inside JSON strings do not count. A brace
// that never closes is skipped.
func scanObjects(text string) []string {
	var out []string
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		raw, ok := balancedAt(text, i)
		if !ok {
			continue
		}
		out = append(out, raw)
		i += len(raw) - 1
	}
	return out
}

// balancedAt returns the balanced object starting at text[start], which
// must be '{'.
func balancedAt(text string, start int) (string, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
