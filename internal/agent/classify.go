package agent

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/soyeahso/rentdesk/internal/catalog"
)

// DefaultConversationalMaxLen is the longest message still treated as small talk.
const DefaultConversationalMaxLen = 40

// smallTalkRe matches a normalized greeting, thanks or farewell, optionally
// followed by a couple of filler words ("hello there", "cam on ban nhieu").
var smallTalkRe = regexp.MustCompile(`^(?:` +
	`hi|hello|hey|hiya|yo|good (?:morning|afternoon|evening)|greetings|` +
	`thanks?|thank you|thx|ty|cheers|appreciate it|` +
	`bye|goodbye|good ?night|see (?:you|ya)(?: later)?|take care|` +
	`xin chao|chao|alo|` +
	`cam on|cam ta|` +
	`tam biet|hen gap lai|bai bai` +
	`)(?: (?:there|all|everyone|you|so|much|a|lot|very|again|bot|friend|` +
	`ban|anh|chi|em|ad|admin|nhe|nha|nhieu|lam|qua|ne))*$`)

// IsConversational reports whether message is short small talk that needs
// no tools. maxLen bounds the trimmed length in runes; non-positive means
// DefaultConversationalMaxLen.
func IsConversational(message string, maxLen int) bool {
	if maxLen <= 0 {
		maxLen = DefaultConversationalMaxLen
	}
	trimmed := strings.TrimSpace(message)
	if trimmed == "" || len([]rune(trimmed)) > maxLen {
		return false
	}

	words := strings.FieldsFunc(catalog.Normalize(trimmed), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return false
	}
	return smallTalkRe.MatchString(strings.Join(words, " "))
}
