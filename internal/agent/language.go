package agent

import (
	"golang.org/x/text/unicode/norm"
)

// Supported reply languages.
const (
	LangEnglish    = "en"
	LangVietnamese = "vi"
)

// vietnameseMarks are the combining marks that only Vietnamese orthography
// puts on Latin letters: breve (ă), circumflex (â ê ô), horn (ơ ư), hook
// above (ả) and dot below (ạ). Grave, acute and tilde also occur in
// French or Spanish loanwords and are not counted.
var vietnameseMarks = map[rune]struct{}{
	'\u0302': {}, // circumflex
	'\u0306': {}, // breve
	'\u0309': {}, // hook above
	'\u031B': {}, // horn
	'\u0323': {}, // dot below
}

// DetectLanguage returns LangVietnamese when message carries a
// Vietnamese-specific letter or tone mark, otherwise fallback. An empty
// fallback means English.
func DetectLanguage(message, fallback string) string {
	for _, r := range norm.NFD.String(message) {
		if r == 'đ' || r == 'Đ' {
			return LangVietnamese
		}
		if _, ok := vietnameseMarks[r]; ok {
			return LangVietnamese
		}
	}
	if fallback == "" {
		return LangEnglish
	}
	return fallback
}
