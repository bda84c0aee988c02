package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsConversational(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"Hello!", true},
		{"hi there", true},
		{"Good morning :)", true},
		{"Thanks a lot!", true},
		{"thank you so much", true},
		{"Bye", true},
		{"see you later", true},
		{"Xin chào", true},
		{"Cảm ơn bạn nhiều!", true},
		{"Tạm biệt nhé", true},
		{"hi, how many rooms are vacant?", false},
		{"thanks, now list my invoices", false},
		{"How many rooms?", false},
		{"Có bao nhiêu phòng trống?", false},
		{"", false},
		{"!!!", false},
		{"hello " + strings.Repeat("there ", 10), false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConversational(tt.msg, 0))
		})
	}
}

func TestIsConversational_MaxLen(t *testing.T) {
	assert.True(t, IsConversational("hello there", 11))
	assert.False(t, IsConversational("hello there", 10))
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, LangVietnamese, DetectLanguage("Có bao nhiêu phòng trống?", LangEnglish))
	assert.Equal(t, LangVietnamese, DetectLanguage("đ", LangEnglish))
	assert.Equal(t, LangEnglish, DetectLanguage("How many rooms?", LangEnglish))
	assert.Equal(t, LangVietnamese, DetectLanguage("co bao nhieu phong", LangVietnamese))
	assert.Equal(t, LangEnglish, DetectLanguage("rooms", ""))

	t.Run("loanword accents stay english", func(t *testing.T) {
		assert.Equal(t, LangEnglish, DetectLanguage("café", LangEnglish))
		assert.Equal(t, LangEnglish, DetectLanguage("How much is the café deposit?", LangEnglish))
		assert.Equal(t, LangEnglish, DetectLanguage("Room for José", LangEnglish))
		assert.Equal(t, LangEnglish, DetectLanguage("piñata night", ""))
	})

	t.Run("vietnamese letters and tones", func(t *testing.T) {
		for _, msg := range []string{"ăn", "cần", "phòng trống", "hóa đơn", "nhà ở", "tiền nước", "tủ lạnh", "hợp đồng"} {
			assert.Equal(t, LangVietnamese, DetectLanguage(msg, LangEnglish), msg)
		}
	})
}

func TestTextsFor(t *testing.T) {
	assert.Equal(t, texts[LangVietnamese], textsFor(LangVietnamese))
	assert.Equal(t, texts[LangEnglish], textsFor("fr"))
	for lang, l := range texts {
		assert.NotEmpty(t, l.Apology, lang)
		assert.NotEmpty(t, l.NoAnswer, lang)
		assert.NotEmpty(t, l.Greeting, lang)
	}
}
