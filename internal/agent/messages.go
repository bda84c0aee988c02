package agent

// localized holds the fixed user-facing texts for one language.
type localized struct {
	Apology      string
	NoAnswer     string
	Greeting     string
	LanguageName string
}

var texts = map[string]localized{
	LangEnglish: {
		Apology:      "Sorry, something went wrong while processing your request. Please try again in a moment.",
		NoAnswer:     "Sorry, I couldn't find an answer to that. Could you rephrase your question?",
		Greeting:     "Hello! How can I help you with your properties today?",
		LanguageName: "English",
	},
	LangVietnamese: {
		Apology:      "Xin lỗi, đã có lỗi xảy ra khi xử lý yêu cầu của bạn. Vui lòng thử lại sau.",
		NoAnswer:     "Xin lỗi, tôi chưa tìm được câu trả lời. Bạn có thể diễn đạt lại câu hỏi không?",
		Greeting:     "Xin chào! Tôi có thể giúp gì cho bạn về nhà trọ hôm nay?",
		LanguageName: "Vietnamese",
	},
}

// textsFor returns the texts for lang, falling back to English.
func textsFor(lang string) localized {
	if t, ok := texts[lang]; ok {
		return t
	}
	return texts[LangEnglish]
}
