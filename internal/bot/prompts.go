package bot

import (
	"fmt"
	"strings"

	"lingua-tutor/pkg/models"
)

var levelGuidance = map[string]string{
	models.LevelA1: "Use very simple words and short sentences. Present tense mostly.",
	models.LevelA2: "Use simple everyday vocabulary and short sentences.",
	models.LevelB1: "Use common vocabulary, mix tenses, explain idioms briefly.",
	models.LevelB2: "Speak naturally, introduce phrasal verbs and idioms.",
	models.LevelC1: "Speak like a native, use rich vocabulary and complex grammar.",
	models.LevelC2: "Speak like an educated native, nuanced and idiomatic.",
}

// BuildSystemPrompt собирает системный промпт репетитора по профилю ученика
// и словам текущей тренировки
func BuildSystemPrompt(user *models.User, words []models.SessionWord) string {
	level := user.Level
	if !models.IsValidLevel(level) {
		level = models.DefaultLevel
	}

	var b strings.Builder
	b.WriteString("You are a friendly English tutor chatting with a Russian-speaking student in Telegram.\n")
	fmt.Fprintf(&b, "Student level: %s. %s\n", level, levelGuidance[level])

	if len(user.Topics) > 0 {
		fmt.Fprintf(&b, "Student interests: %s. Prefer these topics in conversation.\n", strings.Join(user.Topics, ", "))
	}

	if len(words) > 0 {
		b.WriteString("Vocabulary the student is learning now. Ask questions that make the student use these words:\n")
		for _, w := range words {
			fmt.Fprintf(&b, "- %s (%s)\n", w.Word.EnglishText, w.Word.RussianTranslation)
		}
	}

	b.WriteString(`Rules:
- Keep replies short: 2-4 sentences, end with a question.
- Correct the student's mistakes gently, show the corrected sentence.
- If the student writes in Russian, answer in English and add a short Russian hint.
- Never talk about yourself, your model or your training.
- Formatting: only Telegram HTML tags <b>, <i>, <u>. Never use Markdown.`)

	return b.String()
}
