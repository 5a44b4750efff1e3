package vocabulary

import (
	"strings"
	"unicode"

	"lingua-tutor/pkg/models"
)

// FindWordHits ищет в тексте слова сессии целиком, без учета регистра.
// Фразы из нескольких слов совпадают при том же порядке слов.
// Каждое слово возвращается не больше одного раза, в порядке списка words.
func FindWordHits(text string, words []models.SessionWord) []models.SessionWord {
	haystack := " " + strings.Join(tokenize(text), " ") + " "
	if strings.TrimSpace(haystack) == "" {
		return nil
	}

	var hits []models.SessionWord
	seen := make(map[int64]bool)
	for _, w := range words {
		if seen[w.Word.ID] {
			continue
		}
		needle := strings.Join(tokenize(w.Word.EnglishText), " ")
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, " "+needle+" ") {
			hits = append(hits, w)
			seen[w.Word.ID] = true
		}
	}
	return hits
}

// tokenize разбивает текст на слова в нижнем регистре; апостроф и дефис внутри слова сохраняются
func tokenize(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "’", "'")
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-')
	})

	tokens := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'-")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
