package ai

import (
	"context"
	"errors"
	"html"
	"regexp"
	"strings"
)

// ErrUpstream провайдер LLM вернул ошибку или некорректный ответ
var ErrUpstream = errors.New("ошибка LLM провайдера")

// Роли сообщений
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message представляет сообщение для AI
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response представляет ответ от AI
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	Usage        Usage  `json:"usage"`
	FinishReason string `json:"finish_reason"`
	Provider     string `json:"provider"`
	Route        string `json:"route"`
}

// Usage представляет статистику использования токенов
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerationOptions опции для генерации ответа
type GenerationOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// AIClient интерфейс для работы с AI провайдерами
type AIClient interface {
	// GenerateResponse генерирует ответ на основе сообщений
	GenerateResponse(ctx context.Context, messages []Message, options GenerationOptions) (*Response, error)

	// GetName возвращает название провайдера
	GetName() string
}

var (
	htmlTagRegex = regexp.MustCompile(`</?([a-zA-Z][a-zA-Z0-9]*)\b[^>]*>`)
	hrefRegex    = regexp.MustCompile(`href\s*=\s*["']([^"']*)["']`)
)

var allowedTags = map[string]bool{
	"b": true, "i": true, "u": true, "code": true, "pre": true, "a": true, "strong": true, "em": true,
}

// fixHTMLTags оставляет только теги, которые понимает Telegram, и экранирует остальной текст.
// Закрывающий тег без парного открывающего отбрасывается, незакрытые теги закрываются в конце.
func fixHTMLTags(text string) string {
	var (
		b    strings.Builder
		open []string
	)
	last := 0
	for _, loc := range htmlTagRegex.FindAllStringSubmatchIndex(text, -1) {
		b.WriteString(html.EscapeString(text[last:loc[0]]))
		last = loc[1]

		tag, name, closing := normalizeTag(text[loc[0]:loc[1]], text[loc[2]:loc[3]])
		switch {
		case tag == "":
		case !closing:
			open = append(open, name)
			b.WriteString(tag)
		case len(open) > 0 && open[len(open)-1] == name:
			open = open[:len(open)-1]
			b.WriteString(tag)
		}
	}
	b.WriteString(html.EscapeString(text[last:]))

	for i := len(open) - 1; i >= 0; i-- {
		b.WriteString("</" + open[i] + ">")
	}
	return b.String()
}

// normalizeTag возвращает разрешенный тег без атрибутов (у ссылки остается только
// http(s) href) или пустую строку
func normalizeTag(tag, name string) (normalized, tagName string, closing bool) {
	tagName = strings.ToLower(name)
	if !allowedTags[tagName] {
		return "", tagName, false
	}

	if strings.HasPrefix(tag, "</") {
		return "</" + tagName + ">", tagName, true
	}
	if tagName == "a" {
		hrefMatches := hrefRegex.FindStringSubmatch(tag)
		if len(hrefMatches) > 1 {
			href := hrefMatches[1]
			if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
				return `<a href="` + html.EscapeString(href) + `">`, tagName, false
			}
		}
		return "", tagName, false
	}
	return "<" + tagName + ">", tagName, false
}

// OffTopicReply ответ вместо реплики, в которой модель рассказывает о себе
const OffTopicReply = "🤖 Я здесь, чтобы помочь с английским! Давай вернемся к практике. О чем поговорим?"

var selfReferencePhrases = []string{
	"chatgpt", "openai", "yandexgpt", "gemini", "языковая модель", "large language model",
	"я обучен", "меня обучили", "i was trained", "i am an ai", "i'm an ai",
}

// SanitizeResponse убирает рассказы модели о себе и чинит HTML разметку
func SanitizeResponse(text string) string {
	lower := strings.ToLower(text)
	for _, phrase := range selfReferencePhrases {
		if strings.Contains(lower, phrase) {
			return OffTopicReply
		}
	}
	return fixHTMLTags(strings.TrimSpace(text))
}
