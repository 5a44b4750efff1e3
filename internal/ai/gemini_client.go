package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lingua-tutor/internal/config"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiClient клиент Google Gemini. Из России API доступен только через прокси.
type GeminiClient struct {
	apiKey  string
	baseURL string
	model   string
	router  Router
	logger  *zap.Logger
}

// NewGeminiClient создает клиент Gemini
func NewGeminiClient(cfg config.GeminiConfig, model string, router Router, logger *zap.Logger) *GeminiClient {
	return &GeminiClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   model,
		router:  router,
		logger:  logger,
	}
}

// GenerateResponse генерирует ответ через Gemini. Системные сообщения
// передаются как system instruction.
func (c *GeminiClient) GenerateResponse(ctx context.Context, messages []Message, options GenerationOptions) (*Response, error) {
	route, err := c.router.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка выбора маршрута к Gemini: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      c.apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  route.Client,
		HTTPOptions: genai.HTTPOptions{BaseURL: c.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента Gemini: %w", err)
	}

	system, contents := buildGeminiContents(messages)

	genConfig := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(options.MaxTokens),
	}
	if options.Temperature > 0 {
		temp := float32(options.Temperature)
		genConfig.Temperature = &temp
	}
	if system != "" {
		genConfig.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	c.logger.Debug("отправляем запрос в Gemini",
		zap.Int("messages_count", len(contents)),
		zap.String("route", route.Name()),
		zap.String("model", c.model))

	result, err := client.Models.GenerateContent(ctx, c.model, contents, genConfig)

	var apiErr genai.APIError
	statusCode := 0
	if errors.As(err, &apiErr) {
		statusCode = apiErr.Code
	}
	release(ctx, c.router, route, err, statusCode, c.logger)

	if err != nil {
		c.logger.Error("ошибка Gemini API",
			zap.Int("status_code", statusCode),
			zap.String("route", route.Name()),
			zap.Error(err))
		return nil, upstream("gemini", err)
	}

	text := result.Text()
	if text == "" {
		return nil, upstream("gemini", errors.New("пустой ответ"))
	}

	resp := &Response{
		Content:  text,
		Model:    c.model,
		Provider: config.ProviderGemini,
		Route:    route.Name(),
	}
	if len(result.Candidates) > 0 {
		resp.FinishReason = string(result.Candidates[0].FinishReason)
	}
	if result.UsageMetadata != nil {
		resp.Usage = Usage{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
		}
	}

	return resp, nil
}

// GetName возвращает название провайдера
func (c *GeminiClient) GetName() string {
	return "Gemini"
}

func buildGeminiContents(messages []Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
