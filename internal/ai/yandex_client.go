package ai

import (
	"context"
	"errors"
	"fmt"

	"lingua-tutor/internal/config"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const defaultYandexBaseURL = "https://llm.api.cloud.yandex.net/v1"

// YandexClient клиент YandexGPT через OpenAI-совместимый API
type YandexClient struct {
	apiKey   string
	baseURL  string
	modelURI string
	router   Router
	logger   *zap.Logger
}

// NewYandexClient создает клиент YandexGPT. model задается без папки,
// например "yandexgpt-lite/latest".
func NewYandexClient(cfg config.YandexConfig, model string, router Router, logger *zap.Logger) *YandexClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultYandexBaseURL
	}

	return &YandexClient{
		apiKey:   cfg.APIKey,
		baseURL:  baseURL,
		modelURI: fmt.Sprintf("gpt://%s/%s", cfg.FolderID, model),
		router:   router,
		logger:   logger,
	}
}

// GenerateResponse генерирует ответ через YandexGPT
func (c *YandexClient) GenerateResponse(ctx context.Context, messages []Message, options GenerationOptions) (*Response, error) {
	route, err := c.router.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка выбора маршрута к YandexGPT: %w", err)
	}

	cfg := openai.DefaultConfig(c.apiKey)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = route.Client
	client := openai.NewClientWithConfig(cfg)

	c.logger.Debug("отправляем запрос в YandexGPT",
		zap.Int("messages_count", len(messages)),
		zap.String("route", route.Name()),
		zap.Int("max_tokens", options.MaxTokens))

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.modelURI,
		Messages:    chatMessages,
		MaxTokens:   options.MaxTokens,
		Temperature: float32(options.Temperature),
	})

	var apiErr *openai.APIError
	statusCode := 0
	if errors.As(err, &apiErr) {
		statusCode = apiErr.HTTPStatusCode
	}
	release(ctx, c.router, route, err, statusCode, c.logger)

	if err != nil {
		c.logger.Error("ошибка YandexGPT API",
			zap.Int("status_code", statusCode),
			zap.String("route", route.Name()),
			zap.Error(err))
		return nil, upstream("yandex", err)
	}

	if len(resp.Choices) == 0 {
		return nil, upstream("yandex", errors.New("нет вариантов ответа"))
	}

	choice := resp.Choices[0]

	c.logger.Debug("получен ответ от YandexGPT",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", string(choice.FinishReason)))

	return &Response{
		Content: choice.Message.Content,
		Model:   resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		FinishReason: string(choice.FinishReason),
		Provider:     config.ProviderYandex,
		Route:        route.Name(),
	}, nil
}

// GetName возвращает название провайдера
func (c *YandexClient) GetName() string {
	return "YandexGPT"
}
