package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lingua-tutor/internal/ai"
	"lingua-tutor/internal/proxy"
	"lingua-tutor/internal/vocabulary"
	"lingua-tutor/pkg/models"
)

// ErrLimitReached исчерпан дневной лимит бесплатных сообщений
var ErrLimitReached = errors.New("достигнут лимит сообщений")

// MessageLimiter дневной лимит сообщений
type MessageLimiter interface {
	CanSendMessage(ctx context.Context, userID int64) (bool, error)
	IncrementMessageCount(ctx context.Context, userID int64) error
}

// History история диалога
type History interface {
	GetChatHistory(ctx context.Context, userID int64, limit int) ([]models.UserMessage, error)
	SaveUserMessage(ctx context.Context, userID int64, content string) (*models.UserMessage, error)
	SaveAssistantMessage(ctx context.Context, userID int64, content string) (*models.UserMessage, error)
}

// WordSelector выбирает слова для тренировки
type WordSelector interface {
	SelectSessionWords(ctx context.Context, studentID int64, limit int) ([]models.SessionWord, error)
}

// ProgressUpdater обновляет прогресс по слову
type ProgressUpdater interface {
	UpdateProgress(ctx context.Context, studentID, wordID int64, isCorrect bool) (models.WordStatus, error)
}

// AIRecorder принимает метрики запросов к LLM
type AIRecorder interface {
	RecordAIRequest(provider string, success bool, responseTime float64)
}

// DialogOptions параметры диалога
type DialogOptions struct {
	HistoryLimit int
	SessionSize  int
	Generation   ai.GenerationOptions
}

// Dialog ведет разговор ученика с репетитором
type Dialog struct {
	limits   MessageLimiter
	history  History
	selector WordSelector
	tracker  ProgressUpdater
	client   ai.AIClient
	metrics  AIRecorder
	opts     DialogOptions
	logger   *zap.Logger
}

// NewDialog создает диалог. metrics может быть nil.
func NewDialog(
	limits MessageLimiter,
	history History,
	selector WordSelector,
	tracker ProgressUpdater,
	client ai.AIClient,
	metrics AIRecorder,
	opts DialogOptions,
	logger *zap.Logger,
) *Dialog {
	return &Dialog{
		limits:   limits,
		history:  history,
		selector: selector,
		tracker:  tracker,
		client:   client,
		metrics:  metrics,
		opts:     opts,
		logger:   logger,
	}
}

// DialogReply ответ репетитора
type DialogReply struct {
	Text  string
	Hits  []models.SessionWord // слова тренировки, которые ученик употребил
	Route string
}

// Reply отвечает на сообщение ученика. Употребленные учеником слова тренировки
// засчитываются как правильные ответы.
func (d *Dialog) Reply(ctx context.Context, user *models.User, text string) (*DialogReply, error) {
	allowed, err := d.limits.CanSendMessage(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки лимита сообщений: %w", err)
	}
	if !allowed {
		return nil, ErrLimitReached
	}

	words, err := d.selector.SelectSessionWords(ctx, user.ID, d.opts.SessionSize)
	if err != nil {
		return nil, fmt.Errorf("ошибка выбора слов тренировки: %w", err)
	}

	history, err := d.history.GetChatHistory(ctx, user.ID, d.opts.HistoryLimit)
	if err != nil {
		// продолжаем без контекста
		d.logger.Warn("ошибка получения истории диалога",
			zap.Int64("user_id", user.ID),
			zap.Error(err))
	}

	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: BuildSystemPrompt(user, words)})
	for _, m := range history {
		if m.Role == models.RoleSystem {
			continue
		}
		messages = append(messages, ai.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: text})

	start := time.Now()
	response, err := d.client.GenerateResponse(ctx, messages, d.opts.Generation)
	if d.metrics != nil {
		d.metrics.RecordAIRequest(d.client.GetName(), err == nil, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}

	hits := vocabulary.FindWordHits(text, words)
	for _, hit := range hits {
		status, err := d.tracker.UpdateProgress(ctx, user.ID, hit.Word.ID, true)
		if err != nil {
			d.logger.Warn("ошибка обновления прогресса по слову из диалога",
				zap.Int64("user_id", user.ID),
				zap.Int64("word_id", hit.Word.ID),
				zap.Error(err))
			continue
		}
		d.logger.Debug("слово употреблено в диалоге",
			zap.Int64("user_id", user.ID),
			zap.String("word", hit.Word.EnglishText),
			zap.String("status", string(status)))
	}

	reply := ai.SanitizeResponse(response.Content)

	if _, err := d.history.SaveUserMessage(ctx, user.ID, text); err != nil {
		d.logger.Error("ошибка сохранения сообщения ученика", zap.Error(err))
	}
	if _, err := d.history.SaveAssistantMessage(ctx, user.ID, reply); err != nil {
		d.logger.Error("ошибка сохранения ответа", zap.Error(err))
	}
	if err := d.limits.IncrementMessageCount(ctx, user.ID); err != nil {
		d.logger.Error("ошибка увеличения счетчика сообщений", zap.Error(err))
	}

	return &DialogReply{Text: reply, Hits: hits, Route: response.Route}, nil
}

// ErrorText текст для ученика по ошибке обработки
func ErrorText(err error) string {
	switch {
	case errors.Is(err, ErrLimitReached):
		return msgLimitReached
	case errors.Is(err, proxy.ErrProxyUnavailable):
		return msgTemporarilyUnavailable
	case errors.Is(err, ai.ErrUpstream):
		return msgUpstreamApology
	case errors.Is(err, context.DeadlineExceeded):
		return msgUpstreamApology
	default:
		return msgGenericFailure
	}
}
