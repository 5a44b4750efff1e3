package message

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lingua-tutor/internal/store"
	"lingua-tutor/pkg/models"

	"go.uber.org/zap"
)

// Ограничения истории диалога
const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
	// KeepPerUser столько последних сообщений хранится на ученика
	KeepPerUser = 50
)

// Service представляет сервис для работы с историей диалога
type Service struct {
	repo   store.MessageRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewService создает новый сервис сообщений
func NewService(repo store.MessageRepository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// CreateMessage сохраняет сообщение и удаляет лишние старые
func (s *Service) CreateMessage(ctx context.Context, userID int64, role, content string) (*models.UserMessage, error) {
	if !models.IsValidRole(role) {
		return nil, fmt.Errorf("некорректная роль сообщения: %s", role)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("пустое сообщение")
	}

	message := &models.UserMessage{
		UserID:  userID,
		Role:    role,
		Content: content,
	}

	if err := s.repo.CreateWithCleanup(ctx, message, KeepPerUser); err != nil {
		return nil, fmt.Errorf("ошибка создания сообщения: %w", err)
	}

	s.logger.Debug("сохранено сообщение",
		zap.Int64("message_id", message.ID),
		zap.Int64("user_id", userID),
		zap.String("role", role))

	return message, nil
}

// SaveUserMessage сохраняет сообщение ученика
func (s *Service) SaveUserMessage(ctx context.Context, userID int64, content string) (*models.UserMessage, error) {
	return s.CreateMessage(ctx, userID, models.RoleUser, content)
}

// SaveAssistantMessage сохраняет ответ репетитора
func (s *Service) SaveAssistantMessage(ctx context.Context, userID int64, content string) (*models.UserMessage, error) {
	return s.CreateMessage(ctx, userID, models.RoleAssistant, content)
}

// GetChatHistory возвращает последние limit сообщений в хронологическом порядке
func (s *Service) GetChatHistory(ctx context.Context, userID int64, limit int) ([]models.UserMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	history, err := s.repo.GetByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории диалога: %w", err)
	}
	return history, nil
}

// ClearChatHistory очищает историю диалога пользователя
func (s *Service) ClearChatHistory(ctx context.Context, userID int64) error {
	if err := s.repo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("ошибка очистки истории диалога: %w", err)
	}

	s.logger.Info("очищена история диалога пользователя",
		zap.Int64("user_id", userID))

	return nil
}

// CleanupOldMessages удаляет сообщения всех учеников старше days дней
func (s *Service) CleanupOldMessages(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("количество дней должно быть положительным")
	}

	before := s.now().AddDate(0, 0, -days)
	deleted, err := s.repo.DeleteOlderThan(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки старых сообщений: %w", err)
	}

	s.logger.Info("удалены старые сообщения",
		zap.Int("days", days),
		zap.Int64("deleted", deleted))

	return deleted, nil
}
