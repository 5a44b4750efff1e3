package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lingua-tutor/internal/store"
	"lingua-tutor/pkg/models"

	"go.uber.org/zap"
)

// Ограничения на темы диалога
const (
	MaxTopics      = 5
	MaxTopicLength = 40
)

// ErrInvalidLevel уровень не из шкалы A1..C2
var ErrInvalidLevel = errors.New("некорректный уровень")

// Service представляет сервис для работы с учениками
type Service struct {
	repo   store.UserRepository
	logger *zap.Logger
}

// NewService создает новый сервис пользователей
func NewService(repo store.UserRepository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// CreateUser создает нового пользователя
func (s *Service) CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	user := &models.User{
		TelegramID: req.TelegramID,
		Username:   req.Username,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Level:      models.DefaultLevel,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	s.logger.Info("создан новый пользователь",
		zap.Int64("telegram_id", req.TelegramID),
		zap.String("username", req.Username))

	return user, nil
}

// GetOrCreateUser получает пользователя или создает нового
func (s *Service) GetOrCreateUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (*models.User, error) {
	user, err := s.repo.GetByTelegramID(ctx, telegramID)
	if err == nil {
		if err := s.repo.UpdateLastSeen(ctx, user.ID); err != nil {
			s.logger.Warn("не удалось обновить время последнего посещения",
				zap.Int64("user_id", user.ID),
				zap.Error(err))
		}
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	user, err = s.CreateUser(ctx, &models.CreateUserRequest{
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		LastName:   lastName,
	})
	if err != nil && store.IsUniqueViolation(err) {
		// пользователь создан параллельным запросом
		return s.repo.GetByTelegramID(ctx, telegramID)
	}
	return user, err
}

// GetUserByID получает пользователя по ID
func (s *Service) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return user, nil
}

// UpdateUser обновляет переданные поля пользователя
func (s *Service) UpdateUser(ctx context.Context, userID int64, req *models.UpdateUserRequest) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	if req.Level != nil {
		if !models.IsValidLevel(*req.Level) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidLevel, *req.Level)
		}
		user.Level = *req.Level
	}
	if req.Topics != nil {
		user.Topics = *req.Topics
	}
	if req.CurrentState != nil {
		if !models.IsValidState(*req.CurrentState) {
			return nil, fmt.Errorf("некорректное состояние: %s", *req.CurrentState)
		}
		user.CurrentState = *req.CurrentState
	}
	if req.LastSeen != nil {
		user.LastSeen = *req.LastSeen
	}
	if req.IsPremium != nil {
		user.IsPremium = *req.IsPremium
	}
	if req.PremiumExpiresAt != nil {
		user.PremiumExpiresAt = req.PremiumExpiresAt
	}
	if req.MessagesCount != nil {
		user.MessagesCount = *req.MessagesCount
	}
	if req.MaxMessages != nil {
		user.MaxMessages = *req.MaxMessages
	}
	if req.MessagesResetDate != nil {
		user.MessagesResetDate = *req.MessagesResetDate
	}
	if req.ReminderSentAt != nil {
		user.ReminderSentAt = req.ReminderSentAt
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("ошибка обновления пользователя: %w", err)
	}

	s.logger.Info("пользователь обновлен",
		zap.Int64("user_id", userID),
		zap.String("level", user.Level),
		zap.Strings("topics", user.Topics),
		zap.Bool("is_premium", user.IsPremium))

	return user, nil
}

// UpdateLevel меняет уровень ученика
func (s *Service) UpdateLevel(ctx context.Context, userID int64, level string) (*models.User, error) {
	level = strings.ToUpper(strings.TrimSpace(level))
	return s.UpdateUser(ctx, userID, &models.UpdateUserRequest{Level: &level})
}

// SetTopics сохраняет темы для диалога. Пустой список сбрасывает темы.
func (s *Service) SetTopics(ctx context.Context, userID int64, topics []string) (*models.User, error) {
	normalized := NormalizeTopics(topics)
	return s.UpdateUser(ctx, userID, &models.UpdateUserRequest{Topics: &normalized})
}

// SetState меняет состояние диалога с ботом
func (s *Service) SetState(ctx context.Context, userID int64, state string) error {
	if !models.IsValidState(state) {
		return fmt.Errorf("некорректное состояние: %s", state)
	}
	if err := s.repo.UpdateState(ctx, userID, state); err != nil {
		return fmt.Errorf("ошибка обновления состояния: %w", err)
	}
	return nil
}

// ParseTopics разбирает темы, перечисленные через запятую или с новой строки
func ParseTopics(text string) []string {
	return NormalizeTopics(strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	}))
}

// NormalizeTopics приводит темы к нижнему регистру, убирает повторы
// и обрезает список до MaxTopics
func NormalizeTopics(topics []string) []string {
	result := make([]string, 0, len(topics))
	seen := make(map[string]bool)
	for _, t := range topics {
		t = strings.ToLower(strings.Join(strings.Fields(t), " "))
		if t == "" || seen[t] {
			continue
		}
		if r := []rune(t); len(r) > MaxTopicLength {
			t = string(r[:MaxTopicLength])
		}
		seen[t] = true
		result = append(result, t)
		if len(result) == MaxTopics {
			break
		}
	}
	return result
}

// GetByID получает пользователя по ID (для интерфейса premium.UserRepository)
func (s *Service) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Update сохраняет пользователя целиком (для интерфейса premium.UserRepository)
func (s *Service) Update(ctx context.Context, user *models.User) error {
	if user.CurrentState == "" {
		user.CurrentState = models.StateIdle
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("ошибка обновления пользователя: %w", err)
	}
	return nil
}

// IncrementMessagesCount увеличивает дневной счетчик сообщений (для интерфейса premium.UserRepository)
func (s *Service) IncrementMessagesCount(ctx context.Context, userID int64) error {
	return s.repo.IncrementMessagesCount(ctx, userID)
}
