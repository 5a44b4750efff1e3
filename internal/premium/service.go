package premium

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lingua-tutor/internal/store"
	"lingua-tutor/pkg/models"
)

// Статусы платежа в ЮKassa
const (
	YukassaStatusSucceeded = "succeeded"
	YukassaStatusCanceled  = "canceled"
)

// ErrPlanNotFound неизвестный план подписки
var ErrPlanNotFound = errors.New("план подписки не найден")

// Service представляет сервис для работы с премиум-подпиской
type Service struct {
	userRepo    UserRepository
	paymentRepo PaymentRepository
	yukassa     YukassaClient
	metrics     Recorder
	logger      *zap.Logger
	now         func() time.Time
}

// UserRepository интерфейс для работы с пользователями
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	IncrementMessagesCount(ctx context.Context, userID int64) error
}

// PaymentRepository интерфейс для работы с платежами
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
	ClaimPending(ctx context.Context, payment *models.Payment) (bool, error)
}

// PaymentParams параметры нового платежа
type PaymentParams struct {
	Amount      float64
	Currency    string
	Description string
	UserID      int64
	PlanID      int
}

// YukassaClient интерфейс для работы с YooKassa API
type YukassaClient interface {
	CreatePayment(ctx context.Context, params PaymentParams) (paymentID, confirmationURL string, err error)
	CheckPaymentStatus(ctx context.Context, paymentID string) (string, error)
}

// Recorder принимает метрики платежей
type Recorder interface {
	RecordPayment(status string)
}

// MessageLimits дневной лимит сообщений ученика
type MessageLimits struct {
	IsPremium        bool
	MessagesCount    int
	MaxMessages      int
	Remaining        int // -1 для премиума
	PremiumExpiresAt *time.Time
}

// NewService создает новый сервис премиум-подписки. metrics может быть nil.
func NewService(userRepo UserRepository, paymentRepo PaymentRepository, yukassa YukassaClient, metrics Recorder, logger *zap.Logger) *Service {
	return &Service{
		userRepo:    userRepo,
		paymentRepo: paymentRepo,
		yukassa:     yukassa,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

var plans = []models.PremiumPlan{
	{
		ID:           1,
		Name:         "Месяц",
		DurationDays: 30,
		Price:        299,
		Currency:     "RUB",
		Description:  "Премиум на 1 месяц",
		Features: []string{
			"Безлимитный диалог с репетитором",
			"Тренировки слов без ограничений",
		},
	},
	{
		ID:           2,
		Name:         "3 месяца",
		DurationDays: 90,
		Price:        799,
		Currency:     "RUB",
		Description:  "Премиум на 3 месяца",
		Features: []string{
			"Безлимитный диалог с репетитором",
			"Тренировки слов без ограничений",
			"Скидка 10%",
		},
	},
	{
		ID:           3,
		Name:         "Год",
		DurationDays: 365,
		Price:        2490,
		Currency:     "RUB",
		Description:  "Премиум на 1 год",
		Features: []string{
			"Безлимитный диалог с репетитором",
			"Тренировки слов без ограничений",
			"Скидка 30%",
		},
	},
}

// GetPremiumPlans возвращает доступные планы премиум-подписки
func (s *Service) GetPremiumPlans() []models.PremiumPlan {
	return plans
}

// GetPlan возвращает план по ID
func (s *Service) GetPlan(planID int) (*models.PremiumPlan, error) {
	for i := range plans {
		if plans[i].ID == planID {
			plan := plans[i]
			return &plan, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrPlanNotFound, planID)
}

// CreatePayment создает платеж в ЮKassa и сохраняет его. Возвращает ссылку на оплату.
func (s *Service) CreatePayment(ctx context.Context, userID int64, planID int) (*models.Payment, string, error) {
	plan, err := s.GetPlan(planID)
	if err != nil {
		return nil, "", err
	}

	paymentID, confirmationURL, err := s.yukassa.CreatePayment(ctx, PaymentParams{
		Amount:      plan.Price,
		Currency:    plan.Currency,
		Description: plan.Description,
		UserID:      userID,
		PlanID:      plan.ID,
	})
	if err != nil {
		return nil, "", fmt.Errorf("ошибка создания платежа в YooKassa: %w", err)
	}

	payment := &models.Payment{
		PaymentID:           paymentID,
		UserID:              userID,
		Amount:              plan.Price,
		Currency:            plan.Currency,
		Status:              models.PaymentStatusPending,
		PremiumDurationDays: plan.DurationDays,
		CreatedAt:           s.now(),
		Metadata:            map[string]any{"plan_id": plan.ID},
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, "", fmt.Errorf("ошибка сохранения платежа в базе данных: %w", err)
	}

	s.record(models.PaymentStatusPending)
	s.logger.Info("платеж создан",
		zap.String("payment_id", paymentID),
		zap.Int64("user_id", userID),
		zap.Int("plan_id", planID),
		zap.Float64("amount", plan.Price))

	return payment, confirmationURL, nil
}

// ProcessPaymentCallback применяет статус платежа из ЮKassa. Платеж сначала
// переводится из pending условным обновлением, и только после этого продлевается
// премиум, поэтому повторные и одновременные уведомления не продлевают подписку дважды.
// activated = true, если премиум включен этим вызовом.
func (s *Service) ProcessPaymentCallback(ctx context.Context, paymentID, yukassaStatus string) (payment *models.Payment, activated bool, err error) {
	payment, err = s.paymentRepo.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка получения платежа: %w", err)
	}

	if payment.Status != models.PaymentStatusPending {
		s.logger.Info("повторное уведомление по обработанному платежу",
			zap.String("payment_id", paymentID),
			zap.String("status", payment.Status))
		return payment, false, nil
	}

	switch yukassaStatus {
	case YukassaStatusSucceeded:
		now := s.now()
		payment.Status = models.PaymentStatusCompleted
		payment.CompletedAt = &now
	case YukassaStatusCanceled:
		payment.Status = models.PaymentStatusCancelled
	default:
		return payment, false, nil
	}

	claimed, err := s.paymentRepo.ClaimPending(ctx, payment)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка обновления статуса платежа: %w", err)
	}
	if !claimed {
		s.logger.Info("платеж уже обработан параллельным уведомлением",
			zap.String("payment_id", paymentID))
		return payment, false, nil
	}

	if payment.Status == models.PaymentStatusCompleted {
		if err := s.activatePremium(ctx, payment.UserID, payment.PremiumDurationDays); err != nil {
			s.releaseClaim(ctx, payment)
			return nil, false, fmt.Errorf("ошибка активации премиума: %w", err)
		}
		activated = true
	}

	s.record(payment.Status)
	s.logger.Info("платеж обработан",
		zap.String("payment_id", paymentID),
		zap.String("status", payment.Status),
		zap.Int64("user_id", payment.UserID))

	return payment, activated, nil
}

// releaseClaim возвращает платеж в pending, чтобы повторное уведомление активировало премиум
func (s *Service) releaseClaim(ctx context.Context, payment *models.Payment) {
	payment.Status = models.PaymentStatusPending
	payment.CompletedAt = nil
	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		s.logger.Error("не удалось вернуть платеж в pending",
			zap.String("payment_id", payment.PaymentID),
			zap.Error(err))
	}
}

// ActivatePremium активирует премиум-подписку для пользователя
func (s *Service) ActivatePremium(ctx context.Context, userID int64, durationDays int) error {
	return s.activatePremium(ctx, userID, durationDays)
}

// activatePremium продлевает подписку от текущей даты окончания, если она еще не наступила
func (s *Service) activatePremium(ctx context.Context, userID int64, durationDays int) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	from := s.now()
	if user.IsPremium && user.PremiumExpiresAt != nil && user.PremiumExpiresAt.After(from) {
		from = *user.PremiumExpiresAt
	}
	expiresAt := from.AddDate(0, 0, durationDays)

	user.IsPremium = true
	user.PremiumExpiresAt = &expiresAt

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("ошибка обновления пользователя: %w", err)
	}

	s.logger.Info("премиум-подписка активирована",
		zap.Int64("user_id", userID),
		zap.Int("duration_days", durationDays),
		zap.Time("expires_at", expiresAt))

	return nil
}

// CheckPremiumStatus возвращает пользователя, снимая истекший премиум
func (s *Service) CheckPremiumStatus(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	changed := false
	if user.IsPremium && user.PremiumExpiresAt != nil && s.now().After(*user.PremiumExpiresAt) {
		user.IsPremium = false
		user.PremiumExpiresAt = nil
		changed = true
		s.logger.Info("премиум-подписка истекла", zap.Int64("user_id", userID))
	}

	today := s.now().Truncate(24 * time.Hour)
	if !user.MessagesResetDate.Truncate(24 * time.Hour).Equal(today) {
		user.MessagesCount = 0
		user.MessagesResetDate = today
		changed = true
	}

	if user.MaxMessages <= 0 {
		user.MaxMessages = store.DefaultMaxMessages
		changed = true
	}

	if changed {
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("ошибка обновления пользователя: %w", err)
		}
	}

	return user, nil
}

// CanSendMessage проверяет дневной лимит бесплатных сообщений
func (s *Service) CanSendMessage(ctx context.Context, userID int64) (bool, error) {
	user, err := s.CheckPremiumStatus(ctx, userID)
	if err != nil {
		return false, err
	}
	if user.IsPremium {
		return true, nil
	}
	return user.MessagesCount < user.MaxMessages, nil
}

// IncrementMessageCount увеличивает счетчик сообщений пользователя
func (s *Service) IncrementMessageCount(ctx context.Context, userID int64) error {
	if err := s.userRepo.IncrementMessagesCount(ctx, userID); err != nil {
		return fmt.Errorf("ошибка увеличения счетчика сообщений: %w", err)
	}
	return nil
}

// GetMessageLimits возвращает состояние дневного лимита
func (s *Service) GetMessageLimits(ctx context.Context, userID int64) (*MessageLimits, error) {
	user, err := s.CheckPremiumStatus(ctx, userID)
	if err != nil {
		return nil, err
	}

	limits := &MessageLimits{
		IsPremium:        user.IsPremium,
		MessagesCount:    user.MessagesCount,
		MaxMessages:      user.MaxMessages,
		PremiumExpiresAt: user.PremiumExpiresAt,
		Remaining:        -1,
	}
	if !user.IsPremium {
		limits.Remaining = max(0, user.MaxMessages-user.MessagesCount)
	}
	return limits, nil
}

func (s *Service) record(status string) {
	if s.metrics != nil {
		s.metrics.RecordPayment(status)
	}
}
