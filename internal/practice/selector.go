package practice

import (
	"context"
	"fmt"
	"time"

	"lingua-tutor/internal/store"
	"lingua-tutor/pkg/models"

	"go.uber.org/zap"
)

// Доли пулов в тренировке
const (
	newShare    = 0.4
	reviewShare = 0.4
)

// Repository запросы к прогрессу, нужные для выборки слов
type Repository interface {
	InitMissing(ctx context.Context, studentID int64) (int64, error)
	ListNew(ctx context.Context, studentID int64, limit int) ([]models.SessionWord, error)
	ListDueForReview(ctx context.Context, studentID int64, now time.Time, limit int) ([]models.SessionWord, error)
	ListMastered(ctx context.Context, studentID int64, limit int) ([]models.SessionWord, error)
}

// Selector собирает слова для тренировки из трех пулов: новые, к повторению, освоенные
type Selector struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewSelector создает выборщик слов
func NewSelector(repo Repository, logger *zap.Logger) *Selector {
	return &Selector{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Quotas возвращает квоты новых слов и слов к повторению
func Quotas(limit int) (newQuota, reviewQuota int) {
	newQuota = max(1, int(float64(limit)*newShare))
	reviewQuota = max(1, int(float64(limit)*reviewShare))
	return newQuota, reviewQuota
}

// MasteredQuota остаток лимита для освоенных слов, не меньше одного
func MasteredQuota(limit, takenNew, takenReview int) int {
	return max(1, limit-takenNew-takenReview)
}

// SelectSessionWords возвращает до limit слов: новые (давно назначенные первыми),
// затем к повторению (по сроку), затем освоенные (давно не практиковавшиеся первыми).
// Недобор одного пула другими пулами не восполняется.
func (s *Selector) SelectSessionWords(ctx context.Context, studentID int64, limit int) ([]models.SessionWord, error) {
	if limit <= 0 {
		return []models.SessionWord{}, nil
	}

	if _, err := s.repo.InitMissing(ctx, studentID); err != nil {
		return nil, unavailable("инициализация прогресса", err)
	}

	newQuota, reviewQuota := Quotas(limit)

	fresh, err := s.repo.ListNew(ctx, studentID, newQuota)
	if err != nil {
		return nil, unavailable("новые слова", err)
	}

	review, err := s.repo.ListDueForReview(ctx, studentID, s.now(), reviewQuota)
	if err != nil {
		return nil, unavailable("слова к повторению", err)
	}

	mastered, err := s.repo.ListMastered(ctx, studentID, MasteredQuota(limit, len(fresh), len(review)))
	if err != nil {
		return nil, unavailable("освоенные слова", err)
	}

	words := make([]models.SessionWord, 0, len(fresh)+len(review)+len(mastered))
	words = append(words, fresh...)
	words = append(words, review...)
	words = append(words, mastered...)

	// при limit 1 и 2 минимальные квоты в сумме превышают лимит
	if len(words) > limit {
		words = words[:limit]
	}

	s.logger.Debug("слова для тренировки выбраны",
		zap.Int64("student_id", studentID),
		zap.Int("limit", limit),
		zap.Int("new", len(fresh)),
		zap.Int("review", len(review)),
		zap.Int("mastered", len(mastered)))

	return words, nil
}

func unavailable(step string, err error) error {
	return fmt.Errorf("ошибка выборки слов (%s): %w", step, markUnavailable(err))
}

// markUnavailable любой отказ хранилища при выборке считается недоступностью данных
func markUnavailable(err error) error {
	if isUnavailable(err) {
		return err
	}
	return fmt.Errorf("%w: %w", store.ErrDataUnavailable, err)
}
