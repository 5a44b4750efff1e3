package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lingua-tutor/pkg/models"
)

// ReminderUsers выборка учеников для напоминаний
type ReminderUsers interface {
	GetWithDueWords(ctx context.Context, now time.Time, notRemindedSince time.Time) ([]*models.User, error)
	MarkReminderSent(ctx context.Context, userID int64, at time.Time) error
}

// ReminderStats статистика словаря ученика
type ReminderStats interface {
	Stats(ctx context.Context, studentID int64, now time.Time) (*models.VocabularyStats, error)
}

// ReminderSender доставляет напоминание ученику
type ReminderSender interface {
	SendPracticeReminder(ctx context.Context, user *models.User, dueWords int) error
}

// ReminderRecorder принимает метрики напоминаний
type ReminderRecorder interface {
	RecordReminderSent()
}

// ReminderOptions окно отправки и пауза между напоминаниями
type ReminderOptions struct {
	Cooldown  time.Duration
	StartHour int
	EndHour   int
	Location  *time.Location
}

// PracticeReminderJob напоминает ученикам о словах к повторению
type PracticeReminderJob struct {
	users   ReminderUsers
	stats   ReminderStats
	sender  ReminderSender
	metrics ReminderRecorder
	opts    ReminderOptions
	logger  *zap.Logger
	now     func() time.Time
}

// NewPracticeReminderJob создает задачу напоминаний. metrics может быть nil.
func NewPracticeReminderJob(
	users ReminderUsers,
	stats ReminderStats,
	sender ReminderSender,
	metrics ReminderRecorder,
	opts ReminderOptions,
	logger *zap.Logger,
) *PracticeReminderJob {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &PracticeReminderJob{
		users:   users,
		stats:   stats,
		sender:  sender,
		metrics: metrics,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

func (j *PracticeReminderJob) Name() string { return "practice_reminders" }

// Run отправляет напоминания в разрешенные часы
func (j *PracticeReminderJob) Run(ctx context.Context) error {
	now := j.now()
	if !j.inReminderHours(now) {
		j.logger.Debug("вне окна напоминаний, пропуск",
			zap.Int("hour", now.In(j.opts.Location).Hour()))
		return nil
	}

	users, err := j.users.GetWithDueWords(ctx, now, now.Add(-j.opts.Cooldown))
	if err != nil {
		return fmt.Errorf("ошибка получения учеников для напоминания: %w", err)
	}

	sent := 0
	for _, user := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		stats, err := j.stats.Stats(ctx, user.ID, now)
		if err != nil {
			j.logger.Error("ошибка получения статистики ученика",
				zap.Int64("user_id", user.ID),
				zap.Error(err))
			continue
		}
		if stats.DueForReview == 0 {
			continue
		}

		if err := j.sender.SendPracticeReminder(ctx, user, stats.DueForReview); err != nil {
			j.logger.Error("ошибка отправки напоминания",
				zap.Int64("user_id", user.ID),
				zap.Error(err))
			continue
		}

		if err := j.users.MarkReminderSent(ctx, user.ID, now); err != nil {
			j.logger.Error("ошибка сохранения времени напоминания",
				zap.Int64("user_id", user.ID),
				zap.Error(err))
		}

		if j.metrics != nil {
			j.metrics.RecordReminderSent()
		}
		sent++
	}

	j.logger.Info("напоминания о тренировке отправлены",
		zap.Int("candidates", len(users)),
		zap.Int("sent", sent))

	return nil
}

// inReminderHours проверяет попадание в окно [StartHour, EndHour)
func (j *PracticeReminderJob) inReminderHours(now time.Time) bool {
	hour := now.In(j.opts.Location).Hour()
	if j.opts.StartHour <= j.opts.EndHour {
		return hour >= j.opts.StartHour && hour < j.opts.EndHour
	}
	// окно через полночь
	return hour >= j.opts.StartHour || hour < j.opts.EndHour
}
