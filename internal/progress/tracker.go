package progress

import (
	"context"
	"fmt"
	"time"

	"lingua-tutor/pkg/models"

	"go.uber.org/zap"
)

// Repository хранилище прогресса, нужное трекеру
type Repository interface {
	Get(ctx context.Context, studentID, wordID int64) (*models.WordProgress, error)
	Update(ctx context.Context, p *models.WordProgress) (bool, error)
}

// Recorder принимает метрики обновлений
type Recorder interface {
	RecordProgressUpdate(result, status string)
}

// Tracker обновляет прогресс по словам.
// Чтение и запись строки выполняются разными запросами: при одновременных
// обновлениях одной пары (ученик, слово) одно из них может потеряться.
type Tracker struct {
	repo    Repository
	metrics Recorder
	logger  *zap.Logger
	now     func() time.Time
}

// NewTracker создает трекер прогресса. metrics может быть nil.
func NewTracker(repo Repository, metrics Recorder, logger *zap.Logger) *Tracker {
	return &Tracker{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// UpdateProgress учитывает правильное или неправильное употребление слова
// и возвращает статус после обновления. Если строки прогресса нет,
// ничего не делает и возвращает пустой статус без ошибки.
func (t *Tracker) UpdateProgress(ctx context.Context, studentID, wordID int64, isCorrect bool) (models.WordStatus, error) {
	p, err := t.repo.Get(ctx, studentID, wordID)
	if err != nil {
		return "", fmt.Errorf("ошибка чтения прогресса: %w", err)
	}
	if p == nil {
		t.logger.Debug("прогресс по слову не найден, обновление пропущено",
			zap.Int64("student_id", studentID),
			zap.Int64("word_id", wordID))
		t.record("missing", "")
		return "", nil
	}

	before := p.Status
	Apply(p, isCorrect, t.now())

	updated, err := t.repo.Update(ctx, p)
	if err != nil {
		return "", fmt.Errorf("ошибка сохранения прогресса: %w", err)
	}
	if !updated {
		t.record("missing", "")
		return "", nil
	}

	result := "incorrect"
	if isCorrect {
		result = "correct"
	}
	t.record(result, string(p.Status))

	if p.Status != before {
		t.logger.Info("статус слова изменился",
			zap.Int64("student_id", studentID),
			zap.Int64("word_id", wordID),
			zap.String("from", string(before)),
			zap.String("to", string(p.Status)),
			zap.Int("dialog_uses", p.DialogUses))
	}

	return p.Status, nil
}

func (t *Tracker) record(result, status string) {
	if t.metrics != nil {
		t.metrics.RecordProgressUpdate(result, status)
	}
}
