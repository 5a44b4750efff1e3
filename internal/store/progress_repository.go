package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lingua-tutor/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type progressRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewProgressRepository создает репозиторий прогресса по словам
func NewProgressRepository(db *pgxpool.Pool, logger *zap.Logger) ProgressRepository {
	return &progressRepository{
		db:     db,
		logger: logger,
	}
}

const sessionWordColumns = `
	w.id, w.english_text, w.russian_translation, w.category_id,
	wp.student_id, wp.word_id, wp.status, wp.dialog_uses, wp.mastery_score,
	wp.last_practiced, wp.next_review_date, wp.created_at`

const sessionWordFrom = `
	FROM word_progress wp
	JOIN student_words sw ON sw.student_id = wp.student_id AND sw.word_id = wp.word_id
	JOIN words w ON w.id = wp.word_id`

// Get возвращает прогресс по слову или nil, если строки еще нет
func (r *progressRepository) Get(ctx context.Context, studentID, wordID int64) (*models.WordProgress, error) {
	query := `
		SELECT student_id, word_id, status, dialog_uses, mastery_score, last_practiced, next_review_date, created_at
		FROM word_progress
		WHERE student_id = $1 AND word_id = $2`

	p := &models.WordProgress{}
	err := r.db.QueryRow(ctx, query, studentID, wordID).Scan(
		&p.StudentID, &p.WordID, &p.Status, &p.DialogUses, &p.MasteryScore,
		&p.LastPracticed, &p.NextReviewDate, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка получения прогресса по слову: %w", Unavailable(err))
	}
	return p, nil
}

// Update сохраняет счетчики прогресса. Возвращает false, если строки нет.
func (r *progressRepository) Update(ctx context.Context, p *models.WordProgress) (bool, error) {
	query := `
		UPDATE word_progress
		SET status = $3, dialog_uses = $4, mastery_score = $5, last_practiced = $6, next_review_date = $7
		WHERE student_id = $1 AND word_id = $2`

	result, err := r.db.Exec(ctx, query,
		p.StudentID, p.WordID, p.Status, p.DialogUses, p.MasteryScore, p.LastPracticed, p.NextReviewDate,
	)
	if err != nil {
		return false, fmt.Errorf("ошибка обновления прогресса по слову: %w", Unavailable(err))
	}
	return result.RowsAffected() > 0, nil
}

// InitMissing создает строки прогресса для назначенных слов, у которых их еще нет
func (r *progressRepository) InitMissing(ctx context.Context, studentID int64) (int64, error) {
	query := `
		INSERT INTO word_progress (student_id, word_id, status, dialog_uses, mastery_score, created_at)
		SELECT sw.student_id, sw.word_id, 'new', 0, 0, $2
		FROM student_words sw
		LEFT JOIN word_progress wp ON wp.student_id = sw.student_id AND wp.word_id = sw.word_id
		WHERE sw.student_id = $1 AND wp.word_id IS NULL
		ON CONFLICT (student_id, word_id) DO NOTHING`

	result, err := r.db.Exec(ctx, query, studentID, time.Now())
	if err != nil {
		return 0, fmt.Errorf("ошибка инициализации прогресса: %w", Unavailable(err))
	}

	created := result.RowsAffected()
	if created > 0 {
		r.logger.Debug("созданы строки прогресса",
			zap.Int64("student_id", studentID),
			zap.Int64("created", created))
	}
	return created, nil
}

// ListNew новые слова, начиная с самых давно назначенных
func (r *progressRepository) ListNew(ctx context.Context, studentID int64, limit int) ([]models.SessionWord, error) {
	query := `SELECT ` + sessionWordColumns + sessionWordFrom + `
		WHERE wp.student_id = $1 AND wp.status = 'new'
		ORDER BY sw.created_at ASC, wp.word_id ASC
		LIMIT $2`

	return r.querySessionWords(ctx, "новых слов", query, studentID, limit)
}

// ListDueForReview слова на стадии изучения, срок повторения которых наступил
func (r *progressRepository) ListDueForReview(ctx context.Context, studentID int64, now time.Time, limit int) ([]models.SessionWord, error) {
	query := `SELECT ` + sessionWordColumns + sessionWordFrom + `
		WHERE wp.student_id = $1
		  AND wp.status IN ('learning', 'learned')
		  AND wp.next_review_date <= $3
		ORDER BY wp.next_review_date ASC, wp.word_id ASC
		LIMIT $2`

	return r.querySessionWords(ctx, "слов к повторению", query, studentID, limit, now)
}

// ListMastered освоенные слова, начиная с давно не практиковавшихся
func (r *progressRepository) ListMastered(ctx context.Context, studentID int64, limit int) ([]models.SessionWord, error) {
	query := `SELECT ` + sessionWordColumns + sessionWordFrom + `
		WHERE wp.student_id = $1 AND wp.status = 'mastered'
		ORDER BY wp.last_practiced ASC NULLS FIRST, wp.word_id ASC
		LIMIT $2`

	return r.querySessionWords(ctx, "освоенных слов", query, studentID, limit)
}

func (r *progressRepository) querySessionWords(ctx context.Context, what, query string, args ...any) ([]models.SessionWord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения %s: %w", what, Unavailable(err))
	}
	defer rows.Close()

	var words []models.SessionWord
	for rows.Next() {
		var sw models.SessionWord
		err := rows.Scan(
			&sw.Word.ID, &sw.Word.EnglishText, &sw.Word.RussianTranslation, &sw.Word.CategoryID,
			&sw.Progress.StudentID, &sw.Progress.WordID, &sw.Progress.Status, &sw.Progress.DialogUses, &sw.Progress.MasteryScore,
			&sw.Progress.LastPracticed, &sw.Progress.NextReviewDate, &sw.Progress.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования %s: %w", what, err)
		}
		words = append(words, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации %s: %w", what, Unavailable(err))
	}
	return words, nil
}

// Stats сводка прогресса ученика по статусам
func (r *progressRepository) Stats(ctx context.Context, studentID int64, now time.Time) (*models.VocabularyStats, error) {
	query := `
		SELECT wp.status,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE wp.status IN ('learning', 'learned') AND wp.next_review_date <= $2),
		       COALESCE(SUM(wp.mastery_score), 0)
		FROM word_progress wp
		WHERE wp.student_id = $1
		GROUP BY wp.status`

	rows, err := r.db.Query(ctx, query, studentID, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики слов: %w", Unavailable(err))
	}
	defer rows.Close()

	stats := &models.VocabularyStats{ByStatus: make(map[models.WordStatus]int)}
	var masterySum int64
	for rows.Next() {
		var (
			status models.WordStatus
			count  int
			due    int
			sum    int64
		)
		if err := rows.Scan(&status, &count, &due, &sum); err != nil {
			return nil, fmt.Errorf("ошибка сканирования статистики: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
		stats.DueForReview += due
		masterySum += sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по статистике: %w", Unavailable(err))
	}

	if stats.Total > 0 {
		stats.AverageMastery = float64(masterySum) / float64(stats.Total)
	}
	return stats, nil
}
