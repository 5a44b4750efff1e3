package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lingua-tutor/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type wordRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewWordRepository создает репозиторий каталога слов
func NewWordRepository(db *pgxpool.Pool, logger *zap.Logger) WordRepository {
	return &wordRepository{
		db:     db,
		logger: logger,
	}
}

// NormalizeEnglish приводит английское слово к виду, в котором оно хранится в каталоге
func NormalizeEnglish(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// UpsertCategory создает категорию или обновляет ее уровень
func (r *wordRepository) UpsertCategory(ctx context.Context, name, level string) (*models.Category, error) {
	query := `
		INSERT INTO categories (name, level)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET level = EXCLUDED.level
		RETURNING id, name, level`

	c := &models.Category{}
	if err := r.db.QueryRow(ctx, query, strings.TrimSpace(name), level).Scan(&c.ID, &c.Name, &c.Level); err != nil {
		return nil, fmt.Errorf("ошибка сохранения категории: %w", Unavailable(err))
	}
	return c, nil
}

// UpsertWord добавляет слово в каталог или обновляет перевод существующего
func (r *wordRepository) UpsertWord(ctx context.Context, word *models.Word) error {
	query := `
		INSERT INTO words (english_text, russian_translation, category_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (english_text) DO UPDATE
		SET russian_translation = EXCLUDED.russian_translation,
		    category_id = COALESCE(EXCLUDED.category_id, words.category_id)
		RETURNING id, category_id`

	word.EnglishText = NormalizeEnglish(word.EnglishText)
	word.RussianTranslation = strings.TrimSpace(word.RussianTranslation)

	if err := r.db.QueryRow(ctx, query, word.EnglishText, word.RussianTranslation, word.CategoryID).
		Scan(&word.ID, &word.CategoryID); err != nil {
		return fmt.Errorf("ошибка сохранения слова %q: %w", word.EnglishText, Unavailable(err))
	}
	return nil
}

// GetByEnglish ищет слово каталога по английскому написанию
func (r *wordRepository) GetByEnglish(ctx context.Context, english string) (*models.Word, error) {
	query := `SELECT id, english_text, russian_translation, category_id FROM words WHERE english_text = $1`

	w := &models.Word{}
	err := r.db.QueryRow(ctx, query, NormalizeEnglish(english)).
		Scan(&w.ID, &w.EnglishText, &w.RussianTranslation, &w.CategoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("слово %q: %w", english, ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения слова: %w", Unavailable(err))
	}
	return w, nil
}

// Assign назначает слово ученику. Возвращает false, если слово уже назначено.
func (r *wordRepository) Assign(ctx context.Context, studentID, wordID int64) (bool, error) {
	query := `
		INSERT INTO student_words (student_id, word_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id, word_id) DO NOTHING`

	result, err := r.db.Exec(ctx, query, studentID, wordID, time.Now())
	if err != nil {
		return false, fmt.Errorf("ошибка назначения слова: %w", Unavailable(err))
	}
	return result.RowsAffected() > 0, nil
}

// Unassign снимает слово с ученика; прогресс удаляется каскадно
func (r *wordRepository) Unassign(ctx context.Context, studentID, wordID int64) (bool, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM student_words WHERE student_id = $1 AND word_id = $2`, studentID, wordID)
	if err != nil {
		return false, fmt.Errorf("ошибка снятия слова: %w", Unavailable(err))
	}
	return result.RowsAffected() > 0, nil
}

// ListStudentWords возвращает слова ученика в порядке назначения
func (r *wordRepository) ListStudentWords(ctx context.Context, studentID int64) ([]models.StudentWord, error) {
	query := `
		SELECT sw.student_id, sw.word_id, sw.created_at,
		       w.id, w.english_text, w.russian_translation, w.category_id
		FROM student_words sw
		JOIN words w ON w.id = sw.word_id
		WHERE sw.student_id = $1
		ORDER BY sw.created_at ASC, sw.word_id ASC`

	rows, err := r.db.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения слов ученика: %w", Unavailable(err))
	}
	defer rows.Close()

	var result []models.StudentWord
	for rows.Next() {
		var sw models.StudentWord
		w := &models.Word{}
		if err := rows.Scan(&sw.StudentID, &sw.WordID, &sw.CreatedAt,
			&w.ID, &w.EnglishText, &w.RussianTranslation, &w.CategoryID); err != nil {
			return nil, fmt.Errorf("ошибка сканирования слова ученика: %w", err)
		}
		sw.Word = w
		result = append(result, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по словам: %w", Unavailable(err))
	}
	return result, nil
}

// CountStudentWords количество назначенных ученику слов
func (r *wordRepository) CountStudentWords(ctx context.Context, studentID int64) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM student_words WHERE student_id = $1`, studentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчета слов ученика: %w", Unavailable(err))
	}
	return count, nil
}

// ListByLevel возвращает слова каталога заданного уровня, еще не назначенные ученику
func (r *wordRepository) ListByLevel(ctx context.Context, level string, excludeStudentID int64, limit int) ([]models.Word, error) {
	query := `
		SELECT w.id, w.english_text, w.russian_translation, w.category_id
		FROM words w
		JOIN categories c ON c.id = w.category_id
		LEFT JOIN student_words sw ON sw.word_id = w.id AND sw.student_id = $2
		WHERE c.level = $1 AND sw.word_id IS NULL
		ORDER BY w.id ASC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, level, excludeStudentID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения слов уровня %s: %w", level, Unavailable(err))
	}
	defer rows.Close()

	var words []models.Word
	for rows.Next() {
		var w models.Word
		if err := rows.Scan(&w.ID, &w.EnglishText, &w.RussianTranslation, &w.CategoryID); err != nil {
			return nil, fmt.Errorf("ошибка сканирования слова каталога: %w", err)
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по каталогу: %w", Unavailable(err))
	}
	return words, nil
}
