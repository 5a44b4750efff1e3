package vocabulary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lingua-tutor/internal/store"
	"lingua-tutor/pkg/models"

	"go.uber.org/zap"
)

var (
	// ErrUnknownWord слова нет в каталоге, а перевод не указан
	ErrUnknownWord = errors.New("слово не найдено в каталоге")
	// ErrInvalidWordFormat строка не похожа на "word - перевод"
	ErrInvalidWordFormat = errors.New("ожидается формат: word - перевод")
)

// Service управляет словарем ученика
type Service struct {
	words    store.WordRepository
	progress store.ProgressRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewService создает сервис словаря
func NewService(words store.WordRepository, progress store.ProgressRepository, logger *zap.Logger) *Service {
	return &Service{
		words:    words,
		progress: progress,
		logger:   logger,
		now:      time.Now,
	}
}

// AssignWord назначает ученику слово. Если слова нет в каталоге и задан перевод,
// слово добавляется в каталог. added = false, если слово уже было назначено.
func (s *Service) AssignWord(ctx context.Context, studentID int64, english, russian string) (word *models.Word, added bool, err error) {
	english = store.NormalizeEnglish(english)
	russian = strings.TrimSpace(russian)
	if english == "" {
		return nil, false, ErrInvalidWordFormat
	}

	word, err = s.words.GetByEnglish(ctx, english)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if russian == "" {
			return nil, false, fmt.Errorf("%q: %w", english, ErrUnknownWord)
		}
		word = &models.Word{EnglishText: english, RussianTranslation: russian}
		if err := s.words.UpsertWord(ctx, word); err != nil {
			return nil, false, err
		}
	case err != nil:
		return nil, false, err
	}

	added, err = s.words.Assign(ctx, studentID, word.ID)
	if err != nil {
		return nil, false, err
	}

	if added {
		s.logger.Info("слово назначено ученику",
			zap.Int64("student_id", studentID),
			zap.String("word", word.EnglishText))
	}
	return word, added, nil
}

// UnassignWord снимает слово с ученика вместе с прогрессом
func (s *Service) UnassignWord(ctx context.Context, studentID int64, english string) (bool, error) {
	word, err := s.words.GetByEnglish(ctx, english)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	removed, err := s.words.Unassign(ctx, studentID, word.ID)
	if err != nil {
		return false, err
	}
	if removed {
		s.logger.Info("слово снято с ученика",
			zap.Int64("student_id", studentID),
			zap.String("word", word.EnglishText))
	}
	return removed, nil
}

// ListStudentWords возвращает слова ученика в порядке назначения
func (s *Service) ListStudentWords(ctx context.Context, studentID int64) ([]models.StudentWord, error) {
	return s.words.ListStudentWords(ctx, studentID)
}

// ProvisionDefaultWords назначает ученику без слов до n слов каталога его уровня.
// Возвращает число назначенных слов.
func (s *Service) ProvisionDefaultWords(ctx context.Context, studentID int64, level string, n int) (int, error) {
	count, err := s.words.CountStudentWords(ctx, studentID)
	if err != nil {
		return 0, err
	}
	if count > 0 || n <= 0 {
		return 0, nil
	}

	if !models.IsValidLevel(level) {
		level = models.DefaultLevel
	}

	words, err := s.words.ListByLevel(ctx, level, studentID, n)
	if err != nil {
		return 0, err
	}

	assigned := 0
	for _, w := range words {
		ok, err := s.words.Assign(ctx, studentID, w.ID)
		if err != nil {
			return assigned, err
		}
		if ok {
			assigned++
		}
	}

	s.logger.Info("ученику назначены стартовые слова",
		zap.Int64("student_id", studentID),
		zap.String("level", level),
		zap.Int("count", assigned))

	return assigned, nil
}

// Stats возвращает сводку по словарю ученика
func (s *Service) Stats(ctx context.Context, studentID int64) (*models.VocabularyStats, error) {
	if _, err := s.progress.InitMissing(ctx, studentID); err != nil {
		return nil, err
	}
	return s.progress.Stats(ctx, studentID, s.now())
}

// ParseWordPair разбирает строку "apple - яблоко". Кроме " - " допустимы длинное тире, "=" и ":".
// Перевод может отсутствовать.
func ParseWordPair(text string) (english, russian string, err error) {
	text = strings.TrimSpace(text)
	for _, sep := range []string{" - ", "—", "=", ":"} {
		if i := strings.Index(text, sep); i >= 0 {
			english = strings.TrimSpace(text[:i])
			russian = strings.TrimSpace(text[i+len(sep):])
			break
		}
	}
	if english == "" && russian == "" {
		english = text
	}

	english = store.NormalizeEnglish(english)
	if english == "" || !isLatin(english) {
		return "", "", ErrInvalidWordFormat
	}
	return english, russian, nil
}

func isLatin(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}
