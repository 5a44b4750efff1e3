package practice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"lingua-tutor/pkg/models"

	"go.uber.org/zap"
)

// ProgressUpdater трекер прогресса по словам
type ProgressUpdater interface {
	UpdateProgress(ctx context.Context, studentID, wordID int64, isCorrect bool) (models.WordStatus, error)
}

// Recorder принимает метрики тренировок
type Recorder interface {
	RecordPracticeSession(event string, words int)
}

// Session словарная тренировка ученика: слова показываются по одному,
// ученик присылает перевод
type Session struct {
	StudentID int64
	Words     []models.SessionWord
	Position  int
	Correct   int
	StartedAt time.Time

	// ответы одного ученика проверяются по очереди
	answerMu sync.Mutex
}

// Card текущая карточка тренировки
type Card struct {
	Word   models.SessionWord
	Number int
	Total  int
}

// AnswerResult результат проверки ответа
type AnswerResult struct {
	Correct  bool
	Expected string
	Status   models.WordStatus
	Next     *Card
	Summary  *Summary // заполнено, когда тренировка закончилась
}

// Summary итог тренировки
type Summary struct {
	Total    int
	Answered int
	Correct  int
	Duration time.Duration
}

func (s *Session) card() *Card {
	if s.Position >= len(s.Words) {
		return nil
	}
	return &Card{Word: s.Words[s.Position], Number: s.Position + 1, Total: len(s.Words)}
}

func (s *Session) summary(now time.Time) *Summary {
	return &Summary{
		Total:    len(s.Words),
		Answered: s.Position,
		Correct:  s.Correct,
		Duration: now.Sub(s.StartedAt),
	}
}

// Service ведет активные тренировки учеников в памяти процесса
type Service struct {
	selector *Selector
	tracker  ProgressUpdater
	metrics  Recorder
	logger   *zap.Logger
	size     int

	mu       sync.Mutex
	sessions map[int64]*Session
	now      func() time.Time
}

// NewService создает сервис тренировок. size - число слов в одной тренировке.
func NewService(selector *Selector, tracker ProgressUpdater, metrics Recorder, size int, logger *zap.Logger) *Service {
	return &Service{
		selector: selector,
		tracker:  tracker,
		metrics:  metrics,
		logger:   logger,
		size:     size,
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// Start начинает новую тренировку, заменяя незавершенную
func (s *Service) Start(ctx context.Context, studentID int64) (*Card, error) {
	words, err := s.selector.SelectSessionWords(ctx, studentID, s.size)
	if err != nil {
		return nil, err
	}

	if len(words) == 0 {
		s.record("empty", 0)
		return nil, ErrNoWords
	}

	session := &Session{
		StudentID: studentID,
		Words:     words,
		StartedAt: s.now(),
	}

	s.mu.Lock()
	s.sessions[studentID] = session
	card := session.card()
	s.mu.Unlock()

	s.record("started", len(words))
	s.logger.Info("начата тренировка",
		zap.Int64("student_id", studentID),
		zap.Int("words", len(words)))

	return card, nil
}

// Current возвращает текущую карточку или nil, если тренировки нет
func (s *Service) Current(studentID int64) *Card {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.sessions[studentID]
	if session == nil {
		return nil
	}
	return session.card()
}

// Answer проверяет перевод текущего слова и обновляет прогресс
func (s *Service) Answer(ctx context.Context, studentID int64, answer string) (*AnswerResult, error) {
	return s.resolve(ctx, studentID, func(w models.SessionWord) bool {
		return CheckAnswer(w.Word.RussianTranslation, answer)
	})
}

// Reveal показывает перевод; слово считается неотвеченным
func (s *Service) Reveal(ctx context.Context, studentID int64) (*AnswerResult, error) {
	return s.resolve(ctx, studentID, func(models.SessionWord) bool { return false })
}

// resolve засчитывает текущую карточку. Карточка переходит к следующей только после
// сохранения прогресса: при ошибке хранилища ученик может ответить на нее снова.
func (s *Service) resolve(ctx context.Context, studentID int64, judge func(models.SessionWord) bool) (*AnswerResult, error) {
	s.mu.Lock()
	session := s.sessions[studentID]
	s.mu.Unlock()
	if session == nil {
		return nil, ErrNoActiveSession
	}

	session.answerMu.Lock()
	defer session.answerMu.Unlock()

	s.mu.Lock()
	card := session.card()
	s.mu.Unlock()
	if card == nil {
		return nil, ErrNoActiveSession
	}

	current := card.Word
	correct := judge(current)
	status, err := s.tracker.UpdateProgress(ctx, studentID, current.Word.ID, correct)
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления прогресса: %w", err)
	}
	if status == "" {
		status = current.Progress.Status
	}

	result := &AnswerResult{
		Correct:  correct,
		Expected: current.Word.RussianTranslation,
		Status:   status,
	}

	s.mu.Lock()
	session.Position++
	if correct {
		session.Correct++
	}
	// тренировку могли прервать или заменить новой, пока сохранялся прогресс
	if s.sessions[studentID] == session {
		result.Next = session.card()
		if result.Next == nil {
			result.Summary = session.summary(s.now())
			delete(s.sessions, studentID)
		}
	}
	s.mu.Unlock()

	if result.Summary != nil {
		s.record("finished", result.Summary.Total)
		s.logger.Info("тренировка завершена",
			zap.Int64("student_id", studentID),
			zap.Int("correct", result.Summary.Correct),
			zap.Int("total", result.Summary.Total))
	}

	return result, nil
}

// End прерывает тренировку и возвращает итог
func (s *Service) End(studentID int64) *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.sessions[studentID]
	if session == nil {
		return nil
	}
	delete(s.sessions, studentID)

	s.logger.Info("тренировка прервана", zap.Int64("student_id", studentID))
	return session.summary(s.now())
}

// Active проверяет, идет ли у ученика тренировка
func (s *Service) Active(studentID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[studentID] != nil
}

func (s *Service) record(event string, words int) {
	if s.metrics != nil {
		s.metrics.RecordPracticeSession(event, words)
	}
}

// CheckAnswer сравнивает ответ с переводом без учета регистра, пунктуации и ё.
// Перевод может содержать варианты через запятую, точку с запятой или слэш.
func CheckAnswer(expected, given string) bool {
	answer := normalizeAnswer(given)
	if answer == "" {
		return false
	}

	variants := strings.FieldsFunc(expected, func(r rune) bool {
		return r == ',' || r == ';' || r == '/'
	})
	for _, v := range variants {
		if normalizeAnswer(v) == answer {
			return true
		}
	}
	return false
}

func normalizeAnswer(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ё", "е")
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '-' {
			return r
		}
		return -1
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
