package vocabulary

import (
	"context"
	"fmt"
	"time"

	"lingua-tutor/internal/store"
	"lingua-tutor/pkg/models"
)

type memWords struct {
	words      map[string]*models.Word
	categories map[string]*models.Category
	levels     map[int64]string // категория -> уровень
	assigned   map[int64][]int64
	nextID     int64
	err        error
}

func newMemWords() *memWords {
	return &memWords{
		words:      make(map[string]*models.Word),
		categories: make(map[string]*models.Category),
		levels:     make(map[int64]string),
		assigned:   make(map[int64][]int64),
	}
}

func (m *memWords) UpsertCategory(_ context.Context, name, level string) (*models.Category, error) {
	if m.err != nil {
		return nil, m.err
	}
	if c, ok := m.categories[name]; ok {
		c.Level = level
		m.levels[c.ID] = level
		return c, nil
	}
	m.nextID++
	c := &models.Category{ID: m.nextID, Name: name, Level: level}
	m.categories[name] = c
	m.levels[c.ID] = level
	return c, nil
}

func (m *memWords) UpsertWord(_ context.Context, word *models.Word) error {
	if m.err != nil {
		return m.err
	}
	word.EnglishText = store.NormalizeEnglish(word.EnglishText)
	if existing, ok := m.words[word.EnglishText]; ok {
		existing.RussianTranslation = word.RussianTranslation
		if word.CategoryID != nil {
			existing.CategoryID = word.CategoryID
		}
		*word = *existing
		return nil
	}
	m.nextID++
	word.ID = m.nextID
	stored := *word
	m.words[word.EnglishText] = &stored
	return nil
}

func (m *memWords) GetByEnglish(_ context.Context, english string) (*models.Word, error) {
	if m.err != nil {
		return nil, m.err
	}
	w, ok := m.words[store.NormalizeEnglish(english)]
	if !ok {
		return nil, fmt.Errorf("слово %q: %w", english, store.ErrNotFound)
	}
	copied := *w
	return &copied, nil
}

func (m *memWords) Assign(_ context.Context, studentID, wordID int64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, id := range m.assigned[studentID] {
		if id == wordID {
			return false, nil
		}
	}
	m.assigned[studentID] = append(m.assigned[studentID], wordID)
	return true, nil
}

func (m *memWords) Unassign(_ context.Context, studentID, wordID int64) (bool, error) {
	ids := m.assigned[studentID]
	for i, id := range ids {
		if id == wordID {
			m.assigned[studentID] = append(ids[:i], ids[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memWords) byID(id int64) *models.Word {
	for _, w := range m.words {
		if w.ID == id {
			return w
		}
	}
	return nil
}

func (m *memWords) ListStudentWords(_ context.Context, studentID int64) ([]models.StudentWord, error) {
	var out []models.StudentWord
	for _, id := range m.assigned[studentID] {
		out = append(out, models.StudentWord{StudentID: studentID, WordID: id, Word: m.byID(id)})
	}
	return out, nil
}

func (m *memWords) CountStudentWords(_ context.Context, studentID int64) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return len(m.assigned[studentID]), nil
}

func (m *memWords) ListByLevel(_ context.Context, level string, excludeStudentID int64, limit int) ([]models.Word, error) {
	taken := make(map[int64]bool)
	for _, id := range m.assigned[excludeStudentID] {
		taken[id] = true
	}
	var out []models.Word
	for id := int64(1); id <= m.nextID && len(out) < limit; id++ {
		w := m.byID(id)
		if w == nil || w.CategoryID == nil || taken[id] || m.levels[*w.CategoryID] != level {
			continue
		}
		out = append(out, *w)
	}
	return out, nil
}

type memProgress struct {
	initCalls int
	stats     *models.VocabularyStats
	statsAt   time.Time
}

func (m *memProgress) Get(context.Context, int64, int64) (*models.WordProgress, error) {
	return nil, nil
}

func (m *memProgress) Update(context.Context, *models.WordProgress) (bool, error) {
	return false, nil
}

func (m *memProgress) InitMissing(context.Context, int64) (int64, error) {
	m.initCalls++
	return 0, nil
}

func (m *memProgress) ListNew(context.Context, int64, int) ([]models.SessionWord, error) {
	return nil, nil
}

func (m *memProgress) ListDueForReview(context.Context, int64, time.Time, int) ([]models.SessionWord, error) {
	return nil, nil
}

func (m *memProgress) ListMastered(context.Context, int64, int) ([]models.SessionWord, error) {
	return nil, nil
}

func (m *memProgress) Stats(_ context.Context, _ int64, now time.Time) (*models.VocabularyStats, error) {
	m.statsAt = now
	return m.stats, nil
}
