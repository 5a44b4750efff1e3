package practice

import (
	"context"
	"sort"
	"time"

	"lingua-tutor/pkg/models"
)

// memRepo повторяет порядок и фильтры SQL-запросов ProgressRepository
type memRepo struct {
	assigned []models.StudentWord
	words    map[int64]models.Word
	progress map[int64]*models.WordProgress
	err      error
	inits    int
}

func newMemRepo() *memRepo {
	return &memRepo{
		words:    make(map[int64]models.Word),
		progress: make(map[int64]*models.WordProgress),
	}
}

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// assign назначает слово; порядок назначения задает created_at
func (r *memRepo) assign(id int64, english, russian string) {
	r.words[id] = models.Word{ID: id, EnglishText: english, RussianTranslation: russian}
	r.assigned = append(r.assigned, models.StudentWord{
		StudentID: 1,
		WordID:    id,
		CreatedAt: baseTime.Add(time.Duration(len(r.assigned)) * time.Minute),
	})
}

func (r *memRepo) setProgress(id int64, status models.WordStatus, next, practiced *time.Time) {
	r.progress[id] = &models.WordProgress{
		StudentID:      1,
		WordID:         id,
		Status:         status,
		NextReviewDate: next,
		LastPracticed:  practiced,
	}
}

func (r *memRepo) InitMissing(_ context.Context, studentID int64) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.inits++
	var created int64
	for _, sw := range r.assigned {
		if _, ok := r.progress[sw.WordID]; !ok {
			r.progress[sw.WordID] = &models.WordProgress{StudentID: studentID, WordID: sw.WordID, Status: models.WordStatusNew}
			created++
		}
	}
	return created, nil
}

func (r *memRepo) collect(filter func(p *models.WordProgress) bool) []models.SessionWord {
	var out []models.SessionWord
	for _, sw := range r.assigned {
		p := r.progress[sw.WordID]
		if p != nil && filter(p) {
			out = append(out, models.SessionWord{Word: r.words[sw.WordID], Progress: *p})
		}
	}
	return out
}

func take(words []models.SessionWord, limit int) []models.SessionWord {
	if len(words) > limit {
		return words[:limit]
	}
	return words
}

func (r *memRepo) ListNew(_ context.Context, _ int64, limit int) ([]models.SessionWord, error) {
	if r.err != nil {
		return nil, r.err
	}
	// assigned уже упорядочены по времени назначения
	return take(r.collect(func(p *models.WordProgress) bool { return p.Status == models.WordStatusNew }), limit), nil
}

func (r *memRepo) ListDueForReview(_ context.Context, _ int64, now time.Time, limit int) ([]models.SessionWord, error) {
	if r.err != nil {
		return nil, r.err
	}
	words := r.collect(func(p *models.WordProgress) bool {
		return (p.Status == models.WordStatusLearning || p.Status == models.WordStatusLearned) &&
			p.NextReviewDate != nil && !p.NextReviewDate.After(now)
	})
	sort.SliceStable(words, func(i, j int) bool {
		return words[i].Progress.NextReviewDate.Before(*words[j].Progress.NextReviewDate)
	})
	return take(words, limit), nil
}

func (r *memRepo) ListMastered(_ context.Context, _ int64, limit int) ([]models.SessionWord, error) {
	if r.err != nil {
		return nil, r.err
	}
	words := r.collect(func(p *models.WordProgress) bool { return p.Status == models.WordStatusMastered })
	sort.SliceStable(words, func(i, j int) bool {
		a, b := words[i].Progress.LastPracticed, words[j].Progress.LastPracticed
		if a == nil || b == nil {
			return a == nil && b != nil
		}
		return a.Before(*b)
	})
	return take(words, limit), nil
}

func ptr(t time.Time) *time.Time { return &t }

func wordIDs(words []models.SessionWord) []int64 {
	ids := make([]int64, len(words))
	for i, w := range words {
		ids[i] = w.Word.ID
	}
	return ids
}
