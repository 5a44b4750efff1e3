package models

import "time"

// WordStatus ступень освоения слова
type WordStatus string

const (
	WordStatusNew      WordStatus = "new"
	WordStatusLearning WordStatus = "learning"
	WordStatusLearned  WordStatus = "learned"
	WordStatusMastered WordStatus = "mastered"
)

// IsValid проверяет, что статус входит в лестницу освоения
func (s WordStatus) IsValid() bool {
	switch s {
	case WordStatusNew, WordStatusLearning, WordStatusLearned, WordStatusMastered:
		return true
	default:
		return false
	}
}

// Category группа слов каталога
type Category struct {
	ID    int64  `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Level string `json:"level" db:"level"` // A1..C2
}

// Word запись глобального каталога слов
type Word struct {
	ID                 int64  `json:"id" db:"id"`
	EnglishText        string `json:"english_text" db:"english_text"`
	RussianTranslation string `json:"russian_translation" db:"russian_translation"`
	CategoryID         *int64 `json:"category_id" db:"category_id"`
}

// StudentWord назначение слова ученику
type StudentWord struct {
	StudentID int64     `json:"student_id" db:"student_id"`
	WordID    int64     `json:"word_id" db:"word_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Word *Word `json:"word,omitempty" db:"-"`
}

// WordProgress прогресс ученика по конкретному слову
type WordProgress struct {
	StudentID      int64      `json:"student_id" db:"student_id"`
	WordID         int64      `json:"word_id" db:"word_id"`
	Status         WordStatus `json:"status" db:"status"`
	DialogUses     int        `json:"dialog_uses" db:"dialog_uses"`     // подтвержденные правильные употребления
	MasteryScore   int        `json:"mastery_score" db:"mastery_score"` // 0..100
	LastPracticed  *time.Time `json:"last_practiced" db:"last_practiced"`
	NextReviewDate *time.Time `json:"next_review_date" db:"next_review_date"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// SessionWord слово, выбранное для тренировки, вместе с прогрессом
type SessionWord struct {
	Word     Word         `json:"word"`
	Progress WordProgress `json:"progress"`
}

// VocabularyStats сводка прогресса ученика
type VocabularyStats struct {
	Total          int                `json:"total"`
	ByStatus       map[WordStatus]int `json:"by_status"`
	DueForReview   int                `json:"due_for_review"`
	AverageMastery float64            `json:"average_mastery"`
}
