// Package progress ведет прогресс ученика по каждому назначенному слову:
// счетчик правильных употреблений, производный статус и очки освоения.
package progress

import (
	"time"

	"lingua-tutor/pkg/models"
)

// Пороги статуса по числу правильных употреблений
const (
	LearningThreshold = 5
	LearnedThreshold  = 10
	MasteredThreshold = 20
)

// Изменение очков освоения
const (
	CorrectBonus     = 5
	IncorrectPenalty = 3
	MaxMasteryScore  = 100
	MinMasteryScore  = 0
)

// StatusFor возвращает статус для числа правильных употреблений; побеждает старший порог
func StatusFor(dialogUses int) models.WordStatus {
	switch {
	case dialogUses >= MasteredThreshold:
		return models.WordStatusMastered
	case dialogUses >= LearnedThreshold:
		return models.WordStatusLearned
	case dialogUses >= LearningThreshold:
		return models.WordStatusLearning
	default:
		return models.WordStatusNew
	}
}

// ReviewInterval через сколько слово с данным статусом снова попадет в повторение
func ReviewInterval(status models.WordStatus) time.Duration {
	switch status {
	case models.WordStatusLearning:
		return 24 * time.Hour
	case models.WordStatusLearned:
		return 3 * 24 * time.Hour
	case models.WordStatusMastered:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// Apply изменяет прогресс по результату одного употребления слова.
// Неправильный ответ меняет только очки освоения.
func Apply(p *models.WordProgress, isCorrect bool, now time.Time) {
	if !isCorrect {
		p.MasteryScore = clamp(p.MasteryScore - IncorrectPenalty)
		return
	}

	p.DialogUses++
	p.Status = StatusFor(p.DialogUses)
	p.MasteryScore = clamp(p.MasteryScore + CorrectBonus)

	practiced := now
	p.LastPracticed = &practiced
	next := now.Add(ReviewInterval(p.Status))
	p.NextReviewDate = &next
}

func clamp(score int) int {
	if score > MaxMasteryScore {
		return MaxMasteryScore
	}
	if score < MinMasteryScore {
		return MinMasteryScore
	}
	return score
}
