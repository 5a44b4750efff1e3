package practice

import (
	"errors"

	"lingua-tutor/internal/store"
)

var (
	// ErrNoWords у ученика нет слов для тренировки
	ErrNoWords = errors.New("нет слов для тренировки")
	// ErrNoActiveSession тренировка не начата или уже завершена
	ErrNoActiveSession = errors.New("активная тренировка не найдена")
)

func isUnavailable(err error) bool {
	return errors.Is(err, store.ErrDataUnavailable)
}
