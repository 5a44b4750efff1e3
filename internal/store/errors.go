package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDataUnavailable хранилище недоступно (нет соединения, таймаут)
	ErrDataUnavailable = errors.New("хранилище данных недоступно")
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("запись не найдена")
)

// Unavailable помечает ошибку как недоступность хранилища.
// Ошибки, которые вернул сам сервер PostgreSQL (нарушение ограничений, синтаксис),
// и отсутствие строк не помечаются.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDataUnavailable) || errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDataUnavailable, err)
}

// IsUniqueViolation проверяет нарушение уникального индекса
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// rowScanner общий интерфейс pgx.Row и pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}
