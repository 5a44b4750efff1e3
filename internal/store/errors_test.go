package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestUnavailable(t *testing.T) {
	t.Run("nil остается nil", func(t *testing.T) {
		assert.NoError(t, Unavailable(nil))
	})

	t.Run("ошибка соединения помечается", func(t *testing.T) {
		err := Unavailable(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"))
		assert.ErrorIs(t, err, ErrDataUnavailable)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("таймаут помечается", func(t *testing.T) {
		err := Unavailable(fmt.Errorf("запрос: %w", context.DeadlineExceeded))
		assert.ErrorIs(t, err, ErrDataUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("ошибка сервера не помечается", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
		err := Unavailable(fmt.Errorf("вставка: %w", pgErr))
		assert.NotErrorIs(t, err, ErrDataUnavailable)
		assert.True(t, IsUniqueViolation(err))
	})

	t.Run("отсутствие строк не помечается", func(t *testing.T) {
		err := Unavailable(pgx.ErrNoRows)
		assert.NotErrorIs(t, err, ErrDataUnavailable)
	})

	t.Run("повторная пометка не дублирует", func(t *testing.T) {
		once := Unavailable(errors.New("broken pipe"))
		assert.Equal(t, once, Unavailable(once))
	})
}
