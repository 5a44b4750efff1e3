package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(embedded, "sql/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		data, err := fs.ReadFile(embedded, name)
		require.NoError(t, err)

		body := string(data)
		assert.True(t, strings.Contains(body, "-- +goose Up"), "нет секции Up в %s", name)
		assert.True(t, strings.Contains(body, "-- +goose Down"), "нет секции Down в %s", name)
	}
}

func TestMigrationSource(t *testing.T) {
	logger := zap.NewNop()

	t.Run("пустой путь - встроенные", func(t *testing.T) {
		fsys, dir := migrationSource("", logger)
		assert.NotNil(t, fsys)
		assert.Equal(t, embeddedDir, dir)
	})

	t.Run("несуществующий путь - встроенные", func(t *testing.T) {
		fsys, dir := migrationSource("/nonexistent/migrations", logger)
		assert.NotNil(t, fsys)
		assert.Equal(t, embeddedDir, dir)
	})

	t.Run("существующий каталог", func(t *testing.T) {
		tmp := t.TempDir()
		fsys, dir := migrationSource(tmp, logger)
		assert.Nil(t, fsys)
		assert.Equal(t, tmp, dir)
	})
}
