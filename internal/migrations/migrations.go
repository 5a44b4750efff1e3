package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"

	"lingua-tutor/internal/config"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var embedded embed.FS

const embeddedDir = "sql"

// RunMigrations применяет миграции к базе данных
func RunMigrations(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("начало применения миграций")

	db, dir, err := prepare(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	logger.Info("миграции успешно применены")
	return nil
}

// GetMigrationStatus выводит статус миграций
func GetMigrationStatus(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("проверка статуса миграций")

	db, dir, err := prepare(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.Status(db, dir); err != nil {
		return fmt.Errorf("ошибка получения статуса миграций: %w", err)
	}
	return nil
}

func prepare(cfg *config.Config, logger *zap.Logger) (*sql.DB, string, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, "", fmt.Errorf("ошибка установки диалекта: %w", err)
	}

	fsys, dir := migrationSource(cfg.Database.MigrationPath, logger)
	goose.SetBaseFS(fsys)

	db, err := sql.Open("postgres", cfg.Database.GetURL())
	if err != nil {
		return nil, "", fmt.Errorf("ошибка подключения к базе данных для миграций: %w", err)
	}
	return db, dir, nil
}

// migrationSource выбирает каталог с миграциями: внешний, если он задан и существует,
// иначе встроенный в бинарник
func migrationSource(path string, logger *zap.Logger) (fs.FS, string) {
	if path != "" {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			logger.Info("используем путь к миграциям из конфигурации", zap.String("path", path))
			return nil, path
		}
		logger.Warn("каталог миграций не найден, используем встроенные", zap.String("path", path))
	}
	return embedded, embeddedDir
}
