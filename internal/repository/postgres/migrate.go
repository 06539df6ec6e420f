package postgres

import (
	"embed"
	"errors"
	"fmt"
	"taskManager/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func newMigrate(databaseURL string) (*migrate.Migrate, error) {
	if databaseURL == "" {
		return nil, errors.New("не задана строка подключения к БД")
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("чтение миграций: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("инициализация миграций: %w", err)
	}
	return m, nil
}

// Migrate применяет встроенные миграции до последней версии.
func Migrate(databaseURL string) error {
	logger.Info("Repository: Применение миграций")

	m, err := newMigrate(databaseURL)
	if err != nil {
		logger.Error("Repository: Ошибка инициализации миграций", err)
		return err
	}
	defer closeMigrate(m)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: Ошибка применения миграций", err)
		return fmt.Errorf("применение миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Repository: Миграции применены", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// Down откатывает все миграции.
func Down(databaseURL string) error {
	logger.Info("Repository: Откат миграций")

	m, err := newMigrate(databaseURL)
	if err != nil {
		return err
	}
	defer closeMigrate(m)

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: Ошибка отката миграций", err)
		return fmt.Errorf("откат миграций: %w", err)
	}
	return nil
}

func closeMigrate(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		logger.Warn("Repository: Ошибка закрытия источника миграций", zap.Error(srcErr))
	}
	if dbErr != nil {
		logger.Warn("Repository: Ошибка закрытия соединения миграций", zap.Error(dbErr))
	}
}
