package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// OpenMigrator открывает отдельное соединение database/sql (драйвер lib/pq)
// для применения схемы. Рабочие запросы идут через пул pgx.
func OpenMigrator(databaseURL string) (*sql.DB, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия соединения для миграций: %w", err)
	}
	return sqlDB, nil
}

// Migrate создает схему и применяет миграции
func Migrate(sqlDB *sql.DB) error {
	if _, err := sqlDB.Exec(schema); err != nil {
		return fmt.Errorf("ошибка создания схемы: %w", err)
	}

	for i, m := range migrations {
		if _, err := sqlDB.Exec(m); err != nil {
			return fmt.Errorf("ошибка миграции %d: %w", i+1, err)
		}
	}

	return nil
}
