// Package favorites хранит избранное устройства в локальной базе SQLite.
package favorites

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS favorites (
	device_id  TEXT NOT NULL,
	item_id    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (device_id, item_id)
)`

// Entity - избранная вещь на устройстве
type Entity struct {
	DeviceID  uuid.UUID
	ItemID    uuid.UUID
	CreatedAt time.Time
}

// Store - локальное избранное
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open открывает (или создает) базу по пути path.
// ":memory:" дает базу в памяти.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы избранного: %w", err)
	}
	// Одно соединение: база в памяти живет, пока открыто соединение
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA busy_timeout=5000", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("ошибка подготовки базы избранного: %w", err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close закрывает базу
func (s *Store) Close() error {
	return s.db.Close()
}

// Add добавляет вещь в избранное; повторное добавление обновляет время
func (s *Store) Add(ctx context.Context, deviceID, itemID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO favorites (device_id, item_id, created_at) VALUES (?, ?, ?)
	`, deviceID.String(), itemID.String(), s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("ошибка добавления в избранное: %w", err)
	}
	return nil
}

// Remove убирает вещь из избранного. Отсутствие записи не ошибка.
// Add и затем Remove возвращают набор к исходному, только если вещи
// в нем не было: запись хранится одна, и Remove удаляет ее целиком.
func (s *Store) Remove(ctx context.Context, deviceID, itemID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM favorites WHERE device_id = ? AND item_id = ?
	`, deviceID.String(), itemID.String())
	if err != nil {
		return fmt.Errorf("ошибка удаления из избранного: %w", err)
	}
	return nil
}

// Contains проверяет, есть ли вещь в избранном
func (s *Store) Contains(ctx context.Context, deviceID, itemID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM favorites WHERE device_id = ? AND item_id = ?)
	`, deviceID.String(), itemID.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки избранного: %w", err)
	}
	return exists, nil
}

// List возвращает избранное устройства, новые первыми
func (s *Store) List(ctx context.Context, deviceID uuid.UUID) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, created_at FROM favorites
		WHERE device_id = ?
		ORDER BY created_at DESC, item_id
	`, deviceID.String())
	if err != nil {
		return nil, fmt.Errorf("ошибка получения избранного: %w", err)
	}
	defer rows.Close()

	list := []Entity{}
	for rows.Next() {
		var itemID string
		var created int64
		if err := rows.Scan(&itemID, &created); err != nil {
			return nil, fmt.Errorf("ошибка чтения избранного: %w", err)
		}
		id, err := uuid.Parse(itemID)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения избранного: %w", err)
		}
		list = append(list, Entity{DeviceID: deviceID, ItemID: id, CreatedAt: time.Unix(0, created)})
	}
	return list, rows.Err()
}
