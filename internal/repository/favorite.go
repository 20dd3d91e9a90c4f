package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/reswap-api/internal/db"
	"github.com/rajivgeraev/reswap-api/internal/models"
)

// FavoriteRepository хранит избранные вещи пользователей
type FavoriteRepository struct {
	db    db.Querier
	items *ItemRepository
}

// NewFavoriteRepository создает новый экземпляр FavoriteRepository
func NewFavoriteRepository(q db.Querier, items *ItemRepository) *FavoriteRepository {
	return &FavoriteRepository{db: q, items: items}
}

// AddFavorite добавляет вещь в избранное
func (r *FavoriteRepository) AddFavorite(ctx context.Context, userID, itemID uuid.UUID) (*models.Favorite, error) {
	fav := &models.Favorite{ID: uuid.New(), UserID: userID, ItemID: itemID}
	err := r.db.QueryRow(ctx, `
		INSERT INTO favorites (id, user_id, item_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, item_id) DO NOTHING
		RETURNING created_at
	`, fav.ID, userID, itemID).Scan(&fav.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, models.ErrConflict
		case isPgError(err, pgForeignKeyViolation):
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка при добавлении в избранное: %w", err)
	}
	return fav, nil
}

// RemoveFavorite удаляет вещь из избранного
func (r *FavoriteRepository) RemoveFavorite(ctx context.Context, userID, itemID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM favorites WHERE user_id = $1 AND item_id = $2
	`, userID, itemID)
	if err != nil {
		return fmt.Errorf("ошибка при удалении из избранного: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// IsFavorite проверяет, находится ли вещь в избранном
func (r *FavoriteRepository) IsFavorite(ctx context.Context, userID, itemID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = $1 AND item_id = $2)
	`, userID, itemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка при проверке избранного: %w", err)
	}
	return exists, nil
}

// ListFavorites возвращает страницу избранного с вещами и общее количество
func (r *FavoriteRepository) ListFavorites(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Favorite, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM favorites WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка при подсчете избранного: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, item_id, created_at FROM favorites
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка при получении избранного: %w", err)
	}

	favorites := []models.Favorite{}
	var itemIDs []uuid.UUID
	for rows.Next() {
		fav := models.Favorite{UserID: userID}
		if err := rows.Scan(&fav.ID, &fav.ItemID, &fav.CreatedAt); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("ошибка при чтении избранного: %w", err)
		}
		favorites = append(favorites, fav)
		itemIDs = append(itemIDs, fav.ItemID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка при чтении избранного: %w", err)
	}

	items, err := r.items.GetItemsByIDs(ctx, itemIDs)
	if err != nil {
		return nil, 0, err
	}
	byID := make(map[uuid.UUID]*models.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}
	for i := range favorites {
		favorites[i].Item = byID[favorites[i].ItemID]
	}
	return favorites, total, nil
}
