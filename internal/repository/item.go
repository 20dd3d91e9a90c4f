package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/reswap-api/internal/db"
	"github.com/rajivgeraev/reswap-api/internal/models"
)

const itemColumns = `i.id, i.user_id, i.name, i.description, i.keywords, i.category,
	i.condition, i.swap_status, i.listed_at, i.updated_at`

// ItemRepository хранит вещи и их изображения
type ItemRepository struct {
	db db.Querier
}

// NewItemRepository создает новый экземпляр ItemRepository
func NewItemRepository(q db.Querier) *ItemRepository {
	return &ItemRepository{db: q}
}

func scanItem(row pgx.Row, extra ...any) (models.Item, error) {
	var it models.Item
	var category, condition string
	dest := []any{&it.ID, &it.UserID, &it.Name, &it.Description, &it.Keywords,
		&category, &condition, &it.SwapStatus, &it.ListedAt, &it.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return it, err
	}
	it.Category = models.Category(category)
	it.Condition = models.Condition(condition)
	it.Images = []models.ItemImage{}
	return it, nil
}

// CreateItem сохраняет вещь вместе с изображениями в одной транзакции
func (r *ItemRepository) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.SwapStatus == "" {
		item.SwapStatus = models.ItemStatusPending
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO items (id, user_id, name, description, keywords, category, condition, swap_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING listed_at, updated_at
	`, item.ID, item.UserID, item.Name, item.Description, item.Keywords,
		string(item.Category), string(item.Condition), item.SwapStatus).Scan(&item.ListedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка при вставке вещи: %w", err)
	}

	for i := range item.Images {
		img := &item.Images[i]
		if img.ID == uuid.Nil {
			img.ID = uuid.New()
		}
		img.ItemID = item.ID
		img.Position = i
		img.IsMain = i == 0

		metadata, err := json.Marshal(img.Metadata)
		if err != nil {
			return fmt.Errorf("ошибка при сериализации метаданных: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO item_images (id, item_id, url, preview_url, public_id, is_main, position, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, img.ID, img.ItemID, img.URL, img.PreviewURL, img.PublicID, img.IsMain, img.Position, metadata)
		if err != nil {
			return fmt.Errorf("ошибка при вставке изображения: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}
	return nil
}

// UpdateItem меняет текстовые поля вещи. Изменять может только владелец.
func (r *ItemRepository) UpdateItem(ctx context.Context, item *models.Item) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE items
		SET name = $3, description = $4, keywords = $5, category = $6, condition = $7, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, item.ID, item.UserID, item.Name, item.Description, item.Keywords,
		string(item.Category), string(item.Condition))
	if err != nil {
		return fmt.Errorf("ошибка при обновлении вещи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.ownershipError(ctx, item.ID)
	}
	return nil
}

// ownershipError различает отсутствующую и чужую вещь
func (r *ItemRepository) ownershipError(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM items WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("ошибка при проверке вещи: %w", err)
	}
	if !exists {
		return models.ErrNotFound
	}
	return models.ErrForbidden
}

// GetItem возвращает вещь с изображениями, владельцем и запросами на обмен
func (r *ItemRepository) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var owner models.UserSummary
	item, err := scanItem(r.db.QueryRow(ctx, `
		SELECT `+itemColumns+`, u.username, COALESCE(u.email, ''), u.phone, u.avatar_url, u.location
		FROM items i
		JOIN users u ON u.id = i.user_id
		WHERE i.id = $1
	`, id), &owner.Username, &owner.Email, &owner.Phone, &owner.AvatarURL, &owner.Location)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка при получении вещи: %w", err)
	}
	owner.ID = item.UserID
	item.ListedBy = &owner

	items := []models.Item{item}
	if err := r.loadImages(ctx, items); err != nil {
		return nil, err
	}
	if err := r.loadSwapRefs(ctx, items, false); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// ListItems ищет вещи по фильтру. Возвращает страницу и общее количество.
func (r *ItemRepository) ListItems(ctx context.Context, f models.ItemFilter) ([]models.Item, int, error) {
	where, args := buildItemWhere(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM items i`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка при подсчете вещей: %w", err)
	}

	query := `SELECT ` + itemColumns + ` FROM items i` + where + ` ORDER BY i.listed_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	items, err := r.queryItems(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// buildItemWhere собирает условие WHERE и аргументы для фильтра
func buildItemWhere(f models.ItemFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		add("(i.name ILIKE $%[1]d OR i.description ILIKE $%[1]d OR i.keywords ILIKE $%[1]d)", "%"+q+"%")
	}
	if f.Category != "" {
		add("i.category = $%d", f.Category)
	}
	if f.Condition != "" {
		add("i.condition = $%d", f.Condition)
	}
	if f.SwapStatus != "" {
		add("i.swap_status = $%d", f.SwapStatus)
	}
	if f.OwnerID != nil {
		add("i.user_id = $%d", *f.OwnerID)
	}
	if f.ExcludeOwnerID != nil {
		add("i.user_id <> $%d", *f.ExcludeOwnerID)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// GetItemsByIDs возвращает вещи в порядке переданных ID, пропуская отсутствующие
func (r *ItemRepository) GetItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Item, error) {
	if len(ids) == 0 {
		return []models.Item{}, nil
	}

	found, err := r.queryItems(ctx, `
		SELECT `+itemColumns+` FROM items i WHERE i.id = ANY($1::uuid[])
	`, uuidStrings(ids))
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]models.Item, len(found))
	for _, it := range found {
		byID[it.ID] = it
	}

	result := make([]models.Item, 0, len(found))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if it, ok := byID[id]; ok && !seen[id] {
			result = append(result, it)
			seen[id] = true
		}
	}
	return result, nil
}

// ListByOwner возвращает все вещи пользователя с входящими запросами,
// в которых раскрыты предлагаемые вещи
func (r *ItemRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error) {
	items, _, err := r.ListItems(ctx, models.ItemFilter{OwnerID: &ownerID})
	if err != nil {
		return nil, err
	}
	if err := r.loadSwapRefs(ctx, items, true); err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteItem удаляет вещь владельца. Изображения, запросы на обмен и
// избранное удаляются каскадом. Возвращает ключи изображений в хранилище.
func (r *ItemRepository) DeleteItem(ctx context.Context, id, ownerID uuid.UUID) ([]string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var owner uuid.UUID
	err = tx.QueryRow(ctx, `SELECT user_id FROM items WHERE id = $1 FOR UPDATE`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка при проверке вещи: %w", err)
	}
	if owner != ownerID {
		return nil, models.ErrForbidden
	}

	rows, err := tx.Query(ctx, `
		SELECT public_id FROM item_images WHERE item_id = $1 AND public_id <> '' ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении изображений: %w", err)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("ошибка при чтении изображения: %w", err)
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при чтении изображений: %w", err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM items WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("ошибка при удалении вещи: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}
	return keys, nil
}

func (r *ItemRepository) queryItems(ctx context.Context, query string, args ...any) ([]models.Item, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении вещей: %w", err)
	}

	items := []models.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("ошибка при чтении вещи: %w", err)
		}
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при чтении вещей: %w", err)
	}

	if err := r.loadImages(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// loadImages подгружает изображения одним запросом для всех вещей
func (r *ItemRepository) loadImages(ctx context.Context, items []models.Item) error {
	if len(items) == 0 {
		return nil
	}

	index := make(map[uuid.UUID]int, len(items))
	ids := make([]uuid.UUID, len(items))
	for i, it := range items {
		index[it.ID] = i
		ids[i] = it.ID
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, item_id, url, preview_url, public_id, is_main, position, metadata, created_at
		FROM item_images
		WHERE item_id = ANY($1::uuid[])
		ORDER BY item_id, position
	`, uuidStrings(ids))
	if err != nil {
		return fmt.Errorf("ошибка при получении изображений: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img models.ItemImage
		var metadata []byte
		if err := rows.Scan(&img.ID, &img.ItemID, &img.URL, &img.PreviewURL, &img.PublicID,
			&img.IsMain, &img.Position, &metadata, &img.CreatedAt); err != nil {
			return fmt.Errorf("ошибка при чтении изображения: %w", err)
		}
		if len(metadata) > 0 {
			// Битые метаданные не мешают показу изображения
			_ = json.Unmarshal(metadata, &img.Metadata)
		}
		if i, ok := index[img.ItemID]; ok {
			items[i].Images = append(items[i].Images, img)
		}
	}
	return rows.Err()
}

// loadSwapRefs заполняет проекцию входящих запросов на обмен.
// При withOffered раскрывает предлагаемые вещи.
func (r *ItemRepository) loadSwapRefs(ctx context.Context, items []models.Item, withOffered bool) error {
	if len(items) == 0 {
		return nil
	}

	index := make(map[uuid.UUID]int, len(items))
	ids := make([]uuid.UUID, len(items))
	for i, it := range items {
		index[it.ID] = i
		ids[i] = it.ID
		items[i].SwapRequests = []models.ItemSwapRef{}
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, item_id, swap_with_item_id, requester_id, status, created_at
		FROM swap_requests
		WHERE item_id = ANY($1::uuid[])
		ORDER BY created_at DESC
	`, uuidStrings(ids))
	if err != nil {
		return fmt.Errorf("ошибка при получении запросов на обмен: %w", err)
	}

	var offeredIDs []uuid.UUID
	for rows.Next() {
		var ref models.ItemSwapRef
		var itemID uuid.UUID
		if err := rows.Scan(&ref.RequestID, &itemID, &ref.SwapWithItem, &ref.RequesterID,
			&ref.Status, &ref.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("ошибка при чтении запроса на обмен: %w", err)
		}
		if i, ok := index[itemID]; ok {
			items[i].SwapRequests = append(items[i].SwapRequests, ref)
			offeredIDs = append(offeredIDs, ref.SwapWithItem)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("ошибка при чтении запросов на обмен: %w", err)
	}

	if !withOffered || len(offeredIDs) == 0 {
		return nil
	}

	offered, err := r.GetItemsByIDs(ctx, offeredIDs)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]*models.Item, len(offered))
	for i := range offered {
		byID[offered[i].ID] = &offered[i]
	}
	for i := range items {
		for j := range items[i].SwapRequests {
			items[i].SwapRequests[j].OfferedItem = byID[items[i].SwapRequests[j].SwapWithItem]
		}
	}
	return nil
}
