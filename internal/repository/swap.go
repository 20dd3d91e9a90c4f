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

const swapColumns = `id, item_id, swap_with_item_id, requester_id, owner_id, status, message, created_at, updated_at`

// SwapRepository хранит запросы на обмен. Это единственное место хранения:
// списки запросов у вещи и у пользователя строятся из этой же таблицы.
type SwapRepository struct {
	db db.Querier
}

// NewSwapRepository создает новый экземпляр SwapRepository
func NewSwapRepository(q db.Querier) *SwapRepository {
	return &SwapRepository{db: q}
}

func scanSwap(row pgx.Row) (*models.SwapRequest, error) {
	var s models.SwapRequest
	var status string
	err := row.Scan(&s.ID, &s.ItemID, &s.SwapWithItemID, &s.RequesterID, &s.OwnerID,
		&status, &s.Message, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = models.SwapStatus(status)
	return &s, nil
}

type lockedItem struct {
	owner  uuid.UUID
	status string
}

// lockItems блокирует обе вещи в порядке возрастания ID,
// чтобы встречные запросы не взаимоблокировались
func lockItems(ctx context.Context, tx pgx.Tx, a, b uuid.UUID) (map[uuid.UUID]lockedItem, error) {
	first, second := a, b
	if second.String() < first.String() {
		first, second = second, first
	}

	locked := make(map[uuid.UUID]lockedItem, 2)
	for _, id := range []uuid.UUID{first, second} {
		var li lockedItem
		err := tx.QueryRow(ctx, `
			SELECT user_id, swap_status FROM items WHERE id = $1 FOR UPDATE
		`, id).Scan(&li.owner, &li.status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, models.ErrNotFound
			}
			return nil, fmt.Errorf("ошибка при блокировке вещи: %w", err)
		}
		locked[id] = li
	}
	return locked, nil
}

// CreateSwapRequest создает запрос на обмен item <- swap_with_item.
// Предлагаемая вещь должна принадлежать запрашивающему, целевая - другому
// пользователю. Повторный ожидающий запрос на ту же пару дает ErrConflict.
func (r *SwapRepository) CreateSwapRequest(ctx context.Context, req *models.SwapRequest) error {
	if req.ItemID == req.SwapWithItemID {
		return models.ErrSelfSwap
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	locked, err := lockItems(ctx, tx, req.ItemID, req.SwapWithItemID)
	if err != nil {
		return err
	}

	target := locked[req.ItemID]
	offered := locked[req.SwapWithItemID]

	if offered.owner != req.RequesterID {
		return models.ErrForbidden
	}
	if target.owner == req.RequesterID {
		return models.ErrSelfSwap
	}
	if target.status == models.ItemStatusSwapped || offered.status == models.ItemStatusSwapped {
		return models.ErrInvalidState
	}

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM swap_requests
			WHERE item_id = $1 AND swap_with_item_id = $2 AND status = 'pending'
		)
	`, req.ItemID, req.SwapWithItemID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("ошибка при проверке существующих запросов: %w", err)
	}
	if exists {
		return models.ErrConflict
	}

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.OwnerID = target.owner
	req.Status = models.SwapPending

	err = tx.QueryRow(ctx, `
		INSERT INTO swap_requests (id, item_id, swap_with_item_id, requester_id, owner_id, status, message)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6)
		RETURNING created_at, updated_at
	`, req.ID, req.ItemID, req.SwapWithItemID, req.RequesterID, req.OwnerID, req.Message).
		Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return models.ErrConflict
		}
		return fmt.Errorf("ошибка при сохранении запроса на обмен: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}
	return nil
}

// GetSwapRequest возвращает запрос по ID
func (r *SwapRepository) GetSwapRequest(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error) {
	s, err := scanSwap(r.db.QueryRow(ctx, `SELECT `+swapColumns+` FROM swap_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка при получении запроса на обмен: %w", err)
	}
	return s, nil
}

// ListSwapRequests возвращает запросы пользователя по направлению и статусу.
// Пустой status означает любой статус.
func (r *SwapRepository) ListSwapRequests(ctx context.Context, userID uuid.UUID, dir models.SwapDirection, status string) ([]models.SwapRequest, error) {
	var where string
	switch dir {
	case models.SwapIncoming:
		where = "owner_id = $1"
	case models.SwapOutgoing:
		where = "requester_id = $1"
	default:
		where = "(owner_id = $1 OR requester_id = $1)"
	}

	args := []any{userID}
	if status != "" {
		args = append(args, status)
		where += " AND status = $2"
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+swapColumns+` FROM swap_requests
		WHERE `+where+`
		ORDER BY created_at DESC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении запросов на обмен: %w", err)
	}
	defer rows.Close()

	result := []models.SwapRequest{}
	for rows.Next() {
		s, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка при чтении запроса на обмен: %w", err)
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

// AcceptSwapRequest подтверждает обмен. Обе вещи получают статус swapped,
// остальные ожидающие запросы с участием этих вещей отклоняются.
// Возвращает подтвержденный запрос и автоматически отклоненные.
func (r *SwapRepository) AcceptSwapRequest(ctx context.Context, id, ownerID uuid.UUID) (*models.SwapRequest, []models.SwapRequest, error) {
	var rejected []models.SwapRequest
	req, err := r.transition(ctx, id, func(s *models.SwapRequest) error {
		if s.OwnerID != ownerID {
			return models.ErrForbidden
		}
		return nil
	}, models.SwapSwapped, func(ctx context.Context, tx pgx.Tx, s *models.SwapRequest) error {
		if err := setItemsStatus(ctx, tx, models.ItemStatusSwapped, s.ItemID, s.SwapWithItemID); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `
			UPDATE swap_requests
			SET status = 'rejected', updated_at = NOW()
			WHERE status = 'pending' AND id <> $1
			  AND (item_id IN ($2, $3) OR swap_with_item_id IN ($2, $3))
			RETURNING `+swapColumns, s.ID, s.ItemID, s.SwapWithItemID)
		if err != nil {
			return fmt.Errorf("ошибка при отклонении конкурирующих запросов: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			other, err := scanSwap(rows)
			if err != nil {
				return fmt.Errorf("ошибка при чтении запроса на обмен: %w", err)
			}
			rejected = append(rejected, *other)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}
	return req, rejected, nil
}

// RejectSwapRequest отклоняет запрос. Статус обеих вещей становится rejected.
func (r *SwapRepository) RejectSwapRequest(ctx context.Context, id, ownerID uuid.UUID) (*models.SwapRequest, error) {
	return r.transition(ctx, id, func(s *models.SwapRequest) error {
		if s.OwnerID != ownerID {
			return models.ErrForbidden
		}
		return nil
	}, models.SwapRejected, func(ctx context.Context, tx pgx.Tx, s *models.SwapRequest) error {
		return setItemsStatus(ctx, tx, models.ItemStatusRejected, s.ItemID, s.SwapWithItemID)
	})
}

// CancelSwapRequest отзывает запрос. Отозвать может только автор запроса.
func (r *SwapRepository) CancelSwapRequest(ctx context.Context, id, requesterID uuid.UUID) (*models.SwapRequest, error) {
	return r.transition(ctx, id, func(s *models.SwapRequest) error {
		if s.RequesterID != requesterID {
			return models.ErrForbidden
		}
		return nil
	}, models.SwapCanceled, nil)
}

// transition переводит ожидающий запрос в новый статус в транзакции.
// authorize проверяет права, apply выполняет побочные изменения.
func (r *SwapRepository) transition(
	ctx context.Context,
	id uuid.UUID,
	authorize func(*models.SwapRequest) error,
	to models.SwapStatus,
	apply func(context.Context, pgx.Tx, *models.SwapRequest) error,
) (*models.SwapRequest, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	s, err := scanSwap(tx.QueryRow(ctx, `
		SELECT `+swapColumns+` FROM swap_requests WHERE id = $1 FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка при получении запроса на обмен: %w", err)
	}

	if err := authorize(s); err != nil {
		return nil, err
	}
	if s.Status != models.SwapPending {
		return nil, models.ErrInvalidState
	}

	err = tx.QueryRow(ctx, `
		UPDATE swap_requests SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at
	`, id, string(to)).Scan(&s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка при обновлении статуса запроса: %w", err)
	}
	s.Status = to

	if apply != nil {
		if err := apply(ctx, tx, s); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}
	return s, nil
}

func setItemsStatus(ctx context.Context, tx pgx.Tx, status string, a, b uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE items SET swap_status = $1, updated_at = NOW() WHERE id IN ($2, $3)
	`, status, a, b)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении статуса вещей: %w", err)
	}
	return nil
}
