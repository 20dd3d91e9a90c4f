package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/reswap-api/internal/models"
)

var (
	ownerID     = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	requesterID = uuid.MustParse("00000000-0000-0000-0000-0000000000b2")
	targetID    = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	offeredID   = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	requestID   = uuid.MustParse("00000000-0000-0000-0000-0000000000f1")
	fixedTime   = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func swapRows(status string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "item_id", "swap_with_item_id", "requester_id", "owner_id",
		"status", "message", "created_at", "updated_at"}).
		AddRow(requestID, targetID, offeredID, requesterID, ownerID, status, "давай меняться", fixedTime, fixedTime)
}

func itemRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "user_id", "name", "description", "keywords", "category",
		"condition", "swap_status", "listed_at", "updated_at"})
}

func imageRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "item_id", "url", "preview_url", "public_id", "is_main",
		"position", "metadata", "created_at"})
}

// --- users ---

func TestCreateUser_DuplicateEmail(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(q("INSERT INTO users (email, username, password_hash)")).
		WithArgs("anna@example.com", "anna", "hash").
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	err := repo.CreateUser(context.Background(), &models.User{Email: "Anna@Example.com", Username: "anna", PasswordHash: "hash"})
	assert.ErrorIs(t, err, models.ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByEmail(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(q("FROM users WHERE lower(email) = $1")).
		WithArgs("anna@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "username", "phone", "avatar_url", "location",
			"telegram_id", "password_hash", "created_at", "updated_at"}).
			AddRow(ownerID, "anna@example.com", "anna", "+100", "", "Berlin", (*int64)(nil), "hash", fixedTime, fixedTime))

	u, err := repo.GetUserByEmail(context.Background(), "ANNA@example.com")
	require.NoError(t, err)
	assert.Equal(t, ownerID, u.ID)
	assert.Equal(t, "Berlin", u.Location)
	assert.Nil(t, u.TelegramID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(q("FROM users WHERE id = $1")).
		WithArgs(ownerID).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetUserByID(context.Background(), ownerID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumePasswordReset(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		mock := newMock(t)
		repo := NewUserRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery(q("FROM password_resets")).WithArgs("tokenhash").
			WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(ownerID))
		mock.ExpectExec(q("UPDATE password_resets SET used_at")).WithArgs("tokenhash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(q("UPDATE users SET password_hash")).WithArgs(ownerID, "newhash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		require.NoError(t, repo.ConsumePasswordReset(context.Background(), "tokenhash", "newhash"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown or expired token", func(t *testing.T) {
		mock := newMock(t)
		repo := NewUserRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery(q("FROM password_resets")).WithArgs("tokenhash").WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		err := repo.ConsumePasswordReset(context.Background(), "tokenhash", "newhash")
		assert.ErrorIs(t, err, models.ErrInvalidToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// --- items ---

func TestBuildItemWhere(t *testing.T) {
	where, args := buildItemWhere(models.ItemFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildItemWhere(models.ItemFilter{
		Query:          "  лампа ",
		Category:       "home",
		SwapStatus:     "pending",
		ExcludeOwnerID: &ownerID,
	})
	assert.Equal(t,
		" WHERE (i.name ILIKE $1 OR i.description ILIKE $1 OR i.keywords ILIKE $1)"+
			" AND i.category = $2 AND i.swap_status = $3 AND i.user_id <> $4",
		where)
	assert.Equal(t, []any{"%лампа%", "home", "pending", ownerID}, args)
}

func TestCreateItem(t *testing.T) {
	mock := newMock(t)
	repo := NewItemRepository(mock)

	item := &models.Item{
		UserID:    ownerID,
		Name:      "Лампа",
		Category:  models.CategoryHome,
		Condition: models.ConditionGood,
		Images: []models.ItemImage{
			{URL: "https://cdn/a.jpg", PublicID: "items/a"},
			{URL: "https://cdn/b.jpg", PublicID: "items/b"},
		},
	}

	mock.ExpectBegin()
	// ID вещи и изображений генерируются репозиторием
	mock.ExpectQuery(q("INSERT INTO items")).
		WithArgs(pgxmock.AnyArg(), ownerID, "Лампа", "", "", "home", "good", "pending").
		WillReturnRows(pgxmock.NewRows([]string{"listed_at", "updated_at"}).AddRow(fixedTime, fixedTime))
	mock.ExpectExec(q("INSERT INTO item_images")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "https://cdn/a.jpg", "", "items/a", true, 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(q("INSERT INTO item_images")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "https://cdn/b.jpg", "", "items/b", false, 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateItem(context.Background(), item))
	assert.NotEqual(t, uuid.Nil, item.ID)
	assert.Equal(t, models.ItemStatusPending, item.SwapStatus)
	assert.Equal(t, fixedTime, item.ListedAt)
	assert.True(t, item.Images[0].IsMain)
	assert.False(t, item.Images[1].IsMain)
	assert.Equal(t, 1, item.Images[1].Position)
	assert.Equal(t, item.ID, item.Images[1].ItemID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetItemsByIDs_PreservesOrder(t *testing.T) {
	mock := newMock(t)
	repo := NewItemRepository(mock)
	missing := uuid.New()

	mock.ExpectQuery(q("FROM items i WHERE i.id = ANY($1::uuid[])")).
		WithArgs([]string{offeredID.String(), missing.String(), targetID.String()}).
		WillReturnRows(itemRows().
			AddRow(targetID, ownerID, "Лампа", "", "", "home", "good", "pending", fixedTime, fixedTime).
			AddRow(offeredID, requesterID, "Книга", "", "", "books", "used", "pending", fixedTime, fixedTime))
	mock.ExpectQuery(q("FROM item_images")).
		WithArgs([]string{targetID.String(), offeredID.String()}).
		WillReturnRows(imageRows().
			AddRow(uuid.New(), offeredID, "https://cdn/b.jpg", "", "items/b", true, 0, []byte(`{"width":10}`), fixedTime))

	items, err := repo.GetItemsByIDs(context.Background(), []uuid.UUID{offeredID, missing, targetID})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, offeredID, items[0].ID)
	assert.Equal(t, targetID, items[1].ID)
	assert.Equal(t, models.CategoryBooks, items[0].Category)
	require.Len(t, items[0].Images, 1)
	assert.Equal(t, 10, items[0].Images[0].Metadata.Width)
	assert.Empty(t, items[1].Images)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListItems_Paginated(t *testing.T) {
	mock := newMock(t)
	repo := NewItemRepository(mock)

	mock.ExpectQuery(q("SELECT COUNT(*) FROM items i WHERE i.category = $1")).
		WithArgs("books").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(q("ORDER BY i.listed_at DESC LIMIT $2 OFFSET $3")).
		WithArgs("books", 2, 4).
		WillReturnRows(itemRows().
			AddRow(offeredID, requesterID, "Книга", "", "", "books", "used", "pending", fixedTime, fixedTime))
	mock.ExpectQuery(q("FROM item_images")).
		WithArgs([]string{offeredID.String()}).
		WillReturnRows(imageRows())

	items, total, err := repo.ListItems(context.Background(), models.ItemFilter{Category: "books", Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Len(t, items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteItem(t *testing.T) {
	t.Run("owner deletes and gets storage keys", func(t *testing.T) {
		mock := newMock(t)
		repo := NewItemRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT user_id FROM items WHERE id = $1 FOR UPDATE")).
			WithArgs(targetID).
			WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(ownerID))
		mock.ExpectQuery(q("SELECT public_id FROM item_images")).
			WithArgs(targetID).
			WillReturnRows(pgxmock.NewRows([]string{"public_id"}).AddRow("items/a").AddRow("items/b"))
		mock.ExpectExec(q("DELETE FROM items")).
			WithArgs(targetID).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		keys, err := repo.DeleteItem(context.Background(), targetID, ownerID)
		require.NoError(t, err)
		assert.Equal(t, []string{"items/a", "items/b"}, keys)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("someone else's item", func(t *testing.T) {
		mock := newMock(t)
		repo := NewItemRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery(q("FOR UPDATE")).
			WithArgs(targetID).
			WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(ownerID))
		mock.ExpectRollback()

		_, err := repo.DeleteItem(context.Background(), targetID, requesterID)
		assert.ErrorIs(t, err, models.ErrForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// --- swaps ---

func expectLocks(mock pgxmock.PgxPoolIface, targetOwner uuid.UUID, targetStatus string, offeredOwner uuid.UUID, offeredStatus string) {
	mock.ExpectQuery(q("SELECT user_id, swap_status FROM items WHERE id = $1 FOR UPDATE")).
		WithArgs(targetID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "swap_status"}).AddRow(targetOwner, targetStatus))
	mock.ExpectQuery(q("SELECT user_id, swap_status FROM items WHERE id = $1 FOR UPDATE")).
		WithArgs(offeredID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "swap_status"}).AddRow(offeredOwner, offeredStatus))
}

func newSwap() *models.SwapRequest {
	return &models.SwapRequest{ItemID: targetID, SwapWithItemID: offeredID, RequesterID: requesterID, Message: "привет"}
}

func TestCreateSwapRequest(t *testing.T) {
	mock := newMock(t)
	repo := NewSwapRepository(mock)

	mock.ExpectBegin()
	expectLocks(mock, ownerID, models.ItemStatusPending, requesterID, models.ItemStatusPending)
	mock.ExpectQuery(q("SELECT EXISTS")).
		WithArgs(targetID, offeredID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(q("INSERT INTO swap_requests")).
		WithArgs(pgxmock.AnyArg(), targetID, offeredID, requesterID, ownerID, "привет").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(fixedTime, fixedTime))
	mock.ExpectCommit()

	req := newSwap()
	require.NoError(t, repo.CreateSwapRequest(context.Background(), req))
	assert.Equal(t, ownerID, req.OwnerID)
	assert.Equal(t, models.SwapPending, req.Status)
	assert.NotEqual(t, uuid.Nil, req.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSwapRequest_Rejections(t *testing.T) {
	tests := []struct {
		name          string
		targetOwner   uuid.UUID
		targetStatus  string
		offeredOwner  uuid.UUID
		offeredStatus string
		duplicate     bool
		wantErr       error
	}{
		{"offered item is not mine", ownerID, "pending", ownerID, "pending", false, models.ErrForbidden},
		{"target item is mine", requesterID, "pending", requesterID, "pending", false, models.ErrSelfSwap},
		{"target already swapped", ownerID, "swapped", requesterID, "pending", false, models.ErrInvalidState},
		{"offered already swapped", ownerID, "pending", requesterID, "swapped", false, models.ErrInvalidState},
		{"duplicate pending request", ownerID, "pending", requesterID, "pending", true, models.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			repo := NewSwapRepository(mock)

			mock.ExpectBegin()
			expectLocks(mock, tt.targetOwner, tt.targetStatus, tt.offeredOwner, tt.offeredStatus)
			if tt.duplicate {
				mock.ExpectQuery(q("SELECT EXISTS")).
					WithArgs(targetID, offeredID).
					WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
			}
			mock.ExpectRollback()

			err := repo.CreateSwapRequest(context.Background(), newSwap())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreateSwapRequest_SameItem(t *testing.T) {
	mock := newMock(t)
	repo := NewSwapRepository(mock)

	req := newSwap()
	req.SwapWithItemID = req.ItemID
	assert.ErrorIs(t, repo.CreateSwapRequest(context.Background(), req), models.ErrSelfSwap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptSwapRequest(t *testing.T) {
	mock := newMock(t)
	repo := NewSwapRepository(mock)
	competing := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM swap_requests WHERE id = $1 FOR UPDATE")).
		WithArgs(requestID).
		WillReturnRows(swapRows("pending"))
	mock.ExpectQuery(q("SET status = $2")).
		WithArgs(requestID, "swapped").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(fixedTime.Add(time.Minute)))
	mock.ExpectExec(q("UPDATE items SET swap_status = $1")).
		WithArgs("swapped", targetID, offeredID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectQuery(q("SET status = 'rejected'")).
		WithArgs(requestID, targetID, offeredID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "item_id", "swap_with_item_id", "requester_id", "owner_id",
			"status", "message", "created_at", "updated_at"}).
			AddRow(competing, targetID, uuid.New(), uuid.New(), ownerID, "rejected", "", fixedTime, fixedTime))
	mock.ExpectCommit()

	req, rejected, err := repo.AcceptSwapRequest(context.Background(), requestID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapSwapped, req.Status)
	assert.Equal(t, fixedTime.Add(time.Minute), req.UpdatedAt)
	require.Len(t, rejected, 1)
	assert.Equal(t, competing, rejected[0].ID)
	assert.Equal(t, models.SwapRejected, rejected[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectSwapRequest(t *testing.T) {
	mock := newMock(t)
	repo := NewSwapRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WithArgs(requestID).WillReturnRows(swapRows("pending"))
	mock.ExpectQuery(q("SET status = $2")).
		WithArgs(requestID, "rejected").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(fixedTime))
	mock.ExpectExec(q("UPDATE items SET swap_status = $1")).
		WithArgs("rejected", targetID, offeredID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	req, err := repo.RejectSwapRequest(context.Background(), requestID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapRejected, req.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSwapTransition_Guards(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		call    func(*SwapRepository) error
		wantErr error
	}{
		{
			name:   "requester cannot accept",
			status: "pending",
			call: func(r *SwapRepository) error {
				_, _, err := r.AcceptSwapRequest(context.Background(), requestID, requesterID)
				return err
			},
			wantErr: models.ErrForbidden,
		},
		{
			name:   "owner cannot cancel",
			status: "pending",
			call: func(r *SwapRepository) error {
				_, err := r.CancelSwapRequest(context.Background(), requestID, ownerID)
				return err
			},
			wantErr: models.ErrForbidden,
		},
		{
			name:   "already swapped cannot be rejected",
			status: "swapped",
			call: func(r *SwapRepository) error {
				_, err := r.RejectSwapRequest(context.Background(), requestID, ownerID)
				return err
			},
			wantErr: models.ErrInvalidState,
		},
		{
			name:   "rejected cannot be accepted",
			status: "rejected",
			call: func(r *SwapRepository) error {
				_, _, err := r.AcceptSwapRequest(context.Background(), requestID, ownerID)
				return err
			},
			wantErr: models.ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			repo := NewSwapRepository(mock)

			mock.ExpectBegin()
			mock.ExpectQuery(q("FOR UPDATE")).WithArgs(requestID).WillReturnRows(swapRows(tt.status))
			mock.ExpectRollback()

			assert.ErrorIs(t, tt.call(repo), tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCancelSwapRequest_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewSwapRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WithArgs(requestID).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.CancelSwapRequest(context.Background(), requestID, requesterID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSwapRequests_Incoming(t *testing.T) {
	mock := newMock(t)
	repo := NewSwapRepository(mock)

	mock.ExpectQuery(q("WHERE owner_id = $1 AND status = $2")).
		WithArgs(ownerID, "pending").
		WillReturnRows(swapRows("pending"))

	list, err := repo.ListSwapRequests(context.Background(), ownerID, models.SwapIncoming, "pending")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, requestID, list[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- favorites ---

func TestAddFavorite(t *testing.T) {
	t.Run("added", func(t *testing.T) {
		mock := newMock(t)
		repo := NewFavoriteRepository(mock, NewItemRepository(mock))

		mock.ExpectQuery(q("INSERT INTO favorites")).
			WithArgs(pgxmock.AnyArg(), requesterID, targetID).
			WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(fixedTime))

		fav, err := repo.AddFavorite(context.Background(), requesterID, targetID)
		require.NoError(t, err)
		assert.Equal(t, targetID, fav.ItemID)
		assert.Equal(t, fixedTime, fav.CreatedAt)
	})

	t.Run("already in favorites", func(t *testing.T) {
		mock := newMock(t)
		repo := NewFavoriteRepository(mock, NewItemRepository(mock))

		mock.ExpectQuery(q("INSERT INTO favorites")).
			WithArgs(pgxmock.AnyArg(), requesterID, targetID).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.AddFavorite(context.Background(), requesterID, targetID)
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("unknown item", func(t *testing.T) {
		mock := newMock(t)
		repo := NewFavoriteRepository(mock, NewItemRepository(mock))

		mock.ExpectQuery(q("INSERT INTO favorites")).
			WithArgs(pgxmock.AnyArg(), requesterID, targetID).
			WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})

		_, err := repo.AddFavorite(context.Background(), requesterID, targetID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestRemoveFavorite_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewFavoriteRepository(mock, NewItemRepository(mock))

	mock.ExpectExec(q("DELETE FROM favorites")).
		WithArgs(requesterID, targetID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.ErrorIs(t, repo.RemoveFavorite(context.Background(), requesterID, targetID), models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
