package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rajivgeraev/reswap-api/internal/db"
	"github.com/rajivgeraev/reswap-api/internal/models"
)

// pgUniqueViolation код ошибки PostgreSQL при нарушении уникальности
const pgUniqueViolation = "23505"

// pgForeignKeyViolation код ошибки PostgreSQL при нарушении внешнего ключа
const pgForeignKeyViolation = "23503"

const userColumns = `id, COALESCE(email, ''), username, phone, avatar_url, location,
	telegram_id, password_hash, created_at, updated_at`

// UserRepository хранит пользователей и токены сброса пароля
type UserRepository struct {
	db db.Querier
}

// NewUserRepository создает новый экземпляр UserRepository
func NewUserRepository(q db.Querier) *UserRepository {
	return &UserRepository{db: q}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.Phone, &u.AvatarURL, &u.Location,
		&u.TelegramID, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// CreateUser создает пользователя с email и паролем
func (r *UserRepository) CreateUser(ctx context.Context, u *models.User) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (email, username, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, strings.ToLower(u.Email), u.Username, u.PasswordHash).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return models.ErrEmailTaken
		}
		return fmt.Errorf("ошибка при создании пользователя: %w", err)
	}
	u.Email = strings.ToLower(u.Email)
	return nil
}

// GetUserByID получает пользователя по ID
func (r *UserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("ошибка при получении пользователя: %w", err)
	}
	return u, err
}

// GetUserByEmail получает пользователя по email без учета регистра
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, strings.ToLower(email)))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("ошибка при получении пользователя: %w", err)
	}
	return u, err
}

// UpsertTelegramUser создает пользователя при первом входе через Telegram
// или обновляет имя существующего. Аватар, заданный вручную, не затирается.
func (r *UserRepository) UpsertTelegramUser(ctx context.Context, p models.TelegramProfile) (*models.User, error) {
	username := p.Username
	if username == "" {
		username = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}

	u, err := scanUser(r.db.QueryRow(ctx, `
		INSERT INTO users (username, avatar_url, telegram_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id) DO UPDATE
		SET username = EXCLUDED.username,
		    avatar_url = CASE WHEN users.avatar_url = '' THEN EXCLUDED.avatar_url ELSE users.avatar_url END,
		    updated_at = NOW()
		RETURNING `+userColumns, username, p.PhotoURL, p.TelegramID))
	if err != nil {
		return nil, fmt.Errorf("ошибка при сохранении Telegram пользователя: %w", err)
	}
	return u, nil
}

// UpdateProfile меняет только переданные поля профиля
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, upd models.ProfileUpdate) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `
		UPDATE users
		SET phone = COALESCE($2, phone),
		    location = COALESCE($3, location),
		    avatar_url = COALESCE($4, avatar_url),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id, upd.Phone, upd.Location, upd.AvatarURL))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("ошибка при обновлении профиля: %w", err)
	}
	return u, err
}

// LoadRelations заполняет производные списки пользователя:
// ID его вещей и исходящие запросы на обмен
func (r *UserRepository) LoadRelations(ctx context.Context, u *models.User) error {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM items WHERE user_id = $1 ORDER BY listed_at DESC
	`, u.ID)
	if err != nil {
		return fmt.Errorf("ошибка при получении вещей пользователя: %w", err)
	}
	u.ListedItems = []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("ошибка при чтении вещей пользователя: %w", err)
		}
		u.ListedItems = append(u.ListedItems, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("ошибка при чтении вещей пользователя: %w", err)
	}

	rows, err = r.db.Query(ctx, `
		SELECT id, item_id, swap_with_item_id, status
		FROM swap_requests
		WHERE requester_id = $1
		ORDER BY created_at DESC
	`, u.ID)
	if err != nil {
		return fmt.Errorf("ошибка при получении запросов пользователя: %w", err)
	}
	defer rows.Close()

	u.SwapRequests = []models.UserSwapRef{}
	for rows.Next() {
		var ref models.UserSwapRef
		var status string
		if err := rows.Scan(&ref.RequestID, &ref.ItemID, &ref.SwapWithItemID, &status); err != nil {
			return fmt.Errorf("ошибка при чтении запросов пользователя: %w", err)
		}
		ref.Status = models.SwapStatus(status)
		u.SwapRequests = append(u.SwapRequests, ref)
	}
	return rows.Err()
}

// GetSummaries возвращает публичные профили пользователей по списку ID
func (r *UserRepository) GetSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.UserSummary, error) {
	result := make(map[uuid.UUID]*models.UserSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, username, COALESCE(email, ''), phone, avatar_url, location
		FROM users WHERE id = ANY($1::uuid[])
	`, uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении пользователей: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.UserSummary
		if err := rows.Scan(&s.ID, &s.Username, &s.Email, &s.Phone, &s.AvatarURL, &s.Location); err != nil {
			return nil, fmt.Errorf("ошибка при чтении пользователя: %w", err)
		}
		result[s.ID] = &s
	}
	return result, rows.Err()
}

// CreatePasswordReset сохраняет хеш токена сброса пароля
func (r *UserRepository) CreatePasswordReset(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO password_resets (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("ошибка при сохранении токена сброса: %w", err)
	}
	return nil
}

// ConsumePasswordReset гасит токен и меняет пароль в одной транзакции.
// Просроченный, использованный или неизвестный токен дает ErrInvalidToken.
func (r *UserRepository) ConsumePasswordReset(ctx context.Context, tokenHash, passwordHash string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT user_id FROM password_resets
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > NOW()
		FOR UPDATE
	`, tokenHash).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrInvalidToken
		}
		return fmt.Errorf("ошибка при проверке токена сброса: %w", err)
	}

	if _, err = tx.Exec(ctx, `UPDATE password_resets SET used_at = NOW() WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("ошибка при погашении токена: %w", err)
	}

	if _, err = tx.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1
	`, userID, passwordHash); err != nil {
		return fmt.Errorf("ошибка при смене пароля: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
