package favorite

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rajivgeraev/reswap-api/internal/config"
	"github.com/rajivgeraev/reswap-api/internal/db"
	"github.com/rajivgeraev/reswap-api/internal/middleware"
	"github.com/rajivgeraev/reswap-api/internal/models"
	"github.com/rajivgeraev/reswap-api/internal/utils"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// FavoriteStore - хранилище избранного
type FavoriteStore interface {
	AddFavorite(ctx context.Context, userID, itemID uuid.UUID) (*models.Favorite, error)
	RemoveFavorite(ctx context.Context, userID, itemID uuid.UUID) error
	IsFavorite(ctx context.Context, userID, itemID uuid.UUID) (bool, error)
	ListFavorites(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Favorite, int, error)
}

// FavoriteService представляет сервис для работы с избранными вещами
type FavoriteService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	favorites  FavoriteStore
	log        *zap.Logger
}

// NewFavoriteService создает новый экземпляр FavoriteService
func NewFavoriteService(cfg *config.Config, jwtService *utils.JWTService, favorites FavoriteStore, log *zap.Logger) *FavoriteService {
	return &FavoriteService{
		cfg:        cfg,
		jwtService: jwtService,
		favorites:  favorites,
		log:        log,
	}
}

// AddToFavorites добавляет вещь в избранное
func (s *FavoriteService) AddToFavorites(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	var requestData struct {
		ItemID string `json:"item_id"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		return utils.BadRequest(c, "Неверный формат данных")
	}
	if requestData.ItemID == "" {
		return utils.BadRequest(c, "ID вещи не указан")
	}
	itemID, err := uuid.Parse(requestData.ItemID)
	if err != nil {
		return utils.BadRequest(c, "Неверный формат ID вещи")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	fav, err := s.favorites.AddFavorite(ctx, userID, itemID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Вещь уже добавлена в избранное"})
		case errors.Is(err, models.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Вещь не найдена"})
		}
		return utils.SendError(c, s.log, err, "Ошибка добавления в избранное")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"id":      fav.ID,
		"message": "Вещь добавлена в избранное",
	})
}

// RemoveFromFavorites удаляет вещь из избранного
func (s *FavoriteService) RemoveFromFavorites(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Неверный формат ID вещи")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.favorites.RemoveFavorite(ctx, userID, itemID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Вещь не найдена в избранном"})
		}
		return utils.SendError(c, s.log, err, "Ошибка удаления из избранного")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Вещь удалена из избранного",
	})
}

// GetFavorites возвращает избранные вещи пользователя, новые первыми
func (s *FavoriteService) GetFavorites(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, err := strconv.Atoi(c.Query("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	favorites, total, err := s.favorites.ListFavorites(ctx, userID, limit, offset)
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка получения избранного")
	}

	return c.JSON(models.FavoriteResponse{
		Favorites: favorites,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

// CheckFavorite проверяет, добавлена ли вещь в избранное
func (s *FavoriteService) CheckFavorite(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Неверный формат ID вещи")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	isFavorite, err := s.favorites.IsFavorite(ctx, userID, itemID)
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка проверки избранного")
	}

	return c.JSON(fiber.Map{"is_favorite": isFavorite})
}
