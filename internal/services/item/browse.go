package item

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rajivgeraev/reswap-api/internal/db"
	"github.com/rajivgeraev/reswap-api/internal/middleware"
	"github.com/rajivgeraev/reswap-api/internal/models"
	"github.com/rajivgeraev/reswap-api/internal/utils"
)

const (
	defaultLimit = 20
	maxLimit     = 100
	maxBatchIDs  = 100
)

// ListItems ищет вещи: q, category, condition, status, exclude_mine, limit, offset
func (s *ItemService) ListItems(c fiber.Ctx) error {
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

	filter := models.ItemFilter{
		Query:  c.Query("q"),
		Limit:  limit,
		Offset: offset,
	}

	if category := c.Query("category"); category != "" {
		if !models.IsValidCategory(category) {
			return utils.BadRequest(c, "Неизвестная категория")
		}
		filter.Category = category
	}
	if condition := c.Query("condition"); condition != "" {
		if !models.IsValidCondition(condition) {
			return utils.BadRequest(c, "Неизвестное состояние")
		}
		filter.Condition = condition
	}
	if status := c.Query("status"); status != "" {
		switch status {
		case models.ItemStatusPending, models.ItemStatusSwapped, models.ItemStatusRejected:
			filter.SwapStatus = status
		default:
			return utils.BadRequest(c, "Неизвестный статус")
		}
	}
	if c.Query("exclude_mine") == "true" {
		userID, ok := middleware.UserID(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
		}
		filter.ExcludeOwnerID = &userID
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	items, total, err := s.items.ListItems(ctx, filter)
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка получения вещей")
	}

	return c.JSON(fiber.Map{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetItemsBatch возвращает вещи по списку ID (например, избранные на устройстве)
func (s *ItemService) GetItemsBatch(c fiber.Ctx) error {
	raw := strings.TrimSpace(c.Query("ids"))
	if raw == "" {
		return c.JSON(fiber.Map{"items": []models.Item{}})
	}

	parts := strings.Split(raw, ",")
	if len(parts) > maxBatchIDs {
		return utils.BadRequest(c, "Слишком много ID")
	}

	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(strings.TrimSpace(p))
		if err != nil {
			return utils.BadRequest(c, "Неверный формат ID вещи")
		}
		ids = append(ids, id)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	items, err := s.items.GetItemsByIDs(ctx, ids)
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка получения вещей")
	}
	return c.JSON(fiber.Map{"items": items})
}

// GetMyItems возвращает вещи пользователя с входящими запросами на обмен
func (s *ItemService) GetMyItems(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	items, err := s.items.ListByOwner(ctx, userID)
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка получения вещей")
	}
	return c.JSON(fiber.Map{"items": items, "total": len(items)})
}

// GetItem возвращает вещь с владельцем и запросами на обмен
func (s *ItemService) GetItem(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Неверный формат ID вещи")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	item, err := s.items.GetItem(ctx, id)
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка получения вещи")
	}

	userID, _ := middleware.UserID(c)
	return c.JSON(fiber.Map{
		"item":     item,
		"is_owner": userID != uuid.Nil && userID == item.UserID,
	})
}

// UpdateItem меняет описание вещи. Непереданные поля не меняются.
func (s *ItemService) UpdateItem(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Неверный формат ID вещи")
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Keywords    *string `json:"keywords"`
		Category    *string `json:"category"`
		Condition   *string `json:"condition"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return utils.BadRequest(c, "Неверный формат данных")
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return utils.BadRequest(c, "Название обязательно")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	item, err := s.items.GetItem(ctx, id)
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка получения вещи")
	}
	if item.UserID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Нельзя изменить чужую вещь"})
	}

	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		item.Description = strings.TrimSpace(*req.Description)
	}
	if req.Keywords != nil {
		item.Keywords = strings.TrimSpace(*req.Keywords)
	}
	if req.Category != nil {
		item.Category = models.ParseCategory(*req.Category)
	}
	if req.Condition != nil {
		item.Condition = models.ParseCondition(*req.Condition)
	}

	if err := s.items.UpdateItem(ctx, item); err != nil {
		return utils.SendError(c, s.log, err, "Ошибка обновления вещи")
	}
	return c.JSON(fiber.Map{"success": true, "item": item})
}

// DeleteItem удаляет вещь владельца и ее изображения из хранилища
func (s *ItemService) DeleteItem(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Неверный формат ID вещи")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	keys, err := s.items.DeleteItem(ctx, id, userID)
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка удаления вещи")
	}

	// Файлы удаляем после фиксации транзакции, ошибки только логируем
	for _, key := range keys {
		if err := s.storage.Delete(ctx, key); err != nil {
			s.log.Warn("Не удалось удалить изображение", zap.String("key", key), zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{"success": true, "message": "Вещь удалена"})
}
