package swap

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rajivgeraev/reswap-api/internal/config"
	"github.com/rajivgeraev/reswap-api/internal/db"
	"github.com/rajivgeraev/reswap-api/internal/middleware"
	"github.com/rajivgeraev/reswap-api/internal/models"
	"github.com/rajivgeraev/reswap-api/internal/utils"
)

// SwapStore - хранилище запросов на обмен
type SwapStore interface {
	CreateSwapRequest(ctx context.Context, req *models.SwapRequest) error
	GetSwapRequest(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error)
	ListSwapRequests(ctx context.Context, userID uuid.UUID, dir models.SwapDirection, status string) ([]models.SwapRequest, error)
	AcceptSwapRequest(ctx context.Context, id, ownerID uuid.UUID) (*models.SwapRequest, []models.SwapRequest, error)
	RejectSwapRequest(ctx context.Context, id, ownerID uuid.UUID) (*models.SwapRequest, error)
	CancelSwapRequest(ctx context.Context, id, requesterID uuid.UUID) (*models.SwapRequest, error)
}

// ItemLookup загружает вещи для ответа
type ItemLookup interface {
	GetItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Item, error)
}

// UserLookup загружает публичные профили для ответа
type UserLookup interface {
	GetSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.UserSummary, error)
}

// Notifier доставляет уведомления пользователю
type Notifier interface {
	Notify(userID uuid.UUID, event models.Event)
}

// SwapService представляет сервис для работы с обменами
type SwapService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	swaps      SwapStore
	items      ItemLookup
	users      UserLookup
	notifier   Notifier
	log        *zap.Logger
}

// NewSwapService создает новый экземпляр SwapService
func NewSwapService(cfg *config.Config, jwtService *utils.JWTService, swaps SwapStore,
	items ItemLookup, users UserLookup, notifier Notifier, log *zap.Logger) *SwapService {
	return &SwapService{
		cfg:        cfg,
		jwtService: jwtService,
		swaps:      swaps,
		items:      items,
		users:      users,
		notifier:   notifier,
		log:        log,
	}
}

// CreateSwap создает запрос на обмен своей вещи на чужую
func (s *SwapService) CreateSwap(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	var requestData struct {
		ItemID         string `json:"item_id"`
		SwapWithItemID string `json:"swap_with_item_id"`
		Message        string `json:"message"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		return utils.BadRequest(c, "Неверный формат данных")
	}

	if requestData.ItemID == "" || requestData.SwapWithItemID == "" {
		return utils.BadRequest(c, "Необходимо указать обе вещи для обмена")
	}
	itemID, err := uuid.Parse(requestData.ItemID)
	if err != nil {
		return utils.BadRequest(c, "Неверный формат ID вещи")
	}
	swapWithID, err := uuid.Parse(requestData.SwapWithItemID)
	if err != nil {
		return utils.BadRequest(c, "Неверный формат ID предлагаемой вещи")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	req := &models.SwapRequest{
		ItemID:         itemID,
		SwapWithItemID: swapWithID,
		RequesterID:    userID,
		Message:        strings.TrimSpace(requestData.Message),
	}
	if err := s.swaps.CreateSwapRequest(ctx, req); err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Такой запрос на обмен уже существует"})
		case errors.Is(err, models.ErrForbidden):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Вы не можете предложить чужую вещь для обмена"})
		case errors.Is(err, models.ErrInvalidState):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Одна из вещей уже обменяна"})
		}
		return utils.SendError(c, s.log, err, "Ошибка сохранения запроса на обмен")
	}

	s.notifier.Notify(req.OwnerID, models.NewEvent(models.EventSwapRequested, req))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":    true,
		"request_id": req.ID,
		"request":    req,
		"message":    "Запрос на обмен отправлен",
	})
}

// GetMySwaps возвращает входящие и исходящие запросы на обмен
func (s *SwapService) GetMySwaps(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	dir := models.ParseSwapDirection(c.Query("type", "all"))

	var status string
	if raw := c.Query("status", "all"); raw != "all" {
		if raw == string(models.SwapPending) {
			status = raw
		} else if parsed, ok := models.ParseSwapTransition(raw); ok {
			status = string(parsed)
		} else {
			return utils.BadRequest(c, "Неизвестный статус")
		}
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	requests, err := s.swaps.ListSwapRequests(ctx, userID, dir, status)
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка получения запросов на обмен")
	}
	if err := s.resolve(ctx, requests); err != nil {
		return utils.SendError(c, s.log, err, "Ошибка получения запросов на обмен")
	}

	return c.JSON(fiber.Map{
		"requests": requests,
		"total":    len(requests),
	})
}

// GetSwap возвращает запрос на обмен. Видят его только участники.
func (s *SwapService) GetSwap(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Неверный формат ID запроса")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	req, err := s.swaps.GetSwapRequest(ctx, id)
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка получения запроса на обмен")
	}
	if req.OwnerID != userID && req.RequesterID != userID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Запрос на обмен не найден"})
	}

	list := []models.SwapRequest{*req}
	if err := s.resolve(ctx, list); err != nil {
		return utils.SendError(c, s.log, err, "Ошибка получения запроса на обмен")
	}
	return c.JSON(list[0])
}

// UpdateSwapStatus принимает, отклоняет или отменяет запрос.
// Принять и отклонить может владелец вещи, отменить - автор запроса.
func (s *SwapService) UpdateSwapStatus(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Неверный формат ID запроса")
	}

	var requestData struct {
		Status string `json:"status"` // swapped (accepted), rejected, canceled
	}
	if err := c.Bind().Body(&requestData); err != nil {
		return utils.BadRequest(c, "Неверный формат данных")
	}
	target, ok := models.ParseSwapTransition(requestData.Status)
	if !ok {
		return utils.BadRequest(c, "Недопустимый статус запроса на обмен")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var req *models.SwapRequest
	switch target {
	case models.SwapSwapped:
		var rejected []models.SwapRequest
		req, rejected, err = s.swaps.AcceptSwapRequest(ctx, id, userID)
		if err == nil {
			s.notifier.Notify(req.RequesterID, models.NewEvent(models.EventSwapAccepted, req))
			for i := range rejected {
				s.notifier.Notify(rejected[i].RequesterID, models.NewEvent(models.EventSwapRejected, &rejected[i]))
			}
		}
	case models.SwapRejected:
		req, err = s.swaps.RejectSwapRequest(ctx, id, userID)
		if err == nil {
			s.notifier.Notify(req.RequesterID, models.NewEvent(models.EventSwapRejected, req))
		}
	case models.SwapCanceled:
		req, err = s.swaps.CancelSwapRequest(ctx, id, userID)
		if err == nil {
			s.notifier.Notify(req.OwnerID, models.NewEvent(models.EventSwapCanceled, req))
		}
	}

	if err != nil {
		switch {
		case errors.Is(err, models.ErrForbidden) && target == models.SwapCanceled:
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Только автор запроса может его отменить"})
		case errors.Is(err, models.ErrForbidden):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Только владелец вещи может принять или отклонить запрос"})
		case errors.Is(err, models.ErrInvalidState):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Нельзя изменить статус запроса, который уже не находится в ожидании",
			})
		}
		return utils.SendError(c, s.log, err, "Ошибка обновления запроса на обмен")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"request": req,
		"message": "Статус запроса обновлен",
	})
}

// resolve подставляет в запросы обе вещи и обоих пользователей
func (s *SwapService) resolve(ctx context.Context, requests []models.SwapRequest) error {
	if len(requests) == 0 {
		return nil
	}

	var itemIDs, userIDs []uuid.UUID
	for _, r := range requests {
		itemIDs = append(itemIDs, r.ItemID, r.SwapWithItemID)
		userIDs = append(userIDs, r.RequesterID, r.OwnerID)
	}

	items, err := s.items.GetItemsByIDs(ctx, itemIDs)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]*models.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	users, err := s.users.GetSummaries(ctx, userIDs)
	if err != nil {
		return err
	}

	for i := range requests {
		r := &requests[i]
		r.Item = byID[r.ItemID]
		r.SwapWithItem = byID[r.SwapWithItemID]
		r.Requester = users[r.RequesterID]
		r.Owner = users[r.OwnerID]
	}
	return nil
}
