package item

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/reswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API вещей
func (s *ItemService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/items")

	// Токен на публичных маршрутах необязателен: нужен для exclude_mine и is_owner
	api.Use(middleware.OptionalAuth(s.jwtService))

	// В Fiber v3 middleware маршрута передаются после обработчика
	auth := middleware.AuthMiddleware(s.jwtService)

	api.Get("/", s.ListItems)
	api.Get("/batch", s.GetItemsBatch)

	// Защищенные маршруты
	api.Post("/", s.CreateItem, auth)
	api.Get("/my", s.GetMyItems, auth)

	api.Get("/:id", s.GetItem)
	api.Put("/:id", s.UpdateItem, auth)
	api.Delete("/:id", s.DeleteItem, auth)
}
