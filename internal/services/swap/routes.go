package swap

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/reswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API обменов
func (s *SwapService) SetupRoutes(app *fiber.App) {
	// Группа для API обменов
	api := app.Group("/api/swaps")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Post("/", s.CreateSwap)
	api.Get("/", s.GetMySwaps)
	api.Get("/:id", s.GetSwap)
	api.Put("/:id/status", s.UpdateSwapStatus)
}
