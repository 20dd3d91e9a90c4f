package cloudinary

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/reswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для загрузки фотографий
func (s *CloudinaryService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/upload")

	// Защищенные маршруты
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Get("/params", s.GenerateUploadParams)
}
