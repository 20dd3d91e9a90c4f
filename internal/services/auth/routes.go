package auth

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/reswap-api/internal/middleware"
)

// SetupRoutes регистрирует маршруты в Fiber
func (s *AuthService) SetupRoutes(app *fiber.App) {
	authAPI := app.Group("/api/auth")
	authAPI.Post("/register", s.Register)
	authAPI.Post("/login", s.Login)
	authAPI.Post("/forgot-password", s.ForgotPassword)
	authAPI.Post("/reset-password", s.ResetPassword)
	authAPI.Post("/telegram", s.TelegramAuthHandler)

	// Защищенные маршруты
	profile := app.Group("/api/profile")
	profile.Use(middleware.AuthMiddleware(s.jwtService))
	profile.Get("/", s.GetProfile)
	profile.Put("/", s.UpdateProfile)

	users := app.Group("/api/users")
	users.Use(middleware.AuthMiddleware(s.jwtService))
	users.Get("/:id", s.GetUser)
}
