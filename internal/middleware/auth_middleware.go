package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/reswap-api/internal/utils"
)

// localsUserID ключ, под которым middleware кладет ID пользователя
const localsUserID = "userID"

// AuthMiddleware создаёт middleware для проверки JWT
func AuthMiddleware(jwtService *utils.JWTService) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Отсутствует заголовок авторизации",
			})
		}

		userID, ok := parseBearer(jwtService, authHeader)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Недействительный или просроченный токен",
			})
		}

		// Добавляем userID в контекст
		c.Locals(localsUserID, userID.String())

		return c.Next()
	}
}

// OptionalAuth кладет userID в контекст, если передан валидный токен.
// Без токена запрос проходит анонимно.
func OptionalAuth(jwtService *utils.JWTService) fiber.Handler {
	return func(c fiber.Ctx) error {
		if userID, ok := parseBearer(jwtService, c.Get("Authorization")); ok {
			c.Locals(localsUserID, userID.String())
		}
		return c.Next()
	}
}

// UserID возвращает ID авторизованного пользователя
func UserID(c fiber.Ctx) (uuid.UUID, bool) {
	raw, ok := c.Locals(localsUserID).(string)
	if !ok || raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func parseBearer(jwtService *utils.JWTService, header string) (uuid.UUID, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return uuid.Nil, false
	}
	userID, err := jwtService.ExtractUserID(parts[1])
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}
