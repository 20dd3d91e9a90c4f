package utils

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/rajivgeraev/reswap-api/internal/models"
)

// StatusFromError сопоставляет доменную ошибку с HTTP-статусом
func StatusFromError(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrEmailTaken):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrSelfSwap),
		errors.Is(err, models.ErrInvalidToken):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	}
	return fiber.StatusInternalServerError
}

var errorMessages = map[error]string{
	models.ErrNotFound:           "Не найдено",
	models.ErrForbidden:          "Недостаточно прав",
	models.ErrConflict:           "Запись уже существует",
	models.ErrInvalidState:       "Недопустимое состояние",
	models.ErrSelfSwap:           "Нельзя предложить обмен самому себе",
	models.ErrInvalidCredentials: "Неверный email или пароль",
	models.ErrEmailTaken:         "Email уже зарегистрирован",
	models.ErrInvalidToken:       "Недействительный или просроченный токен",
}

// SendError отвечает {"error": ...}. Для неизвестных ошибок пишет причину
// в лог, а клиенту отдает fallback.
func SendError(c fiber.Ctx, log *zap.Logger, err error, fallback string) error {
	status := StatusFromError(err)
	if status == fiber.StatusInternalServerError {
		log.Error(fallback, zap.Error(err), zap.String("path", c.Path()))
		return c.Status(status).JSON(fiber.Map{"error": fallback})
	}

	for sentinel, msg := range errorMessages {
		if errors.Is(err, sentinel) {
			return c.Status(status).JSON(fiber.Map{"error": msg})
		}
	}
	return c.Status(status).JSON(fiber.Map{"error": fallback})
}

// BadRequest отвечает 400 с сообщением
func BadRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
