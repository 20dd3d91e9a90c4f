package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rajivgeraev/reswap-api/internal/models"
)

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrNotFound, fiber.StatusNotFound},
		{fmt.Errorf("wrapped: %w", models.ErrForbidden), fiber.StatusForbidden},
		{models.ErrConflict, fiber.StatusConflict},
		{models.ErrInvalidState, fiber.StatusConflict},
		{models.ErrEmailTaken, fiber.StatusConflict},
		{models.ErrSelfSwap, fiber.StatusBadRequest},
		{models.ErrInvalidToken, fiber.StatusBadRequest},
		{models.ErrInvalidCredentials, fiber.StatusUnauthorized},
		{errors.New("db is down"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFromError(tt.err), tt.err.Error())
	}
}

func TestSendError(t *testing.T) {
	app := fiber.New()
	app.Get("/conflict", func(c fiber.Ctx) error {
		return SendError(c, zap.NewNop(), fmt.Errorf("create: %w", models.ErrConflict), "Ошибка")
	})
	app.Get("/internal", func(c fiber.Ctx) error {
		return SendError(c, zap.NewNop(), errors.New("connection reset"), "Ошибка базы данных")
	})

	check := func(path string, wantStatus int, wantMsg string) {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, wantStatus, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, wantMsg, body["error"])
	}

	check("/conflict", fiber.StatusConflict, "Запись уже существует")
	// Причина внутренней ошибки клиенту не отдается
	check("/internal", fiber.StatusInternalServerError, "Ошибка базы данных")
}
