package auth

import (
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/reswap-api/internal/db"
	"github.com/rajivgeraev/reswap-api/internal/middleware"
	"github.com/rajivgeraev/reswap-api/internal/models"
	"github.com/rajivgeraev/reswap-api/internal/storage"
	"github.com/rajivgeraev/reswap-api/internal/utils"
)

// GetProfile возвращает профиль текущего пользователя
// вместе с его вещами и исходящими запросами на обмен
func (s *AuthService) GetProfile(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка получения профиля")
	}
	if err := s.users.LoadRelations(ctx, user); err != nil {
		return utils.SendError(c, s.log, err, "Ошибка получения профиля")
	}

	return c.JSON(user)
}

// UpdateProfile меняет телефон, местоположение и аватар.
// Принимает multipart (с файлом avatar) или JSON.
func (s *AuthService) UpdateProfile(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	var upd models.ProfileUpdate
	var avatar *multipart.FileHeader

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return utils.BadRequest(c, "Неверный формат данных")
		}
		upd.Phone = formValue(form, "phone")
		upd.Location = formValue(form, "location")
		if files := form.File["avatar"]; len(files) > 0 {
			avatar = files[0]
		}
	} else {
		var body struct {
			Phone     *string `json:"phone"`
			Location  *string `json:"location"`
			AvatarURL *string `json:"avatar_url"`
		}
		if err := c.Bind().Body(&body); err != nil {
			return utils.BadRequest(c, "Неверный формат данных")
		}
		upd = models.ProfileUpdate{Phone: body.Phone, Location: body.Location, AvatarURL: body.AvatarURL}
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if avatar != nil {
		if avatar.Size > int64(s.cfg.MaxUploadBytes) {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "Файл слишком большой"})
		}
		f, err := avatar.Open()
		if err != nil {
			return utils.BadRequest(c, "Не удалось прочитать файл")
		}
		defer f.Close()

		obj, _, err := storage.StoreImage(ctx, s.storage, "avatars", f)
		if err != nil {
			return utils.BadRequest(c, "Не удалось сохранить изображение")
		}
		upd.AvatarURL = &obj.URL
	}

	user, err := s.users.UpdateProfile(ctx, userID, upd)
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка обновления профиля")
	}

	return c.JSON(user)
}

// GetUser возвращает публичный профиль пользователя
func (s *AuthService) GetUser(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Неверный формат ID пользователя")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка получения пользователя")
	}
	return c.JSON(user.Summary())
}

func formValue(form *multipart.Form, key string) *string {
	if v, ok := form.Value[key]; ok && len(v) > 0 {
		s := strings.TrimSpace(v[0])
		return &s
	}
	return nil
}
