package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	initdata "github.com/telegram-mini-apps/init-data-golang"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rajivgeraev/reswap-api/internal/config"
	"github.com/rajivgeraev/reswap-api/internal/db"
	"github.com/rajivgeraev/reswap-api/internal/mailer"
	"github.com/rajivgeraev/reswap-api/internal/models"
	"github.com/rajivgeraev/reswap-api/internal/storage"
	"github.com/rajivgeraev/reswap-api/internal/utils"
)

const (
	minPasswordLength = 6
	// bcrypt не принимает пароли длиннее 72 байт
	maxPasswordLength = 72
)

// UserStore - хранилище пользователей, нужное сервису авторизации
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpsertTelegramUser(ctx context.Context, p models.TelegramProfile) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, upd models.ProfileUpdate) (*models.User, error)
	LoadRelations(ctx context.Context, u *models.User) error
	CreatePasswordReset(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	ConsumePasswordReset(ctx context.Context, tokenHash, passwordHash string) error
}

// AuthService – структура для обработки авторизации и профиля
type AuthService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	users      UserStore
	storage    storage.Storage
	mailer     mailer.Mailer
	log        *zap.Logger
	bcryptCost int
}

// NewAuthService – конструктор AuthService
func NewAuthService(cfg *config.Config, jwtService *utils.JWTService, users UserStore,
	store storage.Storage, mail mailer.Mailer, log *zap.Logger) *AuthService {
	return &AuthService{
		cfg:        cfg,
		jwtService: jwtService,
		users:      users,
		storage:    store,
		mailer:     mail,
		log:        log,
		bcryptCost: bcrypt.DefaultCost,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// Register регистрирует пользователя по email и паролю
func (s *AuthService) Register(c fiber.Ctx) error {
	var req credentials
	if err := c.Bind().Body(&req); err != nil {
		return utils.BadRequest(c, "Неверный формат данных")
	}

	req.Email = strings.TrimSpace(req.Email)
	local, domain, ok := strings.Cut(req.Email, "@")
	if !ok || local == "" || domain == "" {
		return utils.BadRequest(c, "Неверный email")
	}
	if msg := checkPassword(req.Password); msg != "" {
		return utils.BadRequest(c, msg)
	}

	// Без имени пользователя берем часть email до @
	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = local
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка регистрации")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user := &models.User{Email: req.Email, Username: username, PasswordHash: string(hash)}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return utils.SendError(c, s.log, err, "Ошибка регистрации")
	}

	s.log.Info("Новый пользователь", zap.String("user_id", user.ID.String()))
	return s.respondWithToken(c, fiber.StatusCreated, user)
}

// Login выполняет вход по email и паролю
func (s *AuthService) Login(c fiber.Ctx) error {
	var req credentials
	if err := c.Bind().Body(&req); err != nil {
		return utils.BadRequest(c, "Неверный формат данных")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, models.ErrNotFound) {
		return utils.SendError(c, s.log, models.ErrInvalidCredentials, "")
	}
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка входа")
	}

	// У пользователей из Telegram пароля нет
	if user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return utils.SendError(c, s.log, models.ErrInvalidCredentials, "")
	}

	return s.respondWithToken(c, fiber.StatusOK, user)
}

// ForgotPassword отправляет письмо со ссылкой сброса пароля.
// Ответ всегда одинаковый, чтобы не раскрывать наличие email.
func (s *AuthService) ForgotPassword(c fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind().Body(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return utils.BadRequest(c, "Укажите email")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.sendResetLink(ctx, strings.TrimSpace(req.Email)); err != nil {
		s.log.Error("Ошибка отправки письма сброса пароля", zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Если email зарегистрирован, на него отправлено письмо для сброса пароля",
	})
}

func (s *AuthService) sendResetLink(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	if err := s.users.CreatePasswordReset(ctx, user.ID, hashToken(token), time.Now().Add(s.cfg.ResetTokenTTL)); err != nil {
		return err
	}

	link := s.cfg.ResetURL + "?token=" + token
	body := "Для сброса пароля перейдите по ссылке:\n" + link +
		"\n\nЕсли вы не запрашивали сброс, просто проигнорируйте это письмо."
	return s.mailer.Send(ctx, user.Email, "Сброс пароля ReSwap", body)
}

// ResetPassword устанавливает новый пароль по токену из письма
func (s *AuthService) ResetPassword(c fiber.Ctx) error {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.Bind().Body(&req); err != nil || req.Token == "" {
		return utils.BadRequest(c, "Неверный формат данных")
	}
	if msg := checkPassword(req.Password); msg != "" {
		return utils.BadRequest(c, msg)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка сброса пароля")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.users.ConsumePasswordReset(ctx, hashToken(req.Token), string(hash)); err != nil {
		return utils.SendError(c, s.log, err, "Ошибка сброса пароля")
	}

	return c.JSON(fiber.Map{"success": true, "message": "Пароль изменен"})
}

// TelegramAuthHandler проверяет initData, создает пользователя и возвращает JWT
func (s *AuthService) TelegramAuthHandler(c fiber.Ctx) error {
	if s.cfg.TelegramBotToken == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Вход через Telegram не настроен"})
	}

	var payload struct {
		InitData string `json:"init_data"`
	}
	if err := c.Bind().Body(&payload); err != nil {
		return utils.BadRequest(c, "Неверный формат данных")
	}

	// Проверяем initData
	expiration := 24 * time.Hour
	if err := initdata.Validate(payload.InitData, s.cfg.TelegramBotToken, expiration); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Неверные данные Telegram"})
	}

	data, err := initdata.Parse(payload.InitData)
	if err != nil || data.User.ID == 0 {
		return utils.BadRequest(c, "Не удалось разобрать initData")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.users.UpsertTelegramUser(ctx, models.TelegramProfile{
		TelegramID: data.User.ID,
		Username:   data.User.Username,
		FirstName:  data.User.FirstName,
		LastName:   data.User.LastName,
		PhotoURL:   data.User.PhotoURL,
	})
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка входа через Telegram")
	}

	return s.respondWithToken(c, fiber.StatusOK, user)
}

func (s *AuthService) respondWithToken(c fiber.Ctx, status int, user *models.User) error {
	token, err := s.jwtService.GenerateToken(user.ID)
	if err != nil {
		return utils.SendError(c, s.log, err, "Ошибка генерации токена")
	}
	return c.Status(status).JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

func checkPassword(p string) string {
	switch {
	case len(p) < minPasswordLength:
		return "Пароль должен быть не короче 6 символов"
	case len(p) > maxPasswordLength:
		return "Пароль слишком длинный"
	}
	return ""
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// hashToken в базе хранится только хеш токена сброса
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
