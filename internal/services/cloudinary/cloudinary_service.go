package cloudinary

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/reswap-api/internal/config"
	"github.com/rajivgeraev/reswap-api/internal/middleware"
	"github.com/rajivgeraev/reswap-api/internal/storage"
	"github.com/rajivgeraev/reswap-api/internal/utils"
)

// CloudinaryService выдает клиенту подписанные параметры
// для прямой загрузки фотографий в Cloudinary
type CloudinaryService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	now        func() time.Time
}

// NewCloudinaryService создает новый экземпляр CloudinaryService
func NewCloudinaryService(cfg *config.Config, jwtService *utils.JWTService) *CloudinaryService {
	return &CloudinaryService{
		cfg:        cfg,
		jwtService: jwtService,
		now:        time.Now,
	}
}

// GenerateSignature создаёт подпись Cloudinary: параметры по алфавиту,
// соединенные через &, плюс API-секрет, SHA-1 в hex
func (s *CloudinaryService) GenerateSignature(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	signParts := make([]string, 0, len(keys))
	for _, k := range keys {
		signParts = append(signParts, fmt.Sprintf("%s=%s", k, params[k]))
	}
	signatureString := strings.Join(signParts, "&") + s.cfg.CloudinaryConfig.APISecret

	h := sha1.New()
	h.Write([]byte(signatureString))
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateUploadParams создаёт параметры для загрузки фотографий вещи.
// Папка привязана к пользователю: при создании вещи принимаются
// только public_id из его папки.
func (s *CloudinaryService) GenerateUploadParams(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}
	if !s.cfg.CloudinaryConfig.Enabled() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Загрузка в Cloudinary не настроена"})
	}

	// ID вещи нужен до ее создания, чтобы сложить фото в одну папку
	itemID := c.Query("item_id")
	if itemID == "" {
		itemID = uuid.New().String()
	} else if _, err := uuid.Parse(itemID); err != nil {
		return utils.BadRequest(c, "Неверный формат ID вещи")
	}

	params := map[string]string{
		"timestamp": fmt.Sprintf("%d", s.now().Unix()),
		"folder":    path.Join(storage.UserFolder(s.cfg.CloudinaryConfig.UploadFolder, userID), "items", itemID),
	}
	// Пресет подписывается вместе с остальными параметрами, иначе Cloudinary отклонит загрузку
	if preset := s.cfg.CloudinaryConfig.UploadPreset; preset != "" {
		params["upload_preset"] = preset
	}

	return c.JSON(fiber.Map{
		"timestamp":     params["timestamp"],
		"folder":        params["folder"],
		"signature":     s.GenerateSignature(params),
		"api_key":       s.cfg.CloudinaryConfig.APIKey,
		"cloud_name":    s.cfg.CloudinaryConfig.CloudName,
		"upload_preset": params["upload_preset"],
		"item_id":       itemID,
	})
}
