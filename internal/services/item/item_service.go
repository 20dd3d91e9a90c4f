package item

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rajivgeraev/reswap-api/internal/config"
	"github.com/rajivgeraev/reswap-api/internal/db"
	"github.com/rajivgeraev/reswap-api/internal/middleware"
	"github.com/rajivgeraev/reswap-api/internal/models"
	"github.com/rajivgeraev/reswap-api/internal/storage"
	"github.com/rajivgeraev/reswap-api/internal/utils"
)

// ItemStore - хранилище вещей, нужное сервису
type ItemStore interface {
	CreateItem(ctx context.Context, item *models.Item) error
	UpdateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	ListItems(ctx context.Context, f models.ItemFilter) ([]models.Item, int, error)
	GetItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Item, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error)
	DeleteItem(ctx context.Context, id, ownerID uuid.UUID) ([]string, error)
}

// RequestImage изображение, заранее загруженное клиентом напрямую в Cloudinary
type RequestImage struct {
	URL                string          `json:"url"`
	PublicID           string          `json:"public_id"`
	IsMain             bool            `json:"is_main"`
	CloudinaryResponse json.RawMessage `json:"cloudinary_response,omitempty"`
}

// ItemInput поля вещи, собранные на форме
type ItemInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Keywords    string `json:"keywords"`
	Category    string `json:"category"`
	Condition   string `json:"condition"`
}

// ItemService представляет сервис для работы с вещами
type ItemService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	items      ItemStore
	storage    storage.Storage
	log        *zap.Logger
}

// NewItemService создает новый экземпляр ItemService
func NewItemService(cfg *config.Config, jwtService *utils.JWTService, items ItemStore,
	store storage.Storage, log *zap.Logger) *ItemService {
	return &ItemService{
		cfg:        cfg,
		jwtService: jwtService,
		items:      items,
		storage:    store,
		log:        log,
	}
}

// BuildItem собирает вещь из полей формы и уже сохраненных изображений.
// Новая вещь всегда начинает со статусом pending.
func BuildItem(ownerID uuid.UUID, in ItemInput, images []models.ItemImage) *models.Item {
	if images == nil {
		images = []models.ItemImage{}
	}
	return &models.Item{
		UserID:      ownerID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Keywords:    strings.TrimSpace(in.Keywords),
		Category:    models.ParseCategory(in.Category),
		Condition:   models.ParseCondition(in.Condition),
		SwapStatus:  models.ItemStatusPending,
		Images:      images,
	}
}

// CreateItem обрабатывает создание новой вещи.
// multipart: поля формы и файлы images; JSON: поля и заранее загруженные изображения.
func (s *ItemService) CreateItem(c fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var in ItemInput
	var images []models.ItemImage
	var uploaded []string
	var err error

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		var form *multipart.Form
		form, err = c.MultipartForm()
		if err != nil {
			return utils.BadRequest(c, "Неверный формат данных")
		}
		in = ItemInput{
			Name:        firstValue(form, "name"),
			Description: firstValue(form, "description"),
			Keywords:    firstValue(form, "keywords"),
			Category:    firstValue(form, "category"),
			Condition:   firstValue(form, "condition"),
		}
		if strings.TrimSpace(in.Name) == "" {
			return utils.BadRequest(c, "Название обязательно")
		}

		files := form.File["images"]
		if len(files) > s.cfg.MaxImages {
			return utils.BadRequest(c, "Слишком много изображений")
		}
		images, uploaded, err = s.storeFiles(ctx, files)
		if err != nil {
			s.cleanup(uploaded)
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
			}
			return utils.BadRequest(c, "Не удалось сохранить изображение")
		}
	} else {
		var req struct {
			ItemInput
			Images []RequestImage `json:"images"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return utils.BadRequest(c, "Неверный формат данных")
		}
		in = req.ItemInput
		if strings.TrimSpace(in.Name) == "" {
			return utils.BadRequest(c, "Название обязательно")
		}
		if len(req.Images) > s.cfg.MaxImages {
			return utils.BadRequest(c, "Слишком много изображений")
		}
		images, err = s.imagesFromRequest(userID, req.Images)
		if err != nil {
			return utils.BadRequest(c, "Изображение загружено не в папку пользователя")
		}
	}

	item := BuildItem(userID, in, images)
	if err := s.items.CreateItem(ctx, item); err != nil {
		s.cleanup(uploaded)
		return utils.SendError(c, s.log, err, "Ошибка сохранения вещи")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"item_id": item.ID,
		"item":    item,
		"message": "Вещь успешно добавлена",
	})
}

// storeFiles сжимает и сохраняет файлы. Возвращает ключи уже сохраненных
// файлов даже при ошибке, чтобы их можно было удалить.
func (s *ItemService) storeFiles(ctx context.Context, files []*multipart.FileHeader) ([]models.ItemImage, []string, error) {
	images := make([]models.ItemImage, 0, len(files))
	var keys []string

	for _, fh := range files {
		if fh.Size > int64(s.cfg.MaxUploadBytes) {
			return nil, keys, fiber.NewError(fiber.StatusRequestEntityTooLarge, "Файл слишком большой")
		}

		f, err := fh.Open()
		if err != nil {
			return nil, keys, err
		}
		obj, res, err := storage.StoreImage(ctx, s.storage, "items", f)
		f.Close()
		if err != nil {
			return nil, keys, err
		}

		keys = append(keys, obj.Key)
		images = append(images, models.ItemImage{
			URL:      obj.URL,
			PublicID: obj.Key,
			Metadata: models.ImageMetadata{
				PublicID: obj.Key,
				Width:    res.Width,
				Height:   res.Height,
				Bytes:    len(res.Data),
			},
		})
	}
	return images, keys, nil
}

// errForeignImage возвращается, если public_id лежит вне папки пользователя
var errForeignImage = errors.New("public_id вне папки пользователя")

// imagesFromRequest переносит изображения из JSON. Основное изображение
// ставится первым, остальные сохраняют порядок. public_id принимается
// только из папки пользователя, иначе удаление вещи удалило бы чужой файл.
func (s *ItemService) imagesFromRequest(userID uuid.UUID, reqImages []RequestImage) ([]models.ItemImage, error) {
	folder := storage.UserFolder(s.cfg.CloudinaryConfig.UploadFolder, userID)
	images := make([]models.ItemImage, 0, len(reqImages))
	mainIdx := -1

	for _, img := range reqImages {
		if img.URL == "" {
			continue
		}
		image := models.ItemImage{URL: img.URL, PublicID: img.PublicID}

		// Обрабатываем данные из Cloudinary
		if len(img.CloudinaryResponse) > 0 {
			cr, err := models.ParseCloudinaryResponse(img.CloudinaryResponse)
			if err != nil {
				s.log.Warn("Ошибка парсинга ответа Cloudinary", zap.Error(err))
			} else {
				image.PreviewURL = models.ExtractPreviewURL(cr)
				image.Metadata = models.ExtractMetadata(cr)
				if image.PublicID == "" {
					image.PublicID = cr.PublicID
				}
			}
		}

		if image.PublicID != "" && !storage.InFolder(folder, image.PublicID) {
			return nil, errForeignImage
		}

		if img.IsMain && mainIdx < 0 {
			mainIdx = len(images)
		}
		images = append(images, image)
	}

	if mainIdx > 0 {
		main := images[mainIdx]
		copy(images[1:mainIdx+1], images[:mainIdx])
		images[0] = main
	}
	return images, nil
}

// cleanup удаляет загруженные файлы, если вещь не удалось сохранить
func (s *ItemService) cleanup(keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := db.GetContext()
	defer cancel()

	for _, key := range keys {
		if err := s.storage.Delete(ctx, key); err != nil {
			s.log.Warn("Не удалось удалить изображение", zap.String("key", key), zap.Error(err))
		}
	}
}

func firstValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}
