package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rajivgeraev/reswap-api/internal/config"
)

// Object описывает сохраненный файл
type Object struct {
	Key string
	URL string
}

// Storage - хранилище изображений
type Storage interface {
	Upload(ctx context.Context, key string, r io.Reader) (Object, error)
	Delete(ctx context.Context, key string) error
}

// NewKey возвращает случайный ключ вида prefix/<uuid>
func NewKey(prefix string) string {
	return path.Join(prefix, uuid.New().String())
}

// UserFolder папка пользователя для прямых загрузок в Cloudinary
func UserFolder(root string, userID uuid.UUID) string {
	return path.Join(root, "users", userID.String())
}

// InFolder проверяет, что ключ лежит внутри папки folder.
// Ключи с ".." и лишними разделителями не принимаются.
func InFolder(folder, key string) bool {
	return key == path.Clean(key) && strings.HasPrefix(key, folder+"/")
}

// New выбирает Cloudinary, если заданы ключи, иначе локальный диск
func New(cfg *config.Config, log *zap.Logger) (Storage, error) {
	if cfg.CloudinaryConfig.Enabled() {
		log.Info("Хранилище изображений: Cloudinary", zap.String("cloud", cfg.CloudinaryConfig.CloudName))
		return NewCloudinaryStorage(cfg.CloudinaryConfig)
	}

	log.Info("Хранилище изображений: локальный диск", zap.String("dir", cfg.StorageConfig.Dir))
	return NewLocalStorage(cfg.StorageConfig.Dir, cfg.StorageConfig.PublicBaseURL)
}
