package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/rajivgeraev/reswap-api/internal/config"
)

// CloudinaryStorage хранит изображения в Cloudinary.
// Ключ объекта - это public_id внутри папки загрузок.
type CloudinaryStorage struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStorage создает клиента Cloudinary
func NewCloudinaryStorage(cfg config.CloudinaryConfig) (*CloudinaryStorage, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации Cloudinary: %w", err)
	}
	return &CloudinaryStorage{cld: cld, folder: cfg.UploadFolder}, nil
}

// Upload загружает изображение
func (s *CloudinaryStorage) Upload(ctx context.Context, key string, r io.Reader) (Object, error) {
	resp, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID: key,
		Folder:   s.folder,
	})
	if err != nil {
		return Object{}, fmt.Errorf("ошибка загрузки в Cloudinary: %w", err)
	}
	if resp.Error.Message != "" {
		return Object{}, errors.New("ошибка загрузки в Cloudinary: " + resp.Error.Message)
	}
	return Object{Key: resp.PublicID, URL: resp.SecureURL}, nil
}

// Delete удаляет изображение по public_id
func (s *CloudinaryStorage) Delete(ctx context.Context, key string) error {
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: key})
	if err != nil {
		return fmt.Errorf("ошибка удаления из Cloudinary: %w", err)
	}
	if resp.Error.Message != "" {
		return errors.New("ошибка удаления из Cloudinary: " + resp.Error.Message)
	}
	return nil
}
