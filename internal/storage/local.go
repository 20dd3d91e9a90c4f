package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidKey ключ выходит за пределы каталога хранилища
var ErrInvalidKey = errors.New("invalid storage key")

// LocalStorage хранит файлы на диске и отдает их через /files
type LocalStorage struct {
	dir     string
	baseURL string
}

// NewLocalStorage создает каталог хранилища, если его нет
func NewLocalStorage(dir, publicBaseURL string) (*LocalStorage, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка пути хранилища: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("ошибка создания каталога хранилища: %w", err)
	}
	return &LocalStorage{dir: abs, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Dir возвращает абсолютный путь каталога для раздачи статики
func (s *LocalStorage) Dir() string {
	return s.dir
}

func (s *LocalStorage) path(key string) (string, error) {
	p := filepath.Join(s.dir, filepath.FromSlash(key))
	if !strings.HasPrefix(p, s.dir+string(os.PathSeparator)) {
		return "", ErrInvalidKey
	}
	return p, nil
}

// Upload сохраняет файл. Изображения всегда хранятся как JPEG.
func (s *LocalStorage) Upload(_ context.Context, key string, r io.Reader) (Object, error) {
	key = key + ".jpg"
	p, err := s.path(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return Object{}, fmt.Errorf("ошибка создания каталога: %w", err)
	}

	out, err := os.Create(p)
	if err != nil {
		return Object{}, fmt.Errorf("ошибка создания файла: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		os.Remove(p)
		return Object{}, fmt.Errorf("ошибка записи файла: %w", err)
	}

	return Object{Key: key, URL: s.baseURL + "/files/" + key}, nil
}

// Delete удаляет файл. Отсутствующий файл ошибкой не считается.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	return nil
}
