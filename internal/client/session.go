package client

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Session - сохраненное состояние устройства: токен и ID устройства
type Session struct {
	Token    string    `json:"token,omitempty"`
	UserID   uuid.UUID `json:"user_id,omitempty"`
	DeviceID uuid.UUID `json:"device_id"`

	path string
}

// DefaultDir возвращает каталог данных клиента
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "reswap"), nil
}

// LoadSession читает session.json из dir. Если файла нет,
// создается новая сессия с новым ID устройства.
func LoadSession(dir string) (*Session, error) {
	s := &Session{path: filepath.Join(dir, "session.json")}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.DeviceID = uuid.New()
		return s, s.Save()
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	if s.DeviceID == uuid.Nil {
		s.DeviceID = uuid.New()
	}
	return s, nil
}

// Save записывает сессию на диск
func (s *Session) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}

// Clear забывает токен, ID устройства сохраняется
func (s *Session) Clear() error {
	s.Token = ""
	s.UserID = uuid.Nil
	return s.Save()
}
