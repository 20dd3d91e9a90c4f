package models

import (
	"time"

	"github.com/google/uuid"
)

// User представляет пользователя в системе
type User struct {
	ID           uuid.UUID     `json:"id"`
	Email        string        `json:"email"`
	Username     string        `json:"username"`
	Phone        string        `json:"phone"`
	AvatarURL    string        `json:"avatar_url"`
	Location     string        `json:"location"`
	TelegramID   *int64        `json:"telegram_id,omitempty"`
	PasswordHash string        `json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	ListedItems  []uuid.UUID   `json:"listed_items"`
	SwapRequests []UserSwapRef `json:"swap_requests"`
}

// Summary возвращает публичную часть профиля
func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Phone:     u.Phone,
		AvatarURL: u.AvatarURL,
		Location:  u.Location,
	}
}

// UserSummary представляет минимальную информацию о пользователе для API
type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Location  string    `json:"location,omitempty"`
}

// ProfileUpdate - изменяемые поля профиля. nil означает "не менять".
type ProfileUpdate struct {
	Phone     *string
	Location  *string
	AvatarURL *string
}

// TelegramProfile данные пользователя из Telegram initData
type TelegramProfile struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	PhotoURL   string
}
