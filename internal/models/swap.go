package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SwapStatus статус запроса на обмен
type SwapStatus string

const (
	SwapPending  SwapStatus = "pending"
	SwapSwapped  SwapStatus = "swapped"
	SwapRejected SwapStatus = "rejected"
	SwapCanceled SwapStatus = "canceled"
)

// ParseSwapTransition разбирает целевой статус из запроса клиента.
// "accepted" принимается как синоним "swapped".
func ParseSwapTransition(s string) (SwapStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "swapped", "accepted":
		return SwapSwapped, true
	case "rejected":
		return SwapRejected, true
	case "canceled", "cancelled":
		return SwapCanceled, true
	}
	return "", false
}

// SwapRequest представляет предложение обмена одной вещи на другую
type SwapRequest struct {
	ID             uuid.UUID  `json:"id"`
	ItemID         uuid.UUID  `json:"item_id"`
	SwapWithItemID uuid.UUID  `json:"swap_with_item_id"`
	RequesterID    uuid.UUID  `json:"requester_id"`
	OwnerID        uuid.UUID  `json:"owner_id"`
	Status         SwapStatus `json:"status"`
	Message        string     `json:"message"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Дополнительные поля для API
	Item         *Item        `json:"item,omitempty"`
	SwapWithItem *Item        `json:"swap_with_item,omitempty"`
	Requester    *UserSummary `json:"requester,omitempty"`
	Owner        *UserSummary `json:"owner,omitempty"`
}

// UserSwapRef - исходящий запрос в профиле пользователя
type UserSwapRef struct {
	RequestID      uuid.UUID  `json:"request_id"`
	ItemID         uuid.UUID  `json:"item_id"`
	SwapWithItemID uuid.UUID  `json:"swap_with_item_id"`
	Status         SwapStatus `json:"status"`
}

// SwapDirection фильтр по направлению запросов
type SwapDirection string

const (
	SwapIncoming SwapDirection = "incoming"
	SwapOutgoing SwapDirection = "outgoing"
	SwapAll      SwapDirection = "all"
)

// ParseSwapDirection нормализует направление; по умолчанию - все
func ParseSwapDirection(s string) SwapDirection {
	switch SwapDirection(s) {
	case SwapIncoming, SwapOutgoing:
		return SwapDirection(s)
	}
	return SwapAll
}
