package models

import "time"

// EventType тип уведомления
type EventType string

const (
	EventConnected     EventType = "connected"
	EventSwapRequested EventType = "swap_requested"
	EventSwapAccepted  EventType = "swap_accepted"
	EventSwapRejected  EventType = "swap_rejected"
	EventSwapCanceled  EventType = "swap_canceled"
)

// Event уведомление, отправляемое пользователю по websocket
type Event struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent создает уведомление с текущим временем
func NewEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, CreatedAt: time.Now()}
}
