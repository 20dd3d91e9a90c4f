package websocket

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rajivgeraev/reswap-api/internal/models"
)

// Manager хранит активные соединения и доставляет уведомления пользователям
type Manager struct {
	mu          sync.Mutex
	clients     map[uuid.UUID]*Client
	userClients map[uuid.UUID]map[uuid.UUID]*Client // userID -> clientID -> client
	log         *zap.Logger
}

// NewManager создает новый экземпляр Manager
func NewManager(log *zap.Logger) *Manager {
	return &Manager{
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[uuid.UUID]map[uuid.UUID]*Client),
		log:         log,
	}
}

// AddClient регистрирует нового клиента
func (m *Manager) AddClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clients[client.ID] = client
	if _, exists := m.userClients[client.UserID]; !exists {
		m.userClients[client.UserID] = make(map[uuid.UUID]*Client)
	}
	m.userClients[client.UserID][client.ID] = client

	m.log.Info("WebSocket клиент подключен",
		zap.Stringer("client_id", client.ID), zap.Stringer("user_id", client.UserID))
}

// RemoveClient удаляет клиента. Повторный вызов ничего не делает.
func (m *Manager) RemoveClient(clientID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(clientID)
}

func (m *Manager) removeLocked(clientID uuid.UUID) {
	client, exists := m.clients[clientID]
	if !exists {
		return
	}

	delete(m.clients, clientID)
	if clients, ok := m.userClients[client.UserID]; ok {
		delete(clients, clientID)
		if len(clients) == 0 {
			delete(m.userClients, client.UserID)
		}
	}
	close(client.send)

	m.log.Info("WebSocket клиент отключен",
		zap.Stringer("client_id", clientID), zap.Stringer("user_id", client.UserID))
}

// Notify отправляет уведомление всем соединениям пользователя.
// Если пользователь не в сети, уведомление пропадает.
func (m *Manager) Notify(userID uuid.UUID, event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		m.log.Error("Ошибка сериализации уведомления", zap.Error(err))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.userClients[userID] {
		m.sendLocked(client, payload)
	}
}

// notifyClient отправляет уведомление одному соединению
func (m *Manager) notifyClient(client *Client, event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		m.log.Error("Ошибка сериализации уведомления", zap.Error(err))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		m.sendLocked(client, payload)
	}
}

func (m *Manager) sendLocked(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		// Клиент не успевает читать - отключаем его
		m.log.Warn("Буфер клиента переполнен, соединение закрыто", zap.Stringer("client_id", client.ID))
		m.removeLocked(client.ID)
	}
}

// Online возвращает число активных соединений пользователя
func (m *Manager) Online(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.userClients[userID])
}

// Shutdown закрывает все соединения
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range m.clients {
		m.removeLocked(id)
	}
}
