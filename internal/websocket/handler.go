package websocket

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rajivgeraev/reswap-api/internal/models"
	"github.com/rajivgeraev/reswap-api/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Мобильные клиенты не присылают Origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler возвращает HTTP-обработчик /ws. Токен передается в параметре
// token или в заголовке Authorization.
func (m *Manager) Handler(jwtService *utils.JWTService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}

		userID, err := jwtService.ExtractUserID(token)
		if err != nil {
			http.Error(w, "Недействительный токен", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			m.log.Warn("Ошибка установки WebSocket соединения", zap.Error(err))
			return
		}

		client := NewClient(userID, conn, m)
		client.Start()
		m.notifyClient(client, models.NewEvent(models.EventConnected, map[string]string{"client_id": client.ID.String()}))
	})
}
