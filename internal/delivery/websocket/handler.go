package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/skalibog/scalpsignal/pkg/logger"
	"github.com/skalibog/scalpsignal/pkg/models"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// LatestSource источник последних записей по символам
type LatestSource interface {
	Latest() map[string]models.SignalRecord
}

// Handler отправляет клиентам последние записи при подключении и на каждом тике
type Handler struct {
	source   LatestSource
	interval time.Duration
}

// NewHandler создает обработчик websocket
func NewHandler(source LatestSource, interval time.Duration) *Handler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Handler{source: source, interval: interval}
}

// Handle handles /ws
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Ошибка подключения websocket", zap.Error(err))
		return
	}
	defer conn.Close()

	logger.Debug("Подключен websocket клиент", zap.String("remote", r.RemoteAddr))

	// чтение нужно, чтобы заметить закрытие соединения клиентом
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.send(conn); err != nil {
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.send(conn); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handler) send(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(h.source.Latest()); err != nil {
		logger.Debug("Ошибка записи websocket", zap.Error(err))
		return err
	}
	return nil
}
