// ============================================================================
// WEBSOCKET HUB — транспортный слой duplex-соединений
// ============================================================================
//
// Hub отвечает только за транспорт: upgrade, аутентификация в течение 5 секунд,
// ping/pong liveness, чтение и запись с FIFO-буфером на клиента.
//
// Членство в топиках хаб НЕ ведет — это зона Connection Registry. Hub лишь
// дергает OnConnect/OnDisconnect, а Registry решает, что с этим делать.
// Disconnect (явный close, таймаут, ошибка транспорта) детектируется в
// readPump и приводит ровно к одному вызову OnDisconnect.
//
// ============================================================================

package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pontipilat22/logcompany1/internal/shared/logger"
)

const (
	// authTimeout — клиент обязан прислать токен в течение 5 секунд
	authTimeout = 5 * time.Second

	// pingInterval / pongWait — проверка живости соединения
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second

	// maxMessageSize — максимальный размер входящего сообщения (64 KB:
	// offline-батчи заметно больше одиночных точек)
	maxMessageSize = 65536

	// writeWait — таймаут на запись одного сообщения
	writeWait = 10 * time.Second

	// sendBufferSize — FIFO-буфер исходящих сообщений клиента
	sendBufferSize = 256
)

var (
	// ErrConnectionClosed — соединение уже закрыто
	ErrConnectionClosed = errors.New("connection closed")

	// ErrSendBufferFull — клиент не успевает читать, буфер переполнен
	ErrSendBufferFull = errors.New("send buffer full")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO(deploy): ограничить origin доменом админки перед продом
		return true
	},
}

// AuthFunc валидирует токен первого сообщения.
// Возвращает userID и роль (DRIVER | DISPATCHER | ADMIN).
type AuthFunc func(token string) (userID, role string, err error)

// MessageHandler обрабатывает входящее сообщение клиента
type MessageHandler func(client *Client, messageType string, data json.RawMessage) error

// ConnectFunc вызывается после успешной аутентификации
type ConnectFunc func(client *Client)

// DisconnectFunc вызывается ровно один раз при разрыве соединения
type DisconnectFunc func(client *Client)

// Client — одно аутентифицированное WebSocket-соединение.
// Реализует registry.Sender: Send неблокирующий, порядок сообщений FIFO.
type Client struct {
	ID     string // уникальный id соединения (не пользователя)
	UserID string
	Role   string

	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	log  *logger.Logger

	closeOnce sync.Once
	dropOnce  sync.Once
	done      chan struct{}
}

// Send ставит сообщение в очередь отправки без блокировки.
// Переполненный буфер — признак мертвого или слишком медленного клиента.
func (c *Client) Send(message []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- message:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// SendJSON сериализует и ставит сообщение в очередь
func (c *Client) SendJSON(v any) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// Close рвет транспорт; безопасен при повторных вызовах
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// drop гарантирует ровно один вызов OnDisconnect на жизнь соединения
func (c *Client) drop() {
	c.dropOnce.Do(func() {
		c.Close()
		if c.hub.onDisconnect != nil {
			c.hub.onDisconnect(c)
		}
		c.log.Info(logger.Entry{
			Action:  "client_disconnected",
			Message: c.ID,
			Additional: map[string]any{
				"user_id": c.UserID,
			},
		})
	})
}

// Hub принимает и обслуживает WebSocket-соединения
type Hub struct {
	authFunc       AuthFunc
	messageHandler MessageHandler
	onConnect      ConnectFunc
	onDisconnect   DisconnectFunc
	log            *logger.Logger
}

// NewHub создает хаб. Обработчики ставятся до первого ServeWS.
func NewHub(authFunc AuthFunc, log *logger.Logger) *Hub {
	return &Hub{
		authFunc: authFunc,
		log:      log,
	}
}

// SetMessageHandler устанавливает обработчик входящих сообщений
func (h *Hub) SetMessageHandler(handler MessageHandler) {
	h.messageHandler = handler
}

// SetLifecycleHandlers устанавливает колбэки подключения/отключения
func (h *Hub) SetLifecycleHandlers(onConnect ConnectFunc, onDisconnect DisconnectFunc) {
	h.onConnect = onConnect
	h.onDisconnect = onDisconnect
}

// ServeWS обрабатывает HTTP-запрос на WebSocket соединение
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error(logger.Entry{
			Action:  "ws_upgrade_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		hub:  h,
		log:  h.log,
		done: make(chan struct{}),
	}

	// Дедлайн на аутентификацию
	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))

	var authMsg struct {
		Token string `json:"token"`
	}
	if err := conn.ReadJSON(&authMsg); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseProtocolError, "auth timeout"))
		_ = conn.Close()
		h.log.Warn(logger.Entry{
			Action:  "ws_auth_failed",
			Message: "no auth message received",
		})
		return
	}

	userID, role, err := h.authFunc(authMsg.Token)
	if err != nil {
		_ = conn.WriteJSON(map[string]string{"error": "invalid token"})
		_ = conn.Close()
		h.log.Warn(logger.Entry{
			Action:  "ws_auth_invalid_token",
			Message: err.Error(),
		})
		return
	}

	client.UserID = userID
	client.Role = role

	// Снимаем auth-дедлайн, ставим обычный pong wait
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if h.onConnect != nil {
		h.onConnect(client)
	}
	h.log.Info(logger.Entry{
		Action:  "client_connected",
		Message: client.ID,
		Additional: map[string]any{
			"user_id": userID,
			"role":    role,
		},
	})

	_ = conn.WriteJSON(map[string]string{"status": "authenticated", "user_id": userID})

	go client.writePump()
	go client.readPump()
}

// readPump читает сообщения клиента; выход из цикла — это disconnect
func (c *Client) readPump() {
	defer c.drop()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn(logger.Entry{
					Action:  "ws_read_error",
					Message: err.Error(),
					Additional: map[string]any{
						"client_id": c.ID,
					},
				})
			}
			return
		}

		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data,omitempty"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			c.log.Warn(logger.Entry{
				Action:  "ws_parse_message_error",
				Message: err.Error(),
				Additional: map[string]any{
					"client_id": c.ID,
				},
			})
			continue
		}

		if c.hub.messageHandler != nil {
			if err := c.hub.messageHandler(c, msg.Type, msg.Data); err != nil {
				c.log.Warn(logger.Entry{
					Action:  "ws_handle_message_error",
					Message: err.Error(),
					Additional: map[string]any{
						"client_id": c.ID,
						"msg_type":  msg.Type,
					},
				})
			}
		}
	}
}

// writePump пишет из FIFO-буфера и поддерживает ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
