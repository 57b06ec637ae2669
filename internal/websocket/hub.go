// Package websocket 向浏览器前端实时推送新入索引的邮件。
//
// 前端通过 /ws 建立连接后收到 new_mail 事件即可刷新列表，
// 不再需要轮询查询接口。推送是纯旁路：没有客户端连接时广播为空操作。
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"onebox/backend/internal/domain"
)

// MessageType 定义 WebSocket 消息类型
type MessageType string

const (
	MessageTypeNewMail MessageType = "new_mail"
	MessageTypePing    MessageType = "ping"
	MessageTypePong    MessageType = "pong"
)

// Envelope WebSocket 消息信封
type Envelope struct {
	Type MessageType `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// MailEvent 推送给前端的邮件摘要
type MailEvent struct {
	MessageID string    `json:"messageId"`
	Account   string    `json:"account"`
	Folder    string    `json:"folder"`
	From      string    `json:"from"`
	Subject   string    `json:"subject"`
	Date      time.Time `json:"date"`
	Label     string    `json:"label"`
	RealTime  bool      `json:"realTime"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

// client 一个已连接的前端
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub 管理全部 WebSocket 连接并向其广播事件
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub 创建 Hub
func NewHub(allowedOrigins []string, log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

// originChecker 创建带 Origin 验证的检查函数
func originChecker(allowedOrigins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range allowedOrigins {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
		return false
	}
}

// HandleConnection Gin 处理函数，升级连接并注册客户端
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	h.clients[cl.id] = cl
	h.mu.Unlock()

	h.log.Debug("websocket client connected", zap.String("client", cl.id))

	go h.writeLoop(cl)
	go h.readLoop(cl)
}

// BroadcastNewMail 向所有客户端广播一封新入索引的邮件
func (h *Hub) BroadcastNewMail(msg *domain.Message) {
	payload, err := json.Marshal(Envelope{
		Type: MessageTypeNewMail,
		Data: MailEvent{
			MessageID: msg.MessageID,
			Account:   msg.Account,
			Folder:    msg.Folder,
			From:      msg.From,
			Subject:   msg.Subject,
			Date:      msg.Date,
			Label:     msg.Label.String(),
			RealTime:  msg.RealTime,
		},
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, cl := range h.clients {
		select {
		case cl.send <- payload:
		default:
			// 发送缓冲满说明客户端已卡死，交给读写协程清理
		}
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// remove 注销并关闭一个客户端
func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl.id]; ok {
		delete(h.clients, cl.id)
		close(cl.send)
	}
	h.mu.Unlock()
	_ = cl.conn.Close()
}

// readLoop 消费客户端消息（仅 ping）并探测断连
func (h *Hub) readLoop(cl *client) {
	defer h.remove(cl)

	cl.conn.SetReadLimit(1024)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		if env.Type == MessageTypePing {
			pong, _ := json.Marshal(Envelope{Type: MessageTypePong})
			select {
			case cl.send <- pong:
			default:
			}
		}
	}
}

// writeLoop 将广播写入连接并维持心跳
func (h *Hub) writeLoop(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.remove(cl)
	}()

	for {
		select {
		case payload, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
