package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dropmail/backend/internal/auth"
	"dropmail/backend/internal/domain"
)

// InboxStore 邮箱归属查询接口
type InboxStore interface {
	GetInbox(id string) (*domain.Inbox, error)
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeNewMail     MessageType = "new_mail"
	MessageTypePing        MessageType = "ping"
	MessageTypePong        MessageType = "pong"
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeSubscribed  MessageType = "subscribed"
	MessageTypeError       MessageType = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	InboxID   string          `json:"inboxId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 代表一个WebSocket客户端连接
type Client struct {
	ID       string
	UserID   string
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
	inboxIDs map[string]bool // 已订阅的邮箱ID
	mu       sync.Mutex
	log      *zap.Logger
}

// Hub 管理所有WebSocket连接
//
// 订阅按邮箱分组，邮件入库后向该邮箱的全部订阅者推送通知。
type Hub struct {
	clients        map[string]*Client            // clientID -> Client
	inboxes        map[string]map[string]*Client // inboxID -> clientID -> Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *broadcastMessage
	mu             sync.RWMutex
	log            *zap.Logger
	allowedOrigins []string
	jwtManager     *auth.JWTManager
	store          InboxStore
}

type broadcastMessage struct {
	inboxID string
	message *Message
}

// NewHub 创建WebSocket Hub
func NewHub(allowedOrigins []string, jwtManager *auth.JWTManager, store InboxStore, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Hub{
		clients:        make(map[string]*Client),
		inboxes:        make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *broadcastMessage, 256),
		log:            log,
		allowedOrigins: allowedOrigins,
		jwtManager:     jwtManager,
		store:          store,
	}
}

// Run 启动Hub，ctx 取消后关闭全部连接
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.log.Info("client registered", zap.String("id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for inboxID := range client.inboxIDs {
					if clients, exists := h.inboxes[inboxID]; exists {
						delete(clients, client.ID)
						if len(clients) == 0 {
							delete(h.inboxes, inboxID)
						}
					}
				}
				delete(h.clients, client.ID)
				close(client.send)
				h.log.Info("client unregistered", zap.String("id", client.ID))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToInbox(msg.inboxID, msg.message)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// NewMailData 新邮件通知数据
type NewMailData struct {
	EmailID    string `json:"emailId"`
	InboxID    string `json:"inboxId"`
	From       string `json:"from"`
	Subject    string `json:"subject"`
	Preview    string `json:"preview,omitempty"`
	ReceivedAt string `json:"receivedAt"`
}

// NotifyNewMail 向邮箱的订阅者推送新邮件通知
func (h *Hub) NotifyNewMail(email *domain.Email) {
	preview := email.TextBody
	if len(preview) > 100 {
		preview = preview[:100]
	}

	data, err := json.Marshal(NewMailData{
		EmailID:    email.ID,
		InboxID:    email.InboxID,
		From:       email.From,
		Subject:    email.Subject,
		Preview:    preview,
		ReceivedAt: email.ReceivedAt.Format(time.RFC3339),
	})
	if err != nil {
		h.log.Error("failed to marshal new mail data", zap.Error(err))
		return
	}

	h.broadcast <- &broadcastMessage{
		inboxID: email.InboxID,
		message: &Message{
			Type:      MessageTypeNewMail,
			InboxID:   email.InboxID,
			Data:      data,
			Timestamp: time.Now(),
		},
	}
}

func (h *Hub) broadcastToInbox(inboxID string, msg *Message) {
	h.mu.RLock()
	clients := h.inboxes[inboxID]
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			// 客户端阻塞，跳过
			h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
		}
	}
}

func (h *Hub) pingAllClients() {
	data, err := json.Marshal(&Message{
		Type:      MessageTypePing,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.inboxes = make(map[string]map[string]*Client)
}

// authenticateClient 从查询参数或 Authorization 头提取并验证JWT
func (h *Hub) authenticateClient(c *gin.Context) (*Client, error) {
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}
	}
	if token == "" {
		return nil, auth.ErrInvalidToken
	}

	claims, err := h.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	return &Client{
		ID:       uuid.NewString(),
		UserID:   claims.UserID,
		inboxIDs: make(map[string]bool),
		log:      h.log,
	}, nil
}

func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 没有 Origin 视为同源请求
				return true
			}
			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// HandleWebSocket 处理WebSocket连接升级
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		client, err := hub.authenticateClient(c)
		if err != nil {
			hub.log.Warn("websocket authentication failed",
				zap.Error(err),
				zap.String("remote_addr", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client.conn = conn
		client.hub = hub
		client.send = make(chan []byte, 256)

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket error", zap.Error(err))
			}
			break
		}
		c.handleMessage(&msg)
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.subscribeInbox(msg.InboxID)
	case MessageTypeUnsubscribe:
		c.unsubscribeInbox(msg.InboxID)
	case MessageTypePong:
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	default:
		c.log.Warn("unknown message type", zap.String("type", string(msg.Type)))
	}
}

// subscribeInbox 订阅邮箱，只允许订阅自己名下的邮箱
func (c *Client) subscribeInbox(inboxID string) {
	if inboxID == "" {
		c.sendError("inbox ID is required")
		return
	}

	inbox, err := c.hub.store.GetInbox(inboxID)
	if err != nil || inbox.UserID != c.UserID {
		c.log.Warn("subscription denied",
			zap.String("clientID", c.ID),
			zap.String("inboxID", inboxID))
		c.sendError("no permission to access inbox: " + inboxID)
		return
	}

	c.mu.Lock()
	c.inboxIDs[inboxID] = true
	c.mu.Unlock()

	c.hub.mu.Lock()
	if c.hub.inboxes[inboxID] == nil {
		c.hub.inboxes[inboxID] = make(map[string]*Client)
	}
	c.hub.inboxes[inboxID][c.ID] = c
	c.hub.mu.Unlock()

	c.sendMessage(&Message{
		Type:      MessageTypeSubscribed,
		InboxID:   inboxID,
		Timestamp: time.Now(),
	})
}

func (c *Client) unsubscribeInbox(inboxID string) {
	c.mu.Lock()
	delete(c.inboxIDs, inboxID)
	c.mu.Unlock()

	c.hub.mu.Lock()
	if clients, exists := c.hub.inboxes[inboxID]; exists {
		delete(clients, c.ID)
		if len(clients) == 0 {
			delete(c.hub.inboxes, inboxID)
		}
	}
	c.hub.mu.Unlock()
}

func (c *Client) sendError(errMsg string) {
	c.sendMessage(&Message{
		Type:      MessageTypeError,
		Error:     errMsg,
		Timestamp: time.Now(),
	})
}

func (c *Client) sendMessage(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	default:
		c.log.Warn("client channel blocked", zap.String("clientID", c.ID))
	}
}
