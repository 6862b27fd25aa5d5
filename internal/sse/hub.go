package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	log "InfoDash/internal/log"
)

// EventType 推送给本地前端的事件类型
type EventType string

const (
	EventConnected      EventType = "connected"
	EventSessionExpired EventType = "session-expired"
	EventUnreadCount    EventType = "unread-count"
	EventChatMessages   EventType = "chat-messages"
	EventChatPending    EventType = "chat-pending"
	EventAnnouncement   EventType = "announcement"
)

// Event 事件数据
type Event struct {
	Type    EventType   `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Client 已建立的 SSE 连接
type Client struct {
	ID      string
	Writer  http.ResponseWriter
	Flusher http.Flusher
}

// Hub 本地事件推送中心
// 会话层与轮询器把状态变化投到这里，前端通过 /api/sse/global 订阅
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub 创建事件中心
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// AddClient 添加新的SSE客户端
func (h *Hub) AddClient(clientID string, w http.ResponseWriter) {
	flusher, _ := w.(http.Flusher)

	h.mu.Lock()
	h.clients[clientID] = &Client{ID: clientID, Writer: w, Flusher: flusher}
	total := len(h.clients)
	h.mu.Unlock()

	log.Infof("SSE客户端已添加 clientID=%s totalClients=%d", clientID, total)
}

// RemoveClient 移除SSE客户端
func (h *Hub) RemoveClient(clientID string) {
	h.mu.Lock()
	delete(h.clients, clientID)
	remaining := len(h.clients)
	h.mu.Unlock()

	log.Infof("SSE客户端已移除 clientID=%s remaining=%d", clientID, remaining)
}

// Publish 向所有客户端广播事件；单个连接写失败仅记录日志
func (h *Hub) Publish(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Errorf("序列化SSE事件失败: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if _, err := fmt.Fprintf(client.Writer, "data: %s\n\n", payload); err != nil {
			log.Warnf("SSE写入失败 clientID=%s err=%v", client.ID, err)
			continue
		}
		if client.Flusher != nil {
			client.Flusher.Flush()
		}
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
