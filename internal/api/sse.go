package api

import (
	"fmt"
	"net/http"

	log "InfoDash/internal/log"
	"InfoDash/internal/sse"

	"github.com/google/uuid"
)

// SSEHandler SSE处理器
type SSEHandler struct {
	hub *sse.Hub
}

// NewSSEHandler 创建SSE处理器实例
func NewSSEHandler(hub *sse.Hub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

// HandleGlobalSSE 处理全局SSE连接
// 会话失效、未读数变化、聊天消息、系统公告都走这一条流
func (h *SSEHandler) HandleGlobalSSE(w http.ResponseWriter, r *http.Request) {
	// 设置SSE响应头
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	// 生成客户端ID
	clientID := uuid.New().String()

	// 发送连接成功消息
	fmt.Fprintf(w, "data: %s\n\n", `{"type":"connected","message":"连接成功"}`)
	flusher.Flush()

	log.Infof("前端建立全局SSE连接 clientID=%s remote=%s", clientID, r.RemoteAddr)

	// 添加客户端
	h.hub.AddClient(clientID, w)
	defer h.hub.RemoveClient(clientID)

	// 保持连接直到客户端断开
	<-r.Context().Done()

	log.Infof("全局SSE连接关闭 clientID=%s remote=%s", clientID, r.RemoteAddr)
}
