package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"InfoDash/internal/chat"
	"InfoDash/internal/session"

	"github.com/gorilla/mux"
)

// 聊天图片上传大小上限
const maxChatImageSize = 10 << 20

// ChatHandler 客服聊天相关的处理器
type ChatHandler struct {
	chats    *chat.Service
	sessions *session.Service
}

// NewChatHandler 创建聊天处理器实例
func NewChatHandler(chats *chat.Service, sessions *session.Service) *ChatHandler {
	return &ChatHandler{
		chats:    chats,
		sessions: sessions,
	}
}

// HandleGetMessages 拉取历史消息
// 进入客服页即视为已读，本地未读数随之清零
func (h *ChatHandler) HandleGetMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.chats.FetchMessages(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	h.sessions.ClearUnreadCount()
	writeData(w, msgs)
}

// SendTextRequest 发送文本消息请求体
type SendTextRequest struct {
	Content string `json:"content"`
}

// HandleSendText 发送文本消息
func (h *ChatHandler) HandleSendText(w http.ResponseWriter, r *http.Request) {
	var req SendTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效请求体")
		return
	}

	msg, err := h.chats.SendText(r.Context(), req.Content)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeUpstreamError(w, err)
		return
	}
	writeData(w, msg)
}

// HandleSendImage 发送图片消息（multipart）
// 发送失败时占位消息已带 sendFailed 标记推给前端，这里返回错误即可
func (h *ChatHandler) HandleSendImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxChatImageSize); err != nil {
		writeError(w, http.StatusBadRequest, "无效的表单数据")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "请选择图片")
		return
	}
	defer file.Close()

	previewURL := r.FormValue("previewUrl")

	msg, err := h.chats.SendImage(r.Context(), header.Filename, previewURL, file)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeData(w, msg)
}

// HandleMarkRead 单条标记已读
func (h *ChatHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.chats.MarkRead(r.Context(), id); err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeMessage(w, "已标记已读")
}

// HandleUnreadCount 查询未读客服消息数
func (h *ChatHandler) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.sessions.RefreshUnreadCount(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeData(w, map[string]int{"unreadCount": count})
}
