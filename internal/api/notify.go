package api

import (
	"net/http"

	"InfoDash/internal/notify"
)

// NotifyHandler 系统公告相关的处理器
type NotifyHandler struct {
	notifies *notify.Service
}

// NewNotifyHandler 创建公告处理器实例
func NewNotifyHandler(notifies *notify.Service) *NotifyHandler {
	return &NotifyHandler{notifies: notifies}
}

// HandleAnnouncements 获取待弹出的系统公告；今日免打扰时返回空列表
func (h *NotifyHandler) HandleAnnouncements(w http.ResponseWriter, r *http.Request) {
	list, err := h.notifies.AnnouncementsForToday(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeData(w, list)
}

// HandleSuppressToday 记录"今日不再提示"
func (h *NotifyHandler) HandleSuppressToday(w http.ResponseWriter, r *http.Request) {
	if err := h.notifies.SuppressToday(); err != nil {
		writeError(w, http.StatusInternalServerError, "保存失败")
		return
	}
	writeMessage(w, "今日将不再提示")
}
