package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"InfoDash/internal/listing"
	"InfoDash/internal/session"

	"github.com/gorilla/mux"
)

// ListingHandler 帖子与购买流程的处理器
type ListingHandler struct {
	listings *listing.Service
	sessions *session.Service
}

// NewListingHandler 创建帖子处理器实例
func NewListingHandler(listings *listing.Service, sessions *session.Service) *ListingHandler {
	return &ListingHandler{
		listings: listings,
		sessions: sessions,
	}
}

// HandleFeed 信息流分页（帖子 + 插入的广告位）
func (h *ListingHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	feed, err := h.listings.Feed(r.Context(), page, limit)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeData(w, feed)
}

// HandleDetail 帖子详情
func (h *ListingHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	detail, err := h.listings.Detail(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeData(w, detail)
}

// HandlePurchaseGate "支付查看"入口的前置检查
// 返回处置结果（弹窗 / 跳转），由前端执行，服务端不做跳转
func (h *ListingHandler) HandlePurchaseGate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	detail, err := h.listings.Detail(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	gate := listing.PurchaseGate(h.sessions.IsAuthenticated(), detail.PayPasswordSet, detail.Post.IsPurchased)
	writeData(w, gate)
}

// PurchaseRequest 购买请求体
type PurchaseRequest struct {
	PaymentPassword string `json:"paymentPassword"`
	FromPage        string `json:"fromPage,omitempty"`
}

// HandlePurchase 提交购买
func (h *ListingHandler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效请求体")
		return
	}

	outcome := h.listings.SubmitPurchase(r.Context(), id, req.PaymentPassword, req.FromPage)
	writeJSON(w, http.StatusOK, Response{Success: outcome.Success, Message: outcome.Message, Data: outcome})
}

// HandleMyPosts 当前用户发布的帖子
func (h *ListingHandler) HandleMyPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.listings.MyPosts(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeData(w, posts)
}

// HandlePurchased 已购买的帖子
func (h *ListingHandler) HandlePurchased(w http.ResponseWriter, r *http.Request) {
	posts, err := h.listings.Purchased(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeData(w, posts)
}

// HandleSearch 搜索帖子
func (h *ListingHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "搜索关键字不能为空")
		return
	}

	posts, err := h.listings.Search(r.Context(), query)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeData(w, posts)
}

// HandlePayPasswordStatus 支付密码是否已设置
func (h *ListingHandler) HandlePayPasswordStatus(w http.ResponseWriter, r *http.Request) {
	set, err := h.listings.PayPasswordSet(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeData(w, map[string]bool{"hasPayPassword": set})
}

// PayPasswordRequest 设置/修改支付密码请求体
type PayPasswordRequest struct {
	CurrentPassword string `json:"currentPassword,omitempty"`
	Password        string `json:"password"`
}

// HandleSetPayPassword 首次设置支付密码
func (h *ListingHandler) HandleSetPayPassword(w http.ResponseWriter, r *http.Request) {
	var req PayPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效请求体")
		return
	}

	if err := h.listings.SetPayPassword(r.Context(), req.Password); err != nil {
		writePayPasswordError(w, err)
		return
	}
	writeMessage(w, "支付密码设置成功")
}

// HandleModifyPayPassword 修改支付密码
func (h *ListingHandler) HandleModifyPayPassword(w http.ResponseWriter, r *http.Request) {
	var req PayPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效请求体")
		return
	}

	if err := h.listings.ModifyPayPassword(r.Context(), req.CurrentPassword, req.Password); err != nil {
		writePayPasswordError(w, err)
		return
	}
	writeMessage(w, "支付密码修改成功")
}

// HandleVerifyPayPassword 远程校验支付密码
func (h *ListingHandler) HandleVerifyPayPassword(w http.ResponseWriter, r *http.Request) {
	var req PayPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效请求体")
		return
	}

	ok, err := h.listings.VerifyPayPassword(r.Context(), req.Password)
	if err != nil {
		writePayPasswordError(w, err)
		return
	}
	writeData(w, map[string]bool{"valid": ok})
}

// ForgotPayPasswordRequest 找回支付密码请求体
type ForgotPayPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

// HandleForgotPayPassword 通过注册邮箱重置支付密码
func (h *ListingHandler) HandleForgotPayPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPayPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效请求体")
		return
	}

	msg, err := h.listings.ForgotPayPassword(r.Context(), req.Email, req.NewPassword)
	if err != nil {
		writePayPasswordError(w, err)
		return
	}
	writeMessage(w, msg)
}

// writePayPasswordError 本地校验错误按 400 返回，其余走上游错误处理
func writePayPasswordError(w http.ResponseWriter, err error) {
	var validationErr listing.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, validationErr.Error())
		return
	}
	writeUpstreamError(w, err)
}
