package api

import (
	"encoding/json"
	"net/http"

	"InfoDash/internal/market"
	"InfoDash/internal/session"
)

// AuthHandler 认证相关的处理器
type AuthHandler struct {
	sessions *session.Service
	api      *market.Client
}

// NewAuthHandler 创建认证处理器实例
func NewAuthHandler(sessions *session.Service, api *market.Client) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		api:      api,
	}
}

// LoginRequest 登录请求体
type LoginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	ForceLogout bool   `json:"forceLogout,omitempty"`
	Remember    bool   `json:"remember,omitempty"`
}

// LoginResponse 登录响应体
type LoginResponse struct {
	Success        bool        `json:"success"`
	Message        string      `json:"message,omitempty"`
	Code           string      `json:"code,omitempty"`
	DeviceConflict bool        `json:"deviceConflict,omitempty"`
	User           interface{} `json:"user,omitempty"`
}

// HandleLogin 处理登录请求
// 设备冲突返回 403 + DEVICE_CONFLICT，前端据此弹出"强制登录"确认框
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效请求体")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, LoginResponse{
			Success: false,
			Message: "用户名和密码不能为空",
		})
		return
	}

	if err := h.sessions.Login(r.Context(), req.Username, req.Password, req.ForceLogout); err != nil {
		if h.sessions.DeviceConflict() {
			writeJSON(w, http.StatusForbidden, LoginResponse{
				Success:        false,
				Message:        "该账号已在其他设备登录",
				Code:           market.CodeDeviceConflict,
				DeviceConflict: true,
			})
			return
		}
		msg := "登录失败"
		if authErr := h.sessions.AuthErr(); authErr != nil {
			msg = authErr.Message
		}
		writeJSON(w, http.StatusUnauthorized, LoginResponse{Success: false, Message: msg})
		return
	}

	// 登录成功后才落地"记住用户名"偏好
	h.sessions.SetRemember(req.Remember, req.Username)

	writeJSON(w, http.StatusOK, LoginResponse{
		Success: true,
		Message: "登录成功",
		User:    h.sessions.User(),
	})
}

// HandleRegister 处理注册请求
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req market.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效请求体")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "用户名和密码不能为空")
		return
	}

	result := h.sessions.Register(r.Context(), req)
	if !result.Success {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Message: result.Error})
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "注册成功",
		Data:    h.sessions.User(),
	})
}

// HandleLogout 处理登出请求，重复调用安全
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context())
	writeMessage(w, "登出成功")
}

// HandleGetMe 获取当前登录用户信息
func (h *AuthHandler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	user := h.sessions.User()
	if user == nil {
		writeError(w, http.StatusUnauthorized, "未登录")
		return
	}
	writeData(w, map[string]interface{}{
		"user":        user,
		"unreadCount": h.sessions.UnreadCount(),
	})
}

// ForgotPasswordRequest 找回登录密码请求体
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// HandleForgotPassword 发送登录密码重置邮件，登出状态可用
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效请求体")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "请输入注册邮箱")
		return
	}

	msg, err := h.api.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeMessage(w, msg)
}

// HandleGetRemember 读取记住的用户名
func (h *AuthHandler) HandleGetRemember(w http.ResponseWriter, r *http.Request) {
	remembered, username := h.sessions.Remembered()
	writeData(w, map[string]interface{}{
		"remembered": remembered,
		"username":   username,
	})
}

// RememberRequest 记住用户名开关请求体
type RememberRequest struct {
	Remember bool   `json:"remember"`
	Username string `json:"username,omitempty"`
}

// HandleSetRemember 设置记住用户名开关
func (h *AuthHandler) HandleSetRemember(w http.ResponseWriter, r *http.Request) {
	var req RememberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效请求体")
		return
	}
	h.sessions.SetRemember(req.Remember, req.Username)
	writeMessage(w, "已更新")
}

// HandleUpdateProfile 更新用户资料
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var fields map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "无效请求体")
		return
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "缺少字段")
		return
	}

	ok, msg := h.sessions.UpdateUserProfile(r.Context(), fields)
	if !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: msg, Data: h.sessions.User()})
}

// PasswordChangeRequest 修改登录密码请求体
type PasswordChangeRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// HandleChangePassword 修改登录密码
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效请求体")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "缺少字段")
		return
	}

	if err := h.api.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeMessage(w, "密码修改成功")
}

// HandleInvitedUsers 获取邀请的下级用户列表
func (h *AuthHandler) HandleInvitedUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.api.GetInvitedUsers(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeData(w, users)
}
