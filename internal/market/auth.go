package market

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"InfoDash/internal/models"
)

// CodeDeviceConflict 账号已在其他设备登录时服务端返回的错误码
const CodeDeviceConflict = "DEVICE_CONFLICT"

// Credentials 登录凭据；ForceLogout 为 true 时强制顶掉其他设备的会话
type Credentials struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	ForceLogout bool   `json:"forceLogout,omitempty"`
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	InviteCode string `json:"inviteCode,omitempty"`
}

// AuthResult 登录/注册成功后的会话材料
type AuthResult struct {
	Token   string
	User    *models.UserSummary
	Message string
}

// IsDeviceConflict 判断错误是否为设备冲突（403 + 专用错误码）
func IsDeviceConflict(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusForbidden && apiErr.Code == CodeDeviceConflict
}

// Login 登录。登录请求豁免会话失效回调，错误原样返回给调用方
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	env, err := c.send(ctx, http.MethodPost, "/auth/login", creds, nil, true)
	if err != nil {
		return nil, err
	}
	return authResultFrom(env)
}

// Register 注册，成功后同样返回会话材料
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	env, err := c.send(ctx, http.MethodPost, "/auth/register", req, nil, true)
	if err != nil {
		return nil, err
	}
	return authResultFrom(env)
}

// authResultFrom 从顶层响应取 token 与 user，两者缺一不可
func authResultFrom(env *envelope) (*AuthResult, error) {
	if env.Token == "" || len(env.User) == 0 {
		return nil, errors.New("登录响应数据不完整")
	}
	var user models.UserSummary
	if err := json.Unmarshal(env.User, &user); err != nil {
		return nil, err
	}
	user.Normalize()
	return &AuthResult{Token: env.Token, User: &user, Message: env.Message}, nil
}

// Logout 服务端登出
func (c *Client) Logout(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodPost, "/auth/logout", struct{}{}, nil)
}

// GetProfile 获取当前用户资料
func (c *Client) GetProfile(ctx context.Context) (*models.UserSummary, error) {
	var user models.UserSummary
	if err := c.getJSON(ctx, "/user/profile", nil, &user); err != nil {
		return nil, err
	}
	user.Normalize()
	return &user, nil
}

// UpdateProfile 更新资料，返回更新后的字段
func (c *Client) UpdateProfile(ctx context.Context, fields map[string]interface{}) (*models.UserSummary, error) {
	var user models.UserSummary
	if err := c.doRequest(ctx, http.MethodPut, "/user/profile", fields, &user); err != nil {
		return nil, err
	}
	user.Normalize()
	return &user, nil
}

// ChangePassword 修改登录密码
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"currentPassword": current, "newPassword": next}
	return c.doRequest(ctx, http.MethodPut, "/user/password", body, nil)
}

// GetInvitedUsers 获取邀请的下级用户列表
func (c *Client) GetInvitedUsers(ctx context.Context) ([]models.InvitedUser, error) {
	var users []models.InvitedUser
	if err := c.getJSON(ctx, "/user/invited-users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CheckPayPassword 查询支付密码是否已设置
func (c *Client) CheckPayPassword(ctx context.Context) (bool, error) {
	var data struct {
		HasPayPassword bool `json:"hasPayPassword"`
	}
	if err := c.getJSON(ctx, "/user/check-pay-password", nil, &data); err != nil {
		return false, err
	}
	return data.HasPayPassword, nil
}

// SetPayPassword 首次设置支付密码
func (c *Client) SetPayPassword(ctx context.Context, password string) error {
	return c.doRequest(ctx, http.MethodPost, "/user/set-pay-password", map[string]string{"payPassword": password}, nil)
}

// ModifyPayPassword 修改支付密码
func (c *Client) ModifyPayPassword(ctx context.Context, current, next string) error {
	body := map[string]string{"currentPayPassword": current, "newPayPassword": next}
	return c.doRequest(ctx, http.MethodPost, "/user/pay-password", body, nil)
}

// VerifyPayPassword 校验支付密码
// 业务拒绝（4xx 或 success=false）按"密码不正确"处理，服务端故障原样报错
func (c *Client) VerifyPayPassword(ctx context.Context, password string) (bool, error) {
	err := c.doRequest(ctx, http.MethodPost, "/user/verify-pay-password", map[string]string{"payPassword": password}, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ForgotPassword 通过注册邮箱发起登录密码重置
// 登出状态下使用，与登录请求一样豁免会话失效回调
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	env, err := c.send(ctx, http.MethodPost, "/user/forgot-password", map[string]string{"email": email}, nil, true)
	if err != nil {
		return "", err
	}
	return messageOr(env.Message, "密码重置链接已发送到您的邮箱"), nil
}

// ForgotPayPassword 通过注册邮箱重置支付密码
func (c *Client) ForgotPayPassword(ctx context.Context, email, newPassword string) (string, error) {
	body := map[string]string{"email": email, "newPayPassword": newPassword}
	env, err := c.send(ctx, http.MethodPost, "/user/forgot-pay-password", body, nil, false)
	if err != nil {
		return "", err
	}
	return messageOr(env.Message, "支付密码重置成功"), nil
}
