package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	log "InfoDash/internal/log"
	"InfoDash/internal/market"
	"InfoDash/internal/models"
	"InfoDash/internal/sse"
	"InfoDash/internal/storage"

	"github.com/golang-jwt/jwt/v5"
)

// 未读数轮询间隔
const unreadPollInterval = 60 * time.Second

// AuthError 面向登录界面的认证错误
type AuthError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// RegisterResult 注册结果；注册失败不进入错误状态，而是结构化返回
type RegisterResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Service 会话服务，"当前登录用户"的唯一事实来源
// 启动时从本地存储同步恢复会话；登录期间每 60 秒轮询一次客服未读数
type Service struct {
	api   *market.Client
	store *storage.Store
	hub   *sse.Hub

	mu             sync.RWMutex
	user           *models.UserSummary
	authenticated  bool
	unreadCount    int
	authErr        *AuthError
	deviceConflict bool

	pollInterval time.Duration
	pollCancel   context.CancelFunc

	onChange []func(active bool)
}

// NewService 创建会话服务并从本地存储恢复会话
func NewService(api *market.Client, store *storage.Store, hub *sse.Hub) *Service {
	s := &Service{
		api:          api,
		store:        store,
		hub:          hub,
		pollInterval: unreadPollInterval,
	}
	s.restore()
	return s
}

// restore 进程启动时同步恢复会话；令牌或用户缺失则保持未登录
func (s *Service) restore() {
	token := s.store.Token()
	if token == "" {
		return
	}
	user, err := s.store.User()
	if err != nil || user == nil {
		return
	}
	if !tokenUsable(token) {
		log.Warnf("本地令牌已失效，保持未登录状态")
		return
	}

	s.mu.Lock()
	s.user = user
	s.authenticated = true
	s.mu.Unlock()

	log.Infof("会话已恢复 username=%s", user.Username)
	s.startPolling()
}

// tokenUsable 令牌格式检查：JWT 校验 exp（不验签），其他令牌只看长度
func tokenUsable(token string) bool {
	if strings.Count(token, ".") == 2 {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return false
		}
		exp, err := claims.GetExpirationTime()
		if err != nil || exp == nil {
			// 无过期时间的 JWT 按有效处理
			return true
		}
		return exp.After(time.Now())
	}
	return len(token) >= 16
}

// Login 登录。设备冲突与普通认证错误互斥：进入其中一种状态会清掉另一种
func (s *Service) Login(ctx context.Context, username, password string, forceLogout bool) error {
	s.mu.Lock()
	s.authErr = nil
	s.deviceConflict = false
	s.mu.Unlock()

	result, err := s.api.Login(ctx, market.Credentials{
		Username:    username,
		Password:    password,
		ForceLogout: forceLogout,
	})
	if err != nil {
		s.mu.Lock()
		if market.IsDeviceConflict(err) {
			s.deviceConflict = true
			s.authErr = nil
		} else {
			s.deviceConflict = false
			s.authErr = authErrorFrom(err)
		}
		s.mu.Unlock()
		log.Warnf("登录失败 username=%s err=%v", username, err)
		return err
	}

	if err := s.store.SaveSession(result.Token, result.User); err != nil {
		return err
	}

	s.mu.Lock()
	s.user = result.User
	s.authenticated = true
	s.authErr = nil
	s.deviceConflict = false
	s.mu.Unlock()

	// 未读数获取失败不影响登录结果
	if count, err := s.api.GetUnreadCount(ctx); err != nil {
		log.Warnf("获取未读消息数失败: %v", err)
	} else {
		s.setUnreadCount(count)
	}

	log.Infof("登录成功 username=%s", result.User.Username)
	s.startPolling()
	s.notify(true)
	return nil
}

// Register 注册。失败返回结构化结果而非进入错误状态（与 Login 的约定不同）
func (s *Service) Register(ctx context.Context, req market.RegisterRequest) RegisterResult {
	result, err := s.api.Register(ctx, req)
	if err != nil {
		log.Warnf("注册失败 username=%s err=%v", req.Username, err)
		_ = s.store.ClearSession()
		s.mu.Lock()
		s.user = nil
		s.authenticated = false
		s.mu.Unlock()
		return RegisterResult{Success: false, Error: messageFrom(err)}
	}

	if err := s.store.SaveSession(result.Token, result.User); err != nil {
		return RegisterResult{Success: false, Error: err.Error()}
	}

	s.mu.Lock()
	s.user = result.User
	s.authenticated = true
	s.mu.Unlock()

	log.Infof("注册成功 username=%s", result.User.Username)
	s.startPolling()
	s.notify(true)
	return RegisterResult{Success: true}
}

// Logout 登出。服务端登出尽力而为，本地状态无条件清空，重复调用安全
func (s *Service) Logout(ctx context.Context) {
	if s.IsAuthenticated() {
		if err := s.api.Logout(ctx); err != nil {
			log.Warnf("服务端登出失败: %v", err)
		}
	}

	if err := s.store.ClearSession(); err != nil {
		log.Errorf("清除本地会话失败: %v", err)
	}
	s.store.ClearTempPassword()

	s.mu.Lock()
	s.user = nil
	s.authenticated = false
	s.unreadCount = 0
	s.authErr = nil
	s.deviceConflict = false
	s.mu.Unlock()

	s.stopPolling()
	s.notify(false)
}

// HandleSessionInvalid 传输层上报 401/403/429 后强制下线
// 只清本地状态并广播 session-expired，由前端决定跳转
func (s *Service) HandleSessionInvalid(status int) {
	log.Warnf("会话失效(HTTP %d)，强制下线", status)

	if err := s.store.ClearSession(); err != nil {
		log.Errorf("清除本地会话失败: %v", err)
	}

	s.mu.Lock()
	s.user = nil
	s.authenticated = false
	s.unreadCount = 0
	s.mu.Unlock()

	s.stopPolling()
	if s.hub != nil {
		s.hub.Publish(sse.Event{Type: sse.EventSessionExpired, Message: "登录已过期，请重新登录"})
	}
	s.notify(false)
}

// UpdateUser 规范化并合并用户信息，重新持久化
func (s *Service) UpdateUser(user *models.UserSummary) {
	if user == nil {
		return
	}
	user.Normalize()

	s.mu.Lock()
	s.user = user
	token := s.store.Token()
	s.mu.Unlock()

	if err := s.store.SaveSession(token, user); err != nil {
		log.Errorf("持久化用户信息失败: %v", err)
	}
}

// UpdateUserProfile 更新服务端资料并合并到本地
func (s *Service) UpdateUserProfile(ctx context.Context, fields map[string]interface{}) (bool, string) {
	updated, err := s.api.UpdateProfile(ctx, fields)
	if err != nil {
		log.Warnf("更新资料失败: %v", err)
		return false, messageFrom(err)
	}

	s.mu.RLock()
	current := s.user
	s.mu.RUnlock()

	merged := mergeUser(current, updated)
	s.UpdateUser(merged)
	return true, "资料已更新"
}

// mergeUser 服务端只回部分字段时保留本地已有字段
func mergeUser(current, updated *models.UserSummary) *models.UserSummary {
	if current == nil {
		return updated
	}
	out := *current
	if updated.ID != "" {
		out.ID = updated.ID
		out.LegacyID = updated.LegacyID
	}
	if updated.Username != "" {
		out.Username = updated.Username
	}
	if updated.Role != "" {
		out.Role = updated.Role
	}
	if updated.Phone != "" {
		out.Phone = updated.Phone
	}
	if updated.Email != "" {
		out.Email = updated.Email
	}
	if updated.Avatar != "" {
		out.Avatar = updated.Avatar
	}
	if updated.InviteCode != "" {
		out.InviteCode = updated.InviteCode
	}
	return &out
}

// startPolling 启动未读数轮询；已在轮询则不重复启动
func (s *Service) startPolling() {
	s.mu.Lock()
	if s.pollCancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.pollCancel = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !s.IsAuthenticated() {
					continue
				}
				count, err := s.api.GetUnreadCount(ctx)
				if err != nil {
					log.Warnf("轮询未读消息数失败: %v", err)
					continue
				}
				s.setUnreadCount(count)
			}
		}
	}()
}

// stopPolling 停止未读数轮询
func (s *Service) stopPolling() {
	s.mu.Lock()
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
	s.mu.Unlock()
}

// setUnreadCount 更新未读数并推送到前端
func (s *Service) setUnreadCount(count int) {
	s.mu.Lock()
	changed := s.unreadCount != count
	s.unreadCount = count
	s.mu.Unlock()

	if changed && s.hub != nil {
		s.hub.Publish(sse.Event{
			Type: sse.EventUnreadCount,
			Data: map[string]int{"unreadCount": count},
		})
	}
}

// RefreshUnreadCount 立即刷新未读数
func (s *Service) RefreshUnreadCount(ctx context.Context) (int, error) {
	count, err := s.api.GetUnreadCount(ctx)
	if err != nil {
		return 0, err
	}
	s.setUnreadCount(count)
	return count, nil
}

// ClearUnreadCount 进入客服页后清零本地未读数
func (s *Service) ClearUnreadCount() {
	s.setUnreadCount(0)
}

// User 当前用户快照
func (s *Service) User() *models.UserSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated 是否已登录
func (s *Service) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// UnreadCount 当前未读数
func (s *Service) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unreadCount
}

// AuthErr 当前认证错误，无则为 nil
func (s *Service) AuthErr() *AuthError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authErr
}

// DeviceConflict 是否处于设备冲突待确认状态
func (s *Service) DeviceConflict() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceConflict
}

// ClearAuthErr 清除认证错误
func (s *Service) ClearAuthErr() {
	s.mu.Lock()
	s.authErr = nil
	s.mu.Unlock()
}

// ClearDeviceConflict 用户取消强制登录后清除冲突状态
func (s *Service) ClearDeviceConflict() {
	s.mu.Lock()
	s.deviceConflict = false
	s.mu.Unlock()
}

// SetRemember 记住用户名开关
func (s *Service) SetRemember(remember bool, username string) {
	if remember {
		_ = s.store.Set(storage.KeyRememberMe, "true")
		_ = s.store.Set(storage.KeyRememberedUsername, username)
		return
	}
	_ = s.store.Delete(storage.KeyRememberMe)
	_ = s.store.Delete(storage.KeyRememberedUsername)
}

// Remembered 读取记住的用户名
func (s *Service) Remembered() (bool, string) {
	v, err := s.store.Get(storage.KeyRememberMe)
	if err != nil || v != "true" {
		return false, ""
	}
	name, _ := s.store.Get(storage.KeyRememberedUsername)
	return true, name
}

// OnChange 注册会话活跃状态变化回调（如启停聊天轮询）
func (s *Service) OnChange(fn func(active bool)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// notify 在锁外回调，避免回调里再进会话服务时死锁
func (s *Service) notify(active bool) {
	s.mu.RLock()
	fns := make([]func(bool), len(s.onChange))
	copy(fns, s.onChange)
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(active)
	}
}

// authErrorFrom 提取服务端错误信息
func authErrorFrom(err error) *AuthError {
	var apiErr *market.APIError
	if errors.As(err, &apiErr) {
		return &AuthError{Message: apiErr.Message, Code: apiErr.Code}
	}
	return &AuthError{Message: messageFrom(err)}
}

func messageFrom(err error) string {
	var apiErr *market.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return "未知错误"
}
