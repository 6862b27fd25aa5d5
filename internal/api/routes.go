package api

import (
	"net/http"
	"strings"

	"InfoDash/internal/chat"
	"InfoDash/internal/listing"
	"InfoDash/internal/market"
	"InfoDash/internal/notify"
	"InfoDash/internal/session"
	"InfoDash/internal/sse"
	"InfoDash/internal/storage"
	"InfoDash/internal/wallet"

	"github.com/gorilla/mux"
)

// Router API 路由器
type Router struct {
	router         *mux.Router
	sessions       *session.Service
	authHandler    *AuthHandler
	listingHandler *ListingHandler
	walletHandler  *WalletHandler
	chatHandler    *ChatHandler
	notifyHandler  *NotifyHandler
	sseHandler     *SSEHandler
}

// NewRouter 创建路由器实例
// 会话服务与聊天服务由外部创建后传入复用（主程序还要在上面挂回调），
// 其余服务在此构建
func NewRouter(apiClient *market.Client, store *storage.Store, hub *sse.Hub, sessions *session.Service, chats *chat.Service) *Router {
	// 创建路由器（忽略末尾斜杠差异）
	router := mux.NewRouter()
	router.StrictSlash(true)

	listingService := listing.NewService(apiClient, store)
	walletService := wallet.NewService(apiClient)
	notifyService := notify.NewService(apiClient, store, hub)

	r := &Router{
		router:         router,
		sessions:       sessions,
		authHandler:    NewAuthHandler(sessions, apiClient),
		listingHandler: NewListingHandler(listingService, sessions),
		walletHandler:  NewWalletHandler(walletService),
		chatHandler:    NewChatHandler(chats, sessions),
		notifyHandler:  NewNotifyHandler(notifyService),
		sseHandler:     NewSSEHandler(hub),
	}

	r.registerRoutes()

	// 所有路由统一加 CORS 与登录校验
	r.router.Use(corsMiddleware)
	r.router.Use(r.authGate)

	return r
}

// ServeHTTP 实现 http.Handler 接口
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// registerRoutes 注册所有 API 路由
func (r *Router) registerRoutes() {
	// 认证相关路由
	r.router.HandleFunc("/api/auth/login", r.authHandler.HandleLogin).Methods("POST")
	r.router.HandleFunc("/api/auth/register", r.authHandler.HandleRegister).Methods("POST")
	r.router.HandleFunc("/api/auth/logout", r.authHandler.HandleLogout).Methods("POST")
	r.router.HandleFunc("/api/auth/me", r.authHandler.HandleGetMe).Methods("GET")
	r.router.HandleFunc("/api/auth/remember", r.authHandler.HandleGetRemember).Methods("GET")
	r.router.HandleFunc("/api/auth/remember", r.authHandler.HandleSetRemember).Methods("POST")
	r.router.HandleFunc("/api/auth/forgot-password", r.authHandler.HandleForgotPassword).Methods("POST")

	// 用户资料相关路由
	r.router.HandleFunc("/api/user/profile", r.authHandler.HandleUpdateProfile).Methods("PUT")
	r.router.HandleFunc("/api/user/password", r.authHandler.HandleChangePassword).Methods("PUT")
	r.router.HandleFunc("/api/user/invited", r.authHandler.HandleInvitedUsers).Methods("GET")

	// 支付密码相关路由
	r.router.HandleFunc("/api/pay-password", r.listingHandler.HandlePayPasswordStatus).Methods("GET")
	r.router.HandleFunc("/api/pay-password", r.listingHandler.HandleSetPayPassword).Methods("POST")
	r.router.HandleFunc("/api/pay-password", r.listingHandler.HandleModifyPayPassword).Methods("PUT")
	r.router.HandleFunc("/api/pay-password/verify", r.listingHandler.HandleVerifyPayPassword).Methods("POST")
	r.router.HandleFunc("/api/pay-password/forgot", r.listingHandler.HandleForgotPayPassword).Methods("POST")

	// 帖子相关路由
	r.router.HandleFunc("/api/posts", r.listingHandler.HandleFeed).Methods("GET")
	r.router.HandleFunc("/api/posts/search", r.listingHandler.HandleSearch).Methods("GET")
	r.router.HandleFunc("/api/posts/my", r.listingHandler.HandleMyPosts).Methods("GET")
	r.router.HandleFunc("/api/posts/purchased", r.listingHandler.HandlePurchased).Methods("GET")
	r.router.HandleFunc("/api/posts/{id}", r.listingHandler.HandleDetail).Methods("GET")
	r.router.HandleFunc("/api/posts/{id}/gate", r.listingHandler.HandlePurchaseGate).Methods("GET")
	r.router.HandleFunc("/api/posts/{id}/purchase", r.listingHandler.HandlePurchase).Methods("POST")

	// 钱包相关路由
	r.router.HandleFunc("/api/wallet/balance", r.walletHandler.HandleBalance).Methods("GET")
	r.router.HandleFunc("/api/wallet/transactions", r.walletHandler.HandleTransactions).Methods("GET")
	r.router.HandleFunc("/api/wallet/withdraw", r.walletHandler.HandleWithdraw).Methods("POST")
	r.router.HandleFunc("/api/wallet/recharge-paths", r.walletHandler.HandleRechargePaths).Methods("GET")
	r.router.HandleFunc("/api/wallet/recharge", r.walletHandler.HandleRecharge).Methods("POST")

	// 客服聊天相关路由
	r.router.HandleFunc("/api/chat/messages", r.chatHandler.HandleGetMessages).Methods("GET")
	r.router.HandleFunc("/api/chat/messages", r.chatHandler.HandleSendText).Methods("POST")
	r.router.HandleFunc("/api/chat/images", r.chatHandler.HandleSendImage).Methods("POST")
	r.router.HandleFunc("/api/chat/messages/{id}/read", r.chatHandler.HandleMarkRead).Methods("PUT")
	r.router.HandleFunc("/api/chat/unread-count", r.chatHandler.HandleUnreadCount).Methods("GET")

	// 系统公告相关路由
	r.router.HandleFunc("/api/notifications", r.notifyHandler.HandleAnnouncements).Methods("GET")
	r.router.HandleFunc("/api/notifications/suppress-today", r.notifyHandler.HandleSuppressToday).Methods("POST")

	// SSE 相关路由
	r.router.HandleFunc("/api/sse/global", r.sseHandler.HandleGlobalSSE).Methods("GET")

	// 健康检查
	r.router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok"}`))
	}).Methods("GET")

	// 预检请求需要命中路由才会进入中间件链，这里兜底所有 OPTIONS
	r.router.PathPrefix("/api/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// 无需登录即可访问的路径
var authExemptPaths = map[string]bool{
	"/api/auth/login":           true,
	"/api/auth/register":        true,
	"/api/auth/remember":        true,
	"/api/auth/forgot-password": true,
	"/api/health":               true,
}

// authGate 登录校验中间件；未登录统一返回 401 JSON，不做任何跳转
func (rt *Router) authGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authExemptPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		if !rt.sessions.IsAuthenticated() {
			writeError(w, http.StatusUnauthorized, "未登录")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware 允许跨域请求（开发阶段前端独立端口调试）
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// 如果带 Origin 头，则回显；否则允许所有
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Credentials", "true")
		// 回显浏览器预检要求的 Headers，如果没有则给常用默认值
		reqHeaders := r.Header.Get("Access-Control-Request-Headers")
		if reqHeaders == "" {
			reqHeaders = "Content-Type, Authorization"
		}
		w.Header().Set("Access-Control-Allow-Headers", reqHeaders)

		// 同理回显预检方法，或允许常见方法
		reqMethod := r.Header.Get("Access-Control-Request-Method")
		if reqMethod == "" {
			reqMethod = "GET, POST, PUT, PATCH, DELETE"
		}
		w.Header().Set("Access-Control-Allow-Methods", reqMethod)

		// 预检结果缓存 12 小时，减少重复 OPTIONS
		w.Header().Set("Access-Control-Max-Age", "43200")

		// 预检请求直接返回
		if strings.ToUpper(r.Method) == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
