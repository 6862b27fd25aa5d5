package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"InfoDash/internal/api"
	"InfoDash/internal/chat"
	"InfoDash/internal/config"
	log "InfoDash/internal/log"
	"InfoDash/internal/market"
	"InfoDash/internal/server"
	"InfoDash/internal/session"
	"InfoDash/internal/sse"
	"InfoDash/internal/storage"

	_ "github.com/mattn/go-sqlite3"
)

// Version 会在构建时通过 -ldflags "-X main.Version=xxx" 注入
var Version = "dev"

func main() {
	// 命令行参数处理
	portFlag := flag.String("port", "", "HTTP 服务端口 (优先级高于环境变量 PORT)，默认 3000")
	apiBaseFlag := flag.String("api-base", "", "上游行情 API 地址 (优先级高于环境变量 INFODASH_API_BASE)")
	clearSessionCmd := flag.Bool("clear-session", false, "清除本地会话后退出")
	flag.Parse()

	cfg := config.Load(*apiBaseFlag)

	// 打开本地状态库
	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Errorf("打开本地状态库失败: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	// 如果指定了 --clear-session，清掉本地会话后退出
	if *clearSessionCmd {
		if err := store.ClearSession(); err != nil {
			log.Errorf("清除会话失败: %v", err)
			os.Exit(1)
		}
		log.Infof("本地会话已清除")
		return
	}

	// 上游客户端，令牌每次请求时从本地状态库实时读取
	apiClient := market.NewClient(cfg.APIBase, store, market.Options{
		Timeout:       cfg.Timeout,
		UploadTimeout: cfg.UploadTimeout,
		RetryCount:    cfg.RetryCount,
		RetryDelay:    cfg.RetryDelay,
	})

	// 事件中心需先于各服务创建
	hub := sse.NewHub()

	// 会话服务启动时会从本地状态库恢复会话
	sessions := session.NewService(apiClient, store, hub)

	// 上游返回 401/403/429 时由会话服务统一下线并广播
	apiClient.OnSessionInvalid(sessions.HandleSessionInvalid)

	// 聊天轮询跟随会话活跃状态启停
	chats := chat.NewService(apiClient, hub, sessions)
	sessions.OnChange(func(active bool) {
		if active {
			chats.StartPolling()
		} else {
			chats.StopPolling()
		}
	})
	if sessions.IsAuthenticated() {
		chats.StartPolling()
	}

	// 创建API路由器 (仅处理 /api/*)
	apiRouter := api.NewRouter(apiClient, store, hub, sessions, chats)

	// 顶层路由器，同时处理 API 和静态资源
	srv := server.New(apiRouter, "dist")

	// 读取端口：命令行 > 环境变量 > 默认值
	port := "3000"
	if env := os.Getenv("PORT"); env != "" {
		port = env
	}
	if *portFlag != "" {
		port = *portFlag
	}
	addr := fmt.Sprintf(":%s", port)

	// 创建HTTP服务器
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Handler(),
	}

	// 启动HTTP服务器
	go func() {
		log.Infof("InfoDash[%s]启动在 http://localhost:%s，上游 %s", Version, port, cfg.APIBase)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Errorf("HTTP服务器错误: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// 关闭服务
	log.Infof("正在关闭服务器...")

	chats.StopPolling()

	// 优雅关闭HTTP服务器
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("服务器关闭错误: %v", err)
	}

	log.Infof("服务器已关闭")
}
