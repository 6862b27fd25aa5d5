package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 默认值：历史上存在三份互相矛盾的环境配置，这里统一成
// 显式参数 > 环境变量 > .env > 本地默认 的解析顺序
const (
	DefaultAPIBase = "http://localhost:8080"

	defaultTimeout       = 15 * time.Second
	defaultUploadTimeout = 60 * time.Second
	defaultRetryCount    = 3
	defaultRetryDelay    = 500 * time.Millisecond
)

// Config 运行时配置
type Config struct {
	// APIBase 上游行情 API 地址
	APIBase string

	// Network 上游请求的网络参数；Retry 仅作用于幂等 GET 请求
	Timeout       time.Duration
	UploadTimeout time.Duration
	RetryCount    int
	RetryDelay    time.Duration

	// DBPath 本地 SQLite 文件路径
	DBPath string
}

// Load 读取配置。apiBaseOverride 来自命令行参数，优先级最高
func Load(apiBaseOverride string) Config {
	// .env 不存在时静默忽略
	_ = godotenv.Load()

	cfg := Config{
		APIBase:       DefaultAPIBase,
		Timeout:       defaultTimeout,
		UploadTimeout: defaultUploadTimeout,
		RetryCount:    defaultRetryCount,
		RetryDelay:    defaultRetryDelay,
		DBPath:        fallback(os.Getenv("INFODASH_DB"), "file:public/sqlite.db?_journal_mode=WAL&_busy_timeout=5000&_fk=1"),
	}

	if env := strings.TrimSpace(os.Getenv("INFODASH_API_BASE")); env != "" {
		cfg.APIBase = env
	}
	if apiBaseOverride != "" {
		cfg.APIBase = apiBaseOverride
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")

	if v, err := strconv.Atoi(os.Getenv("INFODASH_RETRY_COUNT")); err == nil && v >= 0 {
		cfg.RetryCount = v
	}
	if v, err := strconv.Atoi(os.Getenv("INFODASH_RETRY_DELAY_MS")); err == nil && v > 0 {
		cfg.RetryDelay = time.Duration(v) * time.Millisecond
	}
	if v, err := strconv.Atoi(os.Getenv("INFODASH_TIMEOUT_MS")); err == nil && v > 0 {
		cfg.Timeout = time.Duration(v) * time.Millisecond
	}

	return cfg
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}
