package log

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// L 为全局 logger 实例，带时间戳，默认 Info 级别，可通过 INFODASH_LOG_LEVEL 调整
var L = newLogger()

// Fields 类型别名，方便调用方构造字段
// 示例: log.With(log.Fields{"page": 3}).Info("加载列表")
type Fields = map[string]any

// newLogger 初始化 slog.Logger
func newLogger() *slog.Logger {
	// 自定义 TextHandler，使输出格式接近官方文档示例：
	// 2023/08/04 16:09:19 INFO hello, world key=value ...
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				// 时间格式调整为 yyyy/MM/dd HH:mm:ss
				if a.Value.Kind() == slog.KindTime {
					t := a.Value.Time()
					a.Key = ""
					a.Value = slog.StringValue(t.Format("2006/01/02 15:04:05"))
				}
			case slog.LevelKey:
				// 仅输出 INFO/DEBUG 等，不带 key
				a.Key = ""
			case slog.MessageKey:
				// 不改变，保持默认
			}
			return a
		},
	})
	return slog.New(handler)
}

// levelFromEnv 解析日志级别环境变量
func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("INFODASH_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With 基于全局 logger 附加字段
func With(fields Fields) *slog.Logger {
	attrs := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	return L.With(attrs...)
}

// Debugf 调试级别日志
func Debugf(format string, args ...interface{}) {
	L.Debug(fmt.Sprintf(format, args...))
}

// Infof 信息级别日志
func Infof(format string, args ...interface{}) {
	L.Info(fmt.Sprintf(format, args...))
}

// Warnf 警告级别日志
func Warnf(format string, args ...interface{}) {
	L.Warn(fmt.Sprintf(format, args...))
}

// Errorf 错误级别日志
func Errorf(format string, args ...interface{}) {
	L.Error(fmt.Sprintf(format, args...))
}
