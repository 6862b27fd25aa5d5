package listing

import (
	"fmt"
	"strings"
	"time"
)

// 完整内容里的手机号键名，展示前局部打码
const contentKeyPhone = "手机"

// 过期标记，倒计时归零后展示（内容不隐藏，过期仅为展示层状态）
const ExpiredLabel = "已过期"

// ParseContent 解析帖子完整内容
// 存储格式为逐行的 "键: 值"，解析失败的行直接跳过
func ParseContent(content string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		if key == contentKeyPhone && len(value) == 11 {
			value = maskPhone(value)
		}
		fields[key] = value
	}
	return fields
}

// maskPhone 手机号打码：保留前 3 位与后 4 位
// 只改展示值，服务端存储不受影响
func maskPhone(v string) string {
	return v[:3] + "******" + v[len(v)-4:]
}

// Countdown 计算剩余有效期
// 截止时间 = 购买时间 + 周期天数；到期或已过期返回 ExpiredLabel，不出现负数
func Countdown(purchaseTime time.Time, periodDays int, now time.Time) string {
	if purchaseTime.IsZero() || periodDays <= 0 {
		return ""
	}

	expiry := purchaseTime.Add(time.Duration(periodDays) * 24 * time.Hour)
	diff := expiry.Sub(now)
	if diff <= 0 {
		return ExpiredLabel
	}

	days := int(diff / (24 * time.Hour))
	diff -= time.Duration(days) * 24 * time.Hour
	hours := int(diff / time.Hour)
	diff -= time.Duration(hours) * time.Hour
	minutes := int(diff / time.Minute)
	diff -= time.Duration(minutes) * time.Minute
	seconds := int(diff / time.Second)

	return fmt.Sprintf("%d天%d小时%d分%d秒", days, hours, minutes, seconds)
}
