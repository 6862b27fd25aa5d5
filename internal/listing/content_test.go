package listing

import (
	"testing"
	"time"
)

func TestParseContentMasksPhone(t *testing.T) {
	fields := ParseContent("手机: 13812345678\n年龄: 30")

	if got := fields["手机"]; got != "138******5678" {
		t.Errorf("手机号打码结果 = %q, 期望 %q", got, "138******5678")
	}
	if got := fields["年龄"]; got != "30" {
		t.Errorf("年龄 = %q, 期望 %q", got, "30")
	}
}

func TestParseContentSkipsMalformedLines(t *testing.T) {
	fields := ParseContent("姓名: 张三\n无冒号行\n: 空键\n空值:\n\n地址: 北京")

	if len(fields) != 2 {
		t.Fatalf("解析出 %d 个字段, 期望 2 个: %v", len(fields), fields)
	}
	if fields["姓名"] != "张三" || fields["地址"] != "北京" {
		t.Errorf("字段解析错误: %v", fields)
	}
}

func TestParseContentShortPhoneNotMasked(t *testing.T) {
	fields := ParseContent("手机: 12345")
	if got := fields["手机"]; got != "12345" {
		t.Errorf("非 11 位手机号不应打码, got %q", got)
	}
}

func TestCountdown(t *testing.T) {
	purchase := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		period int
		now    time.Time
		want   string
	}{
		{"未过期", 3, purchase.Add(24*time.Hour + 2*time.Hour + 3*time.Minute + 4*time.Second), "1天21小时56分56秒"},
		{"恰好到期", 3, purchase.Add(3 * 24 * time.Hour), ExpiredLabel},
		{"已过期", 1, purchase.Add(10 * 24 * time.Hour), ExpiredLabel},
		{"周期为零", 0, purchase, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Countdown(purchase, tt.period, tt.now); got != tt.want {
				t.Errorf("Countdown() = %q, 期望 %q", got, tt.want)
			}
		})
	}
}

func TestCountdownZeroPurchaseTime(t *testing.T) {
	if got := Countdown(time.Time{}, 3, time.Now()); got != "" {
		t.Errorf("无购买时间应返回空串, got %q", got)
	}
}
