package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"InfoDash/internal/market"
	"InfoDash/internal/models"
	"InfoDash/internal/sse"
)

// fixedUser 测试用用户源
type fixedUser struct {
	user *models.UserSummary
}

func (f *fixedUser) User() *models.UserSummary { return f.user }

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client := market.NewClient(ts.URL, nil, market.Options{})
	users := &fixedUser{user: &models.UserSummary{ID: "u1", Username: "alice"}}
	return NewService(client, sse.NewHub(), users)
}

// 每次拉取前先批量标记已读
func TestFetchMarksAllReadFirst(t *testing.T) {
	var mu sync.Mutex
	var order []string

	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		order = append(order, r.Method+" "+r.URL.Path)
		mu.Unlock()

		switch {
		case r.URL.Path == "/customer-service/messages/read-all":
			w.Write([]byte(`{"success":true}`))
		case strings.HasPrefix(r.URL.Path, "/customer-service/messages/"):
			w.Write([]byte(`{"success":true,"data":[{"_id":"m1","senderType":"admin","content":"你好"}]}`))
		default:
			t.Errorf("未预期的请求: %s %s", r.Method, r.URL.Path)
		}
	}))

	msgs, err := svc.FetchMessages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("消息数 = %d", len(msgs))
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 {
		t.Fatalf("请求数 = %d: %v", len(order), order)
	}
	if order[0] != "PUT /customer-service/messages/read-all" {
		t.Errorf("第一个请求应为批量已读, got %s", order[0])
	}
	if order[1] != "GET /customer-service/messages/u1" {
		t.Errorf("第二个请求应为拉取消息, got %s", order[1])
	}
}

// 批量已读失败只降级，不影响消息拉取
func TestFetchToleratesMarkAllFailure(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/customer-service/messages/read-all" {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"success":false}`))
			return
		}
		w.Write([]byte(`{"success":true,"data":[{"_id":"m1","senderType":"admin"}]}`))
	}))

	msgs, err := svc.FetchMessages(context.Background())
	if err != nil {
		t.Fatalf("批量已读失败不应阻塞拉取: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("消息数 = %d", len(msgs))
	}
}

// isOwn 在入口处归一化：user 类型或发送者为本人
func TestFetchAnnotatesIsOwn(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/customer-service/messages/read-all" {
			w.Write([]byte(`{"success":true}`))
			return
		}
		w.Write([]byte(`{"success":true,"data":[
			{"_id":"m1","senderType":"user","senderId":"u1"},
			{"_id":"m2","senderType":"admin","senderId":"u1"},
			{"_id":"m3","senderType":"admin","senderId":"cs-1"}
		]}`))
	}))

	msgs, err := svc.FetchMessages(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	wants := []bool{true, true, false}
	for i, want := range wants {
		if msgs[i].IsOwn != want {
			t.Errorf("消息 %s 的 isOwn = %v, 期望 %v", msgs[i].ID, msgs[i].IsOwn, want)
		}
	}
}

func TestFetchSkipsWhenUserMissing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("无用户时不应请求上游: %s", r.URL.Path)
	}))
	t.Cleanup(ts.Close)

	client := market.NewClient(ts.URL, nil, market.Options{})
	svc := NewService(client, sse.NewHub(), &fixedUser{})

	msgs, err := svc.FetchMessages(context.Background())
	if err != nil || msgs != nil {
		t.Errorf("无用户时应安静跳过, got %v, %v", msgs, err)
	}
}

func TestSendTextRejectsEmpty(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("空消息不应请求上游: %s", r.URL.Path)
	}))

	if _, err := svc.SendText(context.Background(), "   "); err != ErrEmptyMessage {
		t.Errorf("err = %v, 期望 ErrEmptyMessage", err)
	}
}

func TestSendTextAppendsOwnMessage(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"_id":"m9","senderType":"user","senderId":"u1","content":"在吗"}}`))
	}))

	msg, err := svc.SendText(context.Background(), "在吗")
	if err != nil {
		t.Fatal(err)
	}
	if !msg.IsOwn {
		t.Error("发出的消息应标记为本人")
	}

	snapshot := svc.Messages()
	if len(snapshot) != 1 || snapshot[0].ID != "m9" {
		t.Errorf("快照 = %+v", snapshot)
	}
}

// 图片上传失败时，占位消息标记为发送失败而不是消失
func TestSendImageFailureMarksPlaceholder(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/info/upload/image" {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"success":false,"message":"上传失败"}`))
			return
		}
		t.Errorf("上传失败后不应再发消息: %s", r.URL.Path)
	}))

	_, err := svc.SendImage(context.Background(), "photo.png", "blob:preview", strings.NewReader("img-bytes"))
	if err == nil {
		t.Fatal("上传失败应返回错误")
	}

	snapshot := svc.Messages()
	if len(snapshot) != 1 {
		t.Fatalf("快照消息数 = %d", len(snapshot))
	}
	placeholder := snapshot[0]
	if placeholder.TempID == "" {
		t.Error("占位消息应带临时ID")
	}
	if placeholder.Pending {
		t.Error("失败后不应再处于发送中状态")
	}
	if !placeholder.SendFailed {
		t.Error("失败的占位消息应标记 sendFailed")
	}
	if placeholder.ImageURL != "blob:preview" {
		t.Errorf("占位消息应保留本地预览, got %q", placeholder.ImageURL)
	}
}

// 发送成功时占位被服务端消息原位替换
func TestSendImageReplacesPlaceholder(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info/upload/image":
			w.Write([]byte(`{"success":true,"data":{"url":"/uploads/photo.png"}}`))
		case "/customer-service/messages":
			w.Write([]byte(`{"success":true,"data":{"_id":"m10","senderType":"user","senderId":"u1","messageType":"image","imageUrl":"/uploads/photo.png"}}`))
		default:
			t.Errorf("未预期的请求: %s", r.URL.Path)
		}
	}))

	msg, err := svc.SendImage(context.Background(), "photo.png", "blob:preview", strings.NewReader("img-bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "m10" || !msg.IsOwn {
		t.Errorf("服务端消息 = %+v", msg)
	}

	snapshot := svc.Messages()
	if len(snapshot) != 1 {
		t.Fatalf("快照消息数 = %d, 占位应被替换而非追加", len(snapshot))
	}
	if snapshot[0].ID != "m10" || snapshot[0].TempID != "" {
		t.Errorf("快照 = %+v", snapshot[0])
	}
}

// 会话结束后停止轮询并清空快照
func TestStopPollingClearsSnapshot(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/customer-service/messages/read-all" {
			w.Write([]byte(`{"success":true}`))
			return
		}
		w.Write([]byte(`{"success":true,"data":[{"_id":"m1","senderType":"admin"}]}`))
	}))

	if _, err := svc.FetchMessages(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(svc.Messages()) != 1 {
		t.Fatal("拉取后快照应有消息")
	}

	svc.StartPolling()
	svc.StopPolling()

	if len(svc.Messages()) != 0 {
		t.Error("停止轮询后快照应清空")
	}
}
