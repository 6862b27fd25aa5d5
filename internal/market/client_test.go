package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// staticTokens 测试用令牌源，可随时改值模拟本地状态变化
type staticTokens struct {
	token atomic.Value
}

func (s *staticTokens) Token() string {
	if v := s.token.Load(); v != nil {
		return v.(string)
	}
	return ""
}

func (s *staticTokens) set(t string) { s.token.Store(t) }

func TestAuthorizeReadsTokenFresh(t *testing.T) {
	var got []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		w.Write([]byte(`{"success":true,"data":{}}`))
	}))
	defer ts.Close()

	tokens := &staticTokens{}
	client := NewClient(ts.URL, tokens, Options{})

	// 无令牌时不带认证头
	if err := client.doRequest(context.Background(), http.MethodGet, "/a", nil, nil); err != nil {
		t.Fatal(err)
	}
	// 令牌变更后下一次请求立刻生效
	tokens.set("tok-1")
	if err := client.doRequest(context.Background(), http.MethodGet, "/b", nil, nil); err != nil {
		t.Fatal(err)
	}

	if got[0] != "" {
		t.Errorf("无令牌时认证头 = %q, 应为空", got[0])
	}
	if got[1] != "Bearer tok-1" {
		t.Errorf("认证头 = %q, 期望 Bearer tok-1", got[1])
	}
}

func TestEnvelopeUnwrap(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"balance":88.5}}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, nil, Options{})
	balance, err := client.GetBalance(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if balance != 88.5 {
		t.Errorf("balance = %v, 期望 88.5", balance)
	}
}

func TestBusinessFailureBecomesError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"操作被拒绝"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, nil, Options{})
	err := client.doRequest(context.Background(), http.MethodPost, "/x", struct{}{}, nil)
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("期望 *APIError, got %T %v", err, err)
	}
	if apiErr.Message != "操作被拒绝" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestSessionInvalidCallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"message":"登录已过期"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, nil, Options{})
	var fired int
	var gotStatus int
	client.OnSessionInvalid(func(status int) {
		fired++
		gotStatus = status
	})

	err := client.doRequest(context.Background(), http.MethodGet, "/me", nil, nil)
	if err == nil {
		t.Fatal("401 应返回错误")
	}
	if fired != 1 {
		t.Errorf("会话失效回调触发 %d 次, 期望 1 次", fired)
	}
	if gotStatus != http.StatusUnauthorized {
		t.Errorf("回调状态码 = %d", gotStatus)
	}
}

// 登录请求的 401 由登录界面自行渲染，不触发会话失效回调
func TestLoginExemptFromSessionInvalid(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"message":"用户名或密码错误"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, nil, Options{})
	var fired int
	client.OnSessionInvalid(func(status int) { fired++ })

	_, err := client.Login(context.Background(), Credentials{Username: "alice", Password: "wrong"})
	if err == nil {
		t.Fatal("登录失败应返回错误")
	}
	if fired != 0 {
		t.Errorf("登录请求不应触发会话失效回调, 触发了 %d 次", fired)
	}
}

func TestIsDeviceConflict(t *testing.T) {
	conflict := &APIError{Status: http.StatusForbidden, Code: CodeDeviceConflict, Message: "已在其他设备登录"}
	if !IsDeviceConflict(conflict) {
		t.Error("403 + DEVICE_CONFLICT 应判定为设备冲突")
	}
	if IsDeviceConflict(&APIError{Status: http.StatusForbidden, Message: "无权限"}) {
		t.Error("无错误码的 403 不应判定为设备冲突")
	}
	if IsDeviceConflict(&APIError{Status: http.StatusUnauthorized, Code: CodeDeviceConflict}) {
		t.Error("401 不应判定为设备冲突")
	}
}

// 网络层错误触发有界重试，HTTP/业务错误不重试
func TestGetRetriesTransportErrorsOnly(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n <= 2 {
			// 直接掐断连接，客户端表现为网络层错误
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("测试服务器不支持 Hijack")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Error(err)
				return
			}
			conn.Close()
			return
		}
		w.Write([]byte(`{"success":true,"data":{"balance":1}}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, nil, Options{RetryCount: 3, RetryDelay: time.Millisecond})
	if _, err := client.GetBalance(context.Background()); err != nil {
		t.Fatalf("重试后应成功: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Errorf("请求次数 = %d, 期望 3", got)
	}

	// 业务错误不重试
	atomic.StoreInt32(&hits, 0)
	ts2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"message":"服务器错误"}`))
	}))
	defer ts2.Close()

	client2 := NewClient(ts2.URL, nil, Options{RetryCount: 3, RetryDelay: time.Millisecond})
	if _, err := client2.GetBalance(context.Background()); err == nil {
		t.Fatal("HTTP 错误应返回错误")
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("HTTP 错误不应重试, 请求次数 = %d", got)
	}
}

func TestAuthResultRequiresTokenAndUser(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"token":"tok-1"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, nil, Options{})
	if _, err := client.Login(context.Background(), Credentials{Username: "a", Password: "b"}); err == nil {
		t.Fatal("缺少 user 字段的登录响应应报错")
	}
}

// 业务拒绝按"密码不正确"处理，服务端故障必须报错而不是当成密码错误
func TestVerifyPayPasswordStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    bool
		wantErr bool
	}{
		{"密码正确", http.StatusOK, `{"success":true}`, true, false},
		{"密码错误 400", http.StatusBadRequest, `{"success":false,"message":"支付密码错误"}`, false, false},
		{"密码错误 200", http.StatusOK, `{"success":false,"message":"支付密码错误"}`, false, false},
		{"服务端故障", http.StatusInternalServerError, `{"success":false,"message":"内部错误"}`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			client := NewClient(ts.URL, nil, Options{})
			ok, err := client.VerifyPayPassword(context.Background(), "123456")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if ok != tt.want {
				t.Errorf("ok = %v, 期望 %v", ok, tt.want)
			}
		})
	}
}

// 找回登录密码与登录一样豁免会话失效回调
func TestForgotPasswordExemptFromSessionInvalid(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"message":"邮箱未注册"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, nil, Options{})
	var fired int
	client.OnSessionInvalid(func(status int) { fired++ })

	if _, err := client.ForgotPassword(context.Background(), "a@b.com"); err == nil {
		t.Fatal("邮箱未注册应返回错误")
	}
	if fired != 0 {
		t.Errorf("找回密码不应触发会话失效回调, 触发了 %d 次", fired)
	}
}

func TestLoginNormalizesUser(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"token":"tok-1","user":{"id":"legacy-9","username":"bob"}}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, nil, Options{})
	result, err := client.Login(context.Background(), Credentials{Username: "bob", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	if result.User.ID != "legacy-9" {
		t.Errorf("规范化后 ID = %q, 期望 legacy-9", result.User.ID)
	}
}
