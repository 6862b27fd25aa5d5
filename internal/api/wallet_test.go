package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// loginFirst 通过假上游把路由置为已登录状态
func loginFirst(t *testing.T, router *Router) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"alice","password":"pw"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("登录失败: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRechargeForwardsMultipart(t *testing.T) {
	router := newTestRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			w.Write([]byte(`{"success":true,"token":"token-abcdef0123456789","user":{"_id":"u1","username":"alice"}}`))
		case "/customer-service/unread-count":
			w.Write([]byte(`{"success":true,"data":{"unreadCount":0}}`))
		case "/recharge":
			if err := r.ParseMultipartForm(10 << 20); err != nil {
				t.Errorf("上游应收到 multipart: %v", err)
			}
			if got := r.FormValue("pathId"); got != "path-1" {
				t.Errorf("pathId = %q", got)
			}
			if got := r.FormValue("amount"); got != "100.00" {
				t.Errorf("amount = %q", got)
			}
			file, header, err := r.FormFile("proof")
			if err != nil {
				t.Errorf("缺少凭证文件: %v", err)
			} else {
				defer file.Close()
				content, _ := io.ReadAll(file)
				if header.Filename != "proof.png" || string(content) != "png-bytes" {
					t.Errorf("凭证 = %q %q", header.Filename, content)
				}
			}
			w.Write([]byte(`{"success":true,"data":{"message":"已提交审核"}}`))
		default:
			t.Errorf("未预期的上游请求: %s %s", r.Method, r.URL.Path)
		}
	}))

	loginFirst(t, router)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("pathId", "path-1")
	mw.WriteField("amount", "100")
	part, _ := mw.CreateFormFile("proof", "proof.png")
	part.Write([]byte("png-bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/wallet/recharge", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("充值状态码 = %d: %s", rec.Code, rec.Body.String())
	}
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Message != "已提交审核" {
		t.Errorf("响应 = %+v", resp)
	}
}

func TestRechargeValidatesForm(t *testing.T) {
	router := newTestRouter(t, upstreamStub(t))
	loginFirst(t, router)

	tests := []struct {
		name   string
		pathID string
		amount string
	}{
		{"缺通道", "", "100"},
		{"金额非法", "path-1", "abc"},
		{"金额为零", "path-1", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			if tt.pathID != "" {
				mw.WriteField("pathId", tt.pathID)
			}
			mw.WriteField("amount", tt.amount)
			mw.Close()

			req := httptest.NewRequest(http.MethodPost, "/api/wallet/recharge", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("状态码 = %d, 期望 400", rec.Code)
			}
		})
	}
}

func TestWithdrawValidatesAmount(t *testing.T) {
	router := newTestRouter(t, upstreamStub(t))
	loginFirst(t, router)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"amount":0,"account":"622200001111"}`)
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/wallet/withdraw", body))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("状态码 = %d, 期望 400", rec.Code)
	}
}
