package market

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "InfoDash/internal/log"

	"gopkg.in/cenkalti/backoff.v1"
)

// TokenSource 每次请求时实时读取令牌，保证与本地持久化状态一致
type TokenSource interface {
	Token() string
}

// APIError 上游业务/HTTP 错误
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("行情 API 错误(%d/%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("行情 API 错误(%d): %s", e.Status, e.Message)
}

// Client 封装与行情 API 的交互
// 统一注入 Bearer 令牌、剥掉一层 {success, data, message} 响应包装，
// 并在非登录请求遇到 401/403/429 时触发会话失效回调（由会话层决定如何处理，
// 传输层本身不做页面跳转）
type Client struct {
	baseURL      string
	httpClient   *http.Client
	uploadClient *http.Client
	tokens       TokenSource

	retryCount int
	retryDelay time.Duration

	onSessionInvalid func(status int)
}

// Options 客户端可调参数
type Options struct {
	Timeout       time.Duration
	UploadTimeout time.Duration
	RetryCount    int
	RetryDelay    time.Duration
}

// NewClient 新建客户端；tokens 为空时所有请求不带认证头
func NewClient(baseURL string, tokens TokenSource, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 60 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}

	// 复制默认 Transport 并禁用证书校验，以兼容自签名部署
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if tr.TLSClientConfig == nil {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	} else {
		tr.TLSClientConfig.InsecureSkipVerify = true
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: opts.Timeout, Transport: tr},
		uploadClient: &http.Client{Timeout: opts.UploadTimeout, Transport: tr},
		tokens:       tokens,
		retryCount:   opts.RetryCount,
		retryDelay:   opts.RetryDelay,
	}
}

// OnSessionInvalid 注册会话失效回调
func (c *Client) OnSessionInvalid(fn func(status int)) {
	c.onSessionInvalid = fn
}

// envelope 上游统一响应包装
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`

	// 登录/注册响应在顶层直接携带 token 与 user
	Token string          `json:"token,omitempty"`
	User  json.RawMessage `json:"user,omitempty"`
}

// doRequest 发送 JSON 请求并解析响应，dest 为 data 字段的解码目标
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, dest interface{}) error {
	_, err := c.send(ctx, method, path, body, dest, false)
	return err
}

// getJSON 幂等 GET，传输层失败时按配置做有界退避重试
// （重试只针对网络层错误；业务错误与 HTTP 错误不重试）
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dest interface{}) error {
	if len(query) > 0 {
		path = path + "?" + query.Encode()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay

	var err error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			d := b.NextBackOff()
			if d == backoff.Stop {
				break
			}
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
			log.Warnf("GET %s 第 %d 次重试", path, attempt)
		}

		_, err = c.send(ctx, http.MethodGet, path, nil, dest, false)
		if err == nil || !isTransportError(err) {
			return err
		}
	}
	return err
}

// isTransportError 未收到响应的网络层错误才允许重试
func isTransportError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// send 构建并发送请求，返回完整响应包装
// isLogin 请求豁免会话失效回调，让登录界面自行渲染错误
func (c *Client) send(ctx context.Context, method, path string, body interface{}, dest interface{}, isLogin bool) (*envelope, error) {
	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewBuffer(data)
	} else {
		buf = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		log.Errorf("构建请求失败: %v", err)
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	return c.execute(req, c.httpClient, path, dest, isLogin)
}

// doMultipart 发送 multipart 表单（充值凭证、聊天图片），走上传专用超时
func (c *Client) doMultipart(ctx context.Context, path string, fields map[string]string, fileField, fileName string, file io.Reader, dest interface{}) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	if file != nil {
		part, err := w.CreateFormFile(fileField, fileName)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, file); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.authorize(req)

	_, err = c.execute(req, c.uploadClient, path, dest, false)
	return err
}

// authorize 实时读取令牌并注入认证头
func (c *Client) authorize(req *http.Request) {
	if c.tokens == nil {
		return
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// execute 执行请求、处理会话失效并剥掉响应包装
func (c *Client) execute(req *http.Request, client *http.Client, path string, dest interface{}, isLogin bool) (*envelope, error) {
	log.Debugf("[API] %s %s", req.Method, path)

	resp, err := client.Do(req)
	if err != nil {
		log.Errorf("[API] %s %s 网络错误: %v", req.Method, path, err)
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env envelope
	// 部分错误响应可能不是合法 JSON，忽略解码错误，保留状态码信息
	_ = json.Unmarshal(raw, &env)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		if !isLogin && c.onSessionInvalid != nil {
			c.onSessionInvalid(resp.StatusCode)
		}
		return &env, &APIError{Status: resp.StatusCode, Code: env.Code, Message: messageOr(env.Message, "会话无效或请求被拒绝")}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &env, &APIError{Status: resp.StatusCode, Code: env.Code, Message: messageOr(env.Message, fmt.Sprintf("请求失败: %d", resp.StatusCode))}
	}

	if !env.Success {
		return &env, &APIError{Status: resp.StatusCode, Code: env.Code, Message: messageOr(env.Message, "操作失败")}
	}

	if dest != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dest); err != nil {
			return &env, err
		}
	}
	return &env, nil
}

func messageOr(msg, def string) string {
	if msg != "" {
		return msg
	}
	return def
}
