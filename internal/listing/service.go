package listing

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	log "InfoDash/internal/log"
	"InfoDash/internal/market"
	"InfoDash/internal/models"
	"InfoDash/internal/storage"
)

// 广告插入步长：信息流中每 5 条帖子后插一条广告（仅展示层拼接）
const adStride = 5

// 默认每页条数
const defaultPageSize = 12

// 余额不足时服务端提示语中的关键字，命中则支付弹窗保持打开以便重试
const insufficientBalanceHint = "余额不足"

var listingIDPattern = regexp.MustCompile(`^[\w-]+$`)
var payPasswordPattern = regexp.MustCompile(`^\d{6}$`)

// Service 帖子列表与购买流程
type Service struct {
	api   *market.Client
	store *storage.Store
}

// NewService 创建帖子服务
func NewService(api *market.Client, store *storage.Store) *Service {
	return &Service{api: api, store: store}
}

// FeedItemType 信息流条目类型
type FeedItemType string

const (
	FeedItemPost FeedItemType = "post"
	FeedItemAd   FeedItemType = "ad"
)

// FeedItem 信息流条目，帖子或广告二选一
type FeedItem struct {
	Type FeedItemType `json:"type"`
	Post *models.Post `json:"post,omitempty"`
	Ad   *models.Ad   `json:"ad,omitempty"`
}

// FeedPage 拼接广告后的信息流分页
// Page 原样回传，前端据此同步 URL 的 page 参数
type FeedPage struct {
	Items []FeedItem `json:"items"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
	Total int        `json:"total"`
}

// Feed 获取信息流：帖子分页 + 广告按固定步长插入
// 广告获取失败只降级为无广告，不影响帖子展示
func (s *Service) Feed(ctx context.Context, page, limit int) (*FeedPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}

	list, err := s.api.GetPosts(ctx, page, limit)
	if err != nil {
		return nil, err
	}

	ads, err := s.api.GetAds(ctx)
	if err != nil {
		log.Warnf("获取广告失败，信息流降级为纯帖子: %v", err)
		ads = nil
	}

	items := interleaveAds(list.List, ads)
	return &FeedPage{Items: items, Page: page, Limit: limit, Total: list.Total}, nil
}

// interleaveAds 每 adStride 条帖子前插入一条广告，广告用完则不再插入
func interleaveAds(posts []models.Post, ads []models.Ad) []FeedItem {
	items := make([]FeedItem, 0, len(posts)+len(ads))
	adIndex := 0
	for i := range posts {
		if i > 0 && i%adStride == 0 && adIndex < len(ads) {
			items = append(items, FeedItem{Type: FeedItemAd, Ad: &ads[adIndex]})
			adIndex++
		}
		items = append(items, FeedItem{Type: FeedItemPost, Post: &posts[i]})
	}
	return items
}

// Detail 帖子详情页数据
type Detail struct {
	Post           *models.Post      `json:"post"`
	Fields         map[string]string `json:"fields,omitempty"`
	Countdown      string            `json:"countdown,omitempty"`
	PayPasswordSet bool              `json:"payPasswordSet"`
}

// Detail 获取帖子详情；已购买时解析完整内容并计算剩余时间
// 支付密码状态获取失败按未设置处理（只影响购买入口的跳转）
func (s *Service) Detail(ctx context.Context, id string) (*Detail, error) {
	post, err := s.api.GetPostDetails(ctx, id)
	if err != nil {
		return nil, err
	}

	d := &Detail{Post: post}

	if set, err := s.api.CheckPayPassword(ctx); err != nil {
		log.Warnf("获取支付密码状态失败: %v", err)
	} else {
		d.PayPasswordSet = set
	}

	if post.IsPurchased && post.Content != "" {
		d.Fields = ParseContent(post.Content)
	}
	if post.IsPurchased && post.PurchaseTime != nil {
		d.Countdown = Countdown(*post.PurchaseTime, post.Period, time.Now())
	}
	return d, nil
}

// GateAction 购买入口的处置结果
type GateAction string

const (
	// GateNone 已购买，无需再付费
	GateNone GateAction = "none"
	// GateRedirect 需要先跳转（登录 / 设置支付密码）
	GateRedirect GateAction = "redirect"
	// GatePrompt 弹出 6 位支付密码输入框
	GatePrompt GateAction = "prompt"
)

// GateResult 购买入口检查结果
type GateResult struct {
	Action     GateAction `json:"action"`
	RedirectTo string     `json:"redirectTo,omitempty"`
}

// PurchaseGate "支付查看"入口的前置检查
// 未登录 → /login；未设置支付密码 → /set-payment-password；否则弹密码框
// 任一跳转分支都不会发出购买请求
func PurchaseGate(authenticated, payPasswordSet, purchased bool) GateResult {
	if !authenticated {
		return GateResult{Action: GateRedirect, RedirectTo: "/login"}
	}
	if purchased {
		return GateResult{Action: GateNone}
	}
	if !payPasswordSet {
		return GateResult{Action: GateRedirect, RedirectTo: "/set-payment-password"}
	}
	return GateResult{Action: GatePrompt}
}

// PurchaseOutcome 购买提交结果
// KeepDialogOpen 为 true 时密码弹窗保持打开供用户重试
type PurchaseOutcome struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	KeepDialogOpen bool   `json:"keepDialogOpen,omitempty"`
	RedirectTo     string `json:"redirectTo,omitempty"`
	Context        string `json:"context,omitempty"`
}

// SubmitPurchase 提交购买
// 帖子 ID 与密码先做本地校验，不合法时不发请求；
// fromPage 非空时购买成功后回跳到来源分页
func (s *Service) SubmitPurchase(ctx context.Context, id, password, fromPage string) *PurchaseOutcome {
	if !listingIDPattern.MatchString(id) {
		return &PurchaseOutcome{Success: false, Message: "无效的帖子ID，无法购买", KeepDialogOpen: true}
	}
	if !payPasswordPattern.MatchString(password) {
		return &PurchaseOutcome{Success: false, Message: "请输入完整的6位支付密码", KeepDialogOpen: true}
	}

	// 本地已有支付密码哈希时先行校验，减少一次注定失败的往返
	if hash, err := s.store.Get(storage.KeyPayPasswordHash); err == nil && hash != "" {
		if !verifyPayPasswordHash(hash, password) {
			return &PurchaseOutcome{Success: false, Message: "支付密码错误", KeepDialogOpen: true}
		}
	}

	message, err := s.api.PurchaseInfo(ctx, id, password)
	if err != nil {
		msg := purchaseErrorMessage(err)
		log.Warnf("购买失败 id=%s err=%v", id, err)
		return &PurchaseOutcome{
			Success:        false,
			Message:        msg,
			KeepDialogOpen: strings.Contains(msg, insufficientBalanceHint),
		}
	}

	redirect := "/detail/" + id
	if fromPage != "" {
		redirect = fmt.Sprintf("/home?page=%s", fromPage)
	}

	log.Infof("购买成功 id=%s", id)
	if message == "" {
		message = "购买成功！"
	}
	return &PurchaseOutcome{
		Success:    true,
		Message:    message,
		RedirectTo: redirect,
		Context:    "payment",
	}
}

// purchaseErrorMessage 提取购买失败提示语
func purchaseErrorMessage(err error) string {
	var apiErr *market.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "购买请求失败"
}

// MyPosts 当前用户发布的帖子
func (s *Service) MyPosts(ctx context.Context) ([]models.Post, error) {
	return s.api.GetMyPosts(ctx)
}

// Purchased 已购买的帖子
func (s *Service) Purchased(ctx context.Context) ([]models.Post, error) {
	return s.api.GetPurchasedInfos(ctx)
}

// Search 搜索帖子
func (s *Service) Search(ctx context.Context, query string) ([]models.Post, error) {
	return s.api.SearchPosts(ctx, query)
}
