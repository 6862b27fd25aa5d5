package models

import (
	"time"
)

// UserSummary 当前登录用户信息
// 后端历史版本对用户 ID 的键名不统一（id / _id），
// Normalize 之后内部一律以 ID(_id) 为准
type UserSummary struct {
	ID         string `json:"_id,omitempty"`
	LegacyID   string `json:"id,omitempty"`
	Username   string `json:"username"`
	Role       Role   `json:"role"`
	InviteCode string `json:"inviteCode,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
}

// Normalize 保证规范 ID 字段有值，无论服务端用哪个键返回
func (u *UserSummary) Normalize() {
	if u == nil {
		return
	}
	if u.ID == "" && u.LegacyID != "" {
		u.ID = u.LegacyID
	}
	if u.LegacyID == "" && u.ID != "" {
		u.LegacyID = u.ID
	}
}

// IsAdmin 是否管理员
func (u *UserSummary) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Post 付费信息帖子
// 未购买时仅封面图与摘要字段可见，购买后 Content 含完整的 key: value 文本
type Post struct {
	ID              string     `json:"_id"`
	Title           string     `json:"title"`
	LoanAmount      float64    `json:"loanAmount"`
	Period          int        `json:"period"`
	RepaymentAmount float64    `json:"repaymentAmount"`
	ImageURLs       []string   `json:"imageUrls"`
	Content         string     `json:"content,omitempty"`
	IsPurchased     bool       `json:"isPurchased"`
	PurchaseTime    *time.Time `json:"purchaseTime,omitempty"`
	ExpiryTime      *time.Time `json:"expiryTime,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Transaction 钱包流水
type Transaction struct {
	ID            string            `json:"_id"`
	Type          TransactionType   `json:"type"`
	Amount        float64           `json:"amount"`
	Status        TransactionStatus `json:"status"`
	BalanceBefore float64           `json:"balanceBefore"`
	BalanceAfter  float64           `json:"balanceAfter"`
	PaymentMethod string            `json:"paymentMethod,omitempty"`
	Remark        string            `json:"remark,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// CSMessage 客服消息
// TempID / Pending / SendFailed 仅本地使用：图片消息先以占位形式插入，
// 服务端回包后替换或标记失败
type CSMessage struct {
	ID          string      `json:"_id,omitempty"`
	TempID      string      `json:"tempId,omitempty"`
	SenderType  SenderType  `json:"senderType"`
	SenderID    string      `json:"senderId,omitempty"`
	MessageType MessageType `json:"messageType"`
	Content     string      `json:"content"`
	ImageURL    string      `json:"imageUrl,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	IsRead      bool        `json:"isRead"`
	IsOwn       bool        `json:"isOwn"`
	Pending     bool        `json:"pending,omitempty"`
	SendFailed  bool        `json:"sendFailed,omitempty"`
}

// Notification 系统公告
type Notification struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ad 首页广告位
type Ad struct {
	ID       string `json:"_id"`
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
	Path     string `json:"path,omitempty"`
}

// RechargePath 充值通道（收款账户 + 二维码）
type RechargePath struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	Account   string `json:"account,omitempty"`
	QRCodeURL string `json:"qrCodeUrl,omitempty"`
	Remark    string `json:"remark,omitempty"`
	Enabled   bool   `json:"enabled"`
}

// InvitedUser 通过邀请码注册的下级用户
type InvitedUser struct {
	ID         string    `json:"_id"`
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"createdAt"`
	Commission float64   `json:"commission,omitempty"`
}
