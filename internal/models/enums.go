package models

// Role 用户角色枚举
type Role string

const (
	RoleUser  Role = "user"
	RoleVIP   Role = "vip"
	RoleAdmin Role = "admin"
)

// TransactionType 流水类型枚举
type TransactionType string

const (
	TransactionTypeRecharge   TransactionType = "recharge"
	TransactionTypeWithdraw   TransactionType = "withdraw"
	TransactionTypePurchase   TransactionType = "purchase"
	TransactionTypeRepay      TransactionType = "repay"
	TransactionTypeCommission TransactionType = "referral_commission"
)

// TransactionStatus 流水状态枚举
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusApproved  TransactionStatus = "approved"
	TransactionStatusRejected  TransactionStatus = "rejected"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// SenderType 客服消息发送方枚举
type SenderType string

const (
	SenderTypeUser  SenderType = "user"
	SenderTypeAdmin SenderType = "admin"
)

// MessageType 客服消息类型枚举
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
)
