package market

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"InfoDash/internal/models"
)

// GetMessages 获取与客服的历史消息
func (c *Client) GetMessages(ctx context.Context, userID string) ([]models.CSMessage, error) {
	var msgs []models.CSMessage
	if err := c.getJSON(ctx, "/customer-service/messages/"+url.PathEscape(userID), nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessageRequest 发送消息请求；文本消息只填 Content，
// 图片消息 MessageType=image 且 ImageURL 为已上传的存储路径
type SendMessageRequest struct {
	MessageType models.MessageType `json:"messageType,omitempty"`
	Content     string             `json:"content"`
	ImageURL    string             `json:"imageUrl,omitempty"`
}

// SendMessage 发送客服消息，返回服务端落库后的消息
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*models.CSMessage, error) {
	var msg models.CSMessage
	if err := c.doRequest(ctx, http.MethodPost, "/customer-service/messages", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkMessageAsRead 单条标记已读
func (c *Client) MarkMessageAsRead(ctx context.Context, messageID string) error {
	return c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/customer-service/messages/%s/read", url.PathEscape(messageID)), struct{}{}, nil)
}

// MarkAllMessagesAsRead 批量标记全部已读
func (c *Client) MarkAllMessagesAsRead(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodPut, "/customer-service/messages/read-all", struct{}{}, nil)
}

// GetUnreadCount 查询未读客服消息数
func (c *Client) GetUnreadCount(ctx context.Context) (int, error) {
	var data struct {
		UnreadCount int `json:"unreadCount"`
	}
	if err := c.getJSON(ctx, "/customer-service/unread-count", nil, &data); err != nil {
		return 0, err
	}
	return data.UnreadCount, nil
}
