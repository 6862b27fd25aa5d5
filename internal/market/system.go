package market

import (
	"context"

	"InfoDash/internal/models"
)

// GetSystemNotifications 获取系统公告列表
func (c *Client) GetSystemNotifications(ctx context.Context) ([]models.Notification, error) {
	var list []models.Notification
	if err := c.getJSON(ctx, "/notifications/list", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetAds 获取首页广告位
func (c *Client) GetAds(ctx context.Context) ([]models.Ad, error) {
	var ads []models.Ad
	if err := c.getJSON(ctx, "/system/ads", nil, &ads); err != nil {
		return nil, err
	}
	return ads, nil
}
