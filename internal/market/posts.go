package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"InfoDash/internal/models"
)

// PostList 分页的帖子列表
type PostList struct {
	List  []models.Post `json:"list"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// GetPosts 分页获取帖子列表
func (c *Client) GetPosts(ctx context.Context, page, limit int) (*PostList, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	var list PostList
	if err := c.getJSON(ctx, "/info/list", query, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetPostDetails 获取帖子详情；已购买时 content 含完整信息
func (c *Client) GetPostDetails(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := c.getJSON(ctx, "/info/"+url.PathEscape(id), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// GetMyPosts 获取当前用户发布的帖子
func (c *Client) GetMyPosts(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := c.getJSON(ctx, "/info/my", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// SearchPosts 搜索帖子
func (c *Client) SearchPosts(ctx context.Context, q string) ([]models.Post, error) {
	query := url.Values{}
	query.Set("query", q)

	var posts []models.Post
	if err := c.getJSON(ctx, "/info/search", query, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// PurchaseInfo 购买帖子解锁完整内容，返回服务端提示语
func (c *Client) PurchaseInfo(ctx context.Context, id, paymentPassword string) (string, error) {
	body := map[string]string{"paymentPassword": paymentPassword}
	env, err := c.send(ctx, http.MethodPost, fmt.Sprintf("/info/%s/purchase", url.PathEscape(id)), body, nil, false)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// GetPurchasedInfos 获取已购买的帖子列表
func (c *Client) GetPurchasedInfos(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := c.getJSON(ctx, "/info/purchased", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// UploadImage 上传图片（聊天图片等），返回服务端存储路径
func (c *Client) UploadImage(ctx context.Context, name string, file io.Reader) (string, error) {
	var data struct {
		URL string `json:"url"`
	}
	if err := c.doMultipart(ctx, "/info/upload/image", nil, "file", name, file, &data); err != nil {
		return "", err
	}
	return data.URL, nil
}
