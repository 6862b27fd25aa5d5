package market

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"InfoDash/internal/models"
)

// GetBalance 查询钱包余额
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	var data struct {
		Balance float64 `json:"balance"`
	}
	if err := c.getJSON(ctx, "/transactions/balance", nil, &data); err != nil {
		return 0, err
	}
	return data.Balance, nil
}

// GetWalletTransactions 获取钱包流水（不分页，服务端按时间倒序返回）
func (c *Client) GetWalletTransactions(ctx context.Context) ([]models.Transaction, error) {
	var txs []models.Transaction
	if err := c.getJSON(ctx, "/wallet/transactions", nil, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// WithdrawRequest 提现申请
type WithdrawRequest struct {
	Amount          float64 `json:"amount"`
	Account         string  `json:"account"`
	PaymentPassword string  `json:"paymentPassword"`
	Remark          string  `json:"remark,omitempty"`
}

// CreateWithdraw 提交提现申请，返回服务端提示语
func (c *Client) CreateWithdraw(ctx context.Context, req WithdrawRequest) (string, error) {
	env, err := c.send(ctx, http.MethodPost, "/wallet/withdraw", req, nil, false)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// GetRechargePaths 获取可用充值通道
func (c *Client) GetRechargePaths(ctx context.Context) ([]models.RechargePath, error) {
	var paths []models.RechargePath
	if err := c.getJSON(ctx, "/recharge-paths/paths", nil, &paths); err != nil {
		return nil, err
	}
	return paths, nil
}

// SubmitRecharge 提交充值订单（转账凭证走 multipart，上传超时更长）
func (c *Client) SubmitRecharge(ctx context.Context, pathID string, amount float64, proofName string, proof io.Reader) (string, error) {
	fields := map[string]string{
		"pathId": pathID,
		"amount": fmt.Sprintf("%.2f", amount),
	}

	var data struct {
		Message string `json:"message"`
	}
	if err := c.doMultipart(ctx, "/recharge", fields, "proof", proofName, proof, &data); err != nil {
		return "", err
	}
	return data.Message, nil
}
