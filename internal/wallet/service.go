package wallet

import (
	"context"
	"io"

	log "InfoDash/internal/log"
	"InfoDash/internal/market"
	"InfoDash/internal/models"
)

// Service 钱包：余额、流水、提现与充值
type Service struct {
	api *market.Client
}

// NewService 创建钱包服务
func NewService(api *market.Client) *Service {
	return &Service{api: api}
}

// Balance 查询余额
func (s *Service) Balance(ctx context.Context) (float64, error) {
	return s.api.GetBalance(ctx)
}

// Transactions 交易流水
func (s *Service) Transactions(ctx context.Context) ([]models.Transaction, error) {
	return s.api.GetWalletTransactions(ctx)
}

// Withdraw 发起提现申请，返回服务端提示语
func (s *Service) Withdraw(ctx context.Context, req market.WithdrawRequest) (string, error) {
	msg, err := s.api.CreateWithdraw(ctx, req)
	if err != nil {
		return "", err
	}
	log.Infof("提现申请已提交 amount=%.2f", req.Amount)
	return msg, nil
}

// RechargePaths 可用充值通道
func (s *Service) RechargePaths(ctx context.Context) ([]models.RechargePath, error) {
	return s.api.GetRechargePaths(ctx)
}

// SubmitRecharge 提交充值订单（通道 + 金额 + 转账凭证截图）
func (s *Service) SubmitRecharge(ctx context.Context, pathID string, amount float64, proofName string, proof io.Reader) (string, error) {
	msg, err := s.api.SubmitRecharge(ctx, pathID, amount, proofName, proof)
	if err != nil {
		return "", err
	}
	log.Infof("充值凭证已提交 pathId=%s amount=%.2f", pathID, amount)
	return msg, nil
}
