package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"InfoDash/internal/market"
	"InfoDash/internal/wallet"
)

// 充值凭证上传大小上限
const maxProofSize = 10 << 20

// WalletHandler 钱包相关的处理器
type WalletHandler struct {
	wallets *wallet.Service
}

// NewWalletHandler 创建钱包处理器实例
func NewWalletHandler(wallets *wallet.Service) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

// HandleBalance 查询余额
func (h *WalletHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.wallets.Balance(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeData(w, map[string]float64{"balance": balance})
}

// HandleTransactions 交易流水
func (h *WalletHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.wallets.Transactions(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeData(w, txs)
}

// HandleWithdraw 发起提现申请
func (h *WalletHandler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req market.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效请求体")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "提现金额必须大于0")
		return
	}
	if req.Account == "" {
		writeError(w, http.StatusBadRequest, "收款账户不能为空")
		return
	}

	msg, err := h.wallets.Withdraw(r.Context(), req)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if msg == "" {
		msg = "提现申请已提交"
	}
	writeMessage(w, msg)
}

// HandleRechargePaths 可用充值通道
func (h *WalletHandler) HandleRechargePaths(w http.ResponseWriter, r *http.Request) {
	paths, err := h.wallets.RechargePaths(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeData(w, paths)
}

// HandleRecharge 提交充值订单（multipart：通道 + 金额 + 转账凭证截图）
func (h *WalletHandler) HandleRecharge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxProofSize); err != nil {
		writeError(w, http.StatusBadRequest, "无效的表单数据")
		return
	}

	pathID := r.FormValue("pathId")
	if pathID == "" {
		writeError(w, http.StatusBadRequest, "请选择充值通道")
		return
	}
	amount, err := strconv.ParseFloat(r.FormValue("amount"), 64)
	if err != nil || amount <= 0 {
		writeError(w, http.StatusBadRequest, "充值金额必须大于0")
		return
	}

	proof, header, err := r.FormFile("proof")
	if err != nil {
		writeError(w, http.StatusBadRequest, "请上传转账凭证")
		return
	}
	defer proof.Close()

	msg, err := h.wallets.SubmitRecharge(r.Context(), pathID, amount, header.Filename, proof)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if msg == "" {
		msg = "充值凭证已提交，请等待审核"
	}
	writeMessage(w, msg)
}
