package handler

import (
	"coinledger/internal/ledger"
	"coinledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler 统一处理器，所有请求最终都落到账本的公开操作上
// 参数解析与路由属于边界层职责，账本核心不感知 HTTP
type Handler struct {
	ledger *ledger.Ledger
}

// NewHandler 创建处理器实例
func NewHandler(l *ledger.Ledger) *Handler {
	return &Handler{ledger: l}
}

// reasonCode 失败分类到业务错误码的映射
func reasonCode(reason ledger.Reason) int {
	switch reason {
	case ledger.ReasonInvalidAmount:
		return response.CodeInvalidAmount
	case ledger.ReasonInsufficientFunds:
		return response.CodeInsufficientFunds
	case ledger.ReasonLimitExceeded:
		return response.CodeLimitExceeded
	case ledger.ReasonInvalidRecipient:
		return response.CodeInvalidRecipient
	case ledger.ReasonPersistenceFailure:
		return response.CodePersistenceFailure
	case ledger.ReasonNotFound:
		return response.CodeAccountNotFound
	default:
		return response.CodeServerError
	}
}

// fail 把账本错误转换为统一响应
func fail(c *gin.Context, err error) {
	if reason := ledger.ReasonOf(err); reason != "" {
		response.BusinessError(c, reasonCode(reason), err.Error())
		return
	}
	response.ServerError(c, err.Error())
}

// ============================================================
// 账户查询接口
// ============================================================

// GetBalance 查询余额
// GET /api/v1/account/balance?owner_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		response.ParamError(c, "owner_id 参数不能为空")
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), ownerID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"owner_id": ownerID,
		"balance":  balance,
	})
}

// GetHistory 查询交易历史（非创建型：账户不存在返回错误而不是开户）
// GET /api/v1/account/history?owner_id=xxx
func (h *Handler) GetHistory(c *gin.Context) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		response.ParamError(c, "owner_id 参数不能为空")
		return
	}

	history, err := h.ledger.History(c.Request.Context(), ownerID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"owner_id": ownerID,
		"history":  history,
		"count":    len(history),
	})
}

// GetDailyLimit 查询当日剩余可取额度（-1 表示不限额）
// GET /api/v1/account/daily-limit?owner_id=xxx
func (h *Handler) GetDailyLimit(c *gin.Context) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		response.ParamError(c, "owner_id 参数不能为空")
		return
	}

	remaining, err := h.ledger.RemainingDailyWithdrawal(c.Request.Context(), ownerID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"owner_id":  ownerID,
		"remaining": remaining,
	})
}

// ============================================================
// 账户变更接口
// ============================================================

// DepositRequest 存款请求
// Currency 是来源货币类别，留空表示调用方不区分
type DepositRequest struct {
	OwnerID   string `json:"owner_id" binding:"required"`
	OwnerName string `json:"owner_name"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	Currency  string `json:"currency"`
}

// Deposit 存款
// POST /api/v1/account/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if req.Currency != "" {
		if p := h.ledger.Policy(); !p.IsAcceptedCurrency(req.Currency) {
			response.ParamError(c, "不支持的货币类别: "+req.Currency)
			return
		}
	}

	result, err := h.ledger.Deposit(c.Request.Context(), req.OwnerID, req.OwnerName, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, result)
}

// WithdrawRequest 取款请求
type WithdrawRequest struct {
	OwnerID   string `json:"owner_id" binding:"required"`
	OwnerName string `json:"owner_name"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
}

// Withdraw 取款
// POST /api/v1/account/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.ledger.Withdraw(c.Request.Context(), req.OwnerID, req.OwnerName, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, result)
}

// TransferRequest 转账请求
type TransferRequest struct {
	FromOwnerID   string `json:"from_owner_id" binding:"required"`
	FromOwnerName string `json:"from_owner_name"`
	ToOwnerID     string `json:"to_owner_id" binding:"required"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
}

// Transfer 转账
// POST /api/v1/transfer/execute
//
// 【关键点】转账是系统里唯一触碰两个账户的复合操作：
// 1. 校验全部先于变更，失败时无任何副作用
// 2. 发送方先落盘，收款方才入账；收款方落盘失败则回滚发送方
// 3. 收款方不存在时自动开户后入账
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.ledger.Transfer(c.Request.Context(),
		req.FromOwnerID, req.FromOwnerName, req.ToOwnerID, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 管理接口
// ============================================================

// SaveAll 全量刷盘
// POST /api/v1/admin/save-all
func (h *Handler) SaveAll(c *gin.Context) {
	saved, err := h.ledger.SaveAll(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"saved": saved})
}

// ClearCache 刷盘后清空账户缓存
// POST /api/v1/admin/cache/clear
func (h *Handler) ClearCache(c *gin.Context) {
	if err := h.ledger.ClearCache(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "缓存已清空"})
}
