package model

import (
	"fmt"
	"strings"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeDeposit  = "deposit"  // 存款
	TransactionTypeWithdraw = "withdraw" // 取款
	TransactionTypeTransfer = "transfer" // 转账
)

// ============================================================================
// 交易状态常量
// ============================================================================

const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Transaction 一笔账本交易
//
// 【重要】交易记录设计原则：
// 1. TransactionID 全局唯一，重复即为正确性缺陷
// 2. 状态离开 pending 之后，除 Status/FailReason 外不可再修改
// 3. 转账交易才携带 TargetID/TargetName/Fee
type Transaction struct {
	TransactionID string `json:"transaction_id"`        // 流水号（全局唯一）
	OwnerID       string `json:"owner_id"`              // 发起方账户ID
	OwnerName     string `json:"owner_name"`            // 发起方名称（仅展示用）
	Amount        int64  `json:"amount"`                // 金额（恒为正数）
	Type          string `json:"type"`                  // 交易类型
	TargetID      string `json:"target_id,omitempty"`   // 转账目标账户ID
	TargetName    string `json:"target_name,omitempty"` // 转账目标名称
	Fee           int64  `json:"fee"`                   // 手续费（仅转账）
	Timestamp     int64  `json:"timestamp"`             // 创建时间（Unix 秒）
	Status        string `json:"status"`                // 交易状态
	FailReason    string `json:"fail_reason,omitempty"` // 失败原因
}

// NewTransaction 创建 pending 状态的新交易
func NewTransaction(id, ownerID, ownerName string, amount int64, txnType string, now int64) *Transaction {
	return &Transaction{
		TransactionID: id,
		OwnerID:       ownerID,
		OwnerName:     ownerName,
		Amount:        amount,
		Type:          txnType,
		Timestamp:     now,
		Status:        TransactionStatusPending,
	}
}

// SetTarget 设置转账目标
func (t *Transaction) SetTarget(targetID, targetName string) {
	t.TargetID = targetID
	t.TargetName = targetName
}

// SetFee 设置转账手续费
func (t *Transaction) SetFee(fee int64) {
	t.Fee = fee
}

// MarkCompleted 标记交易完成
func (t *Transaction) MarkCompleted() {
	t.Status = TransactionStatusCompleted
}

// MarkFailed 标记交易失败并记录原因
func (t *Transaction) MarkFailed(reason string) {
	t.Status = TransactionStatusFailed
	t.FailReason = reason
}

// Clone 返回交易的值拷贝，用于交付给异步队列，避免共享可变状态
func (t *Transaction) Clone() *Transaction {
	cp := *t
	return &cp
}

// Summary 生成审计日志用的单行摘要
func (t *Transaction) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s(%s) 金额=%d", strings.ToUpper(t.Type), t.OwnerName, t.OwnerID, t.Amount)
	if t.Type == TransactionTypeTransfer {
		fmt.Fprintf(&b, " -> %s(%s)", t.TargetName, t.TargetID)
		if t.Fee > 0 {
			fmt.Fprintf(&b, " 手续费=%d", t.Fee)
		}
	}
	fmt.Fprintf(&b, " 状态=%s", t.Status)
	if t.FailReason != "" {
		fmt.Fprintf(&b, "(%s)", t.FailReason)
	}
	return b.String()
}
