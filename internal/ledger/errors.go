package ledger

import (
	"errors"
	"fmt"
)

// Reason 失败分类，随错误一路携带到边界层
type Reason string

const (
	ReasonInvalidAmount      Reason = "INVALID_AMOUNT"      // 金额非正 / 低于下限 / 高于上限
	ReasonInsufficientFunds  Reason = "INSUFFICIENT_FUNDS"  // 余额或外部资金不足
	ReasonLimitExceeded      Reason = "LIMIT_EXCEEDED"      // 每日取款限额或余额上限
	ReasonInvalidRecipient   Reason = "INVALID_RECIPIENT"   // 自己转给自己
	ReasonPersistenceFailure Reason = "PERSISTENCE_FAILURE" // 落盘失败（内存变更已回滚）
	ReasonNotFound           Reason = "NOT_FOUND"           // 仅非创建型查询会返回
)

// Error 账本操作的类型化失败结果
// 校验类失败保证发生在任何状态变更之前；持久化失败保证内存已回滚
type Error struct {
	Reason  Reason
	OwnerID string
	Amount  int64
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (owner=%s amount=%d): %v", e.Reason, e.Message, e.OwnerID, e.Amount, e.Err)
	}
	return fmt.Sprintf("%s: %s (owner=%s amount=%d)", e.Reason, e.Message, e.OwnerID, e.Amount)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(reason Reason, ownerID string, amount int64, message string) *Error {
	return &Error{Reason: reason, OwnerID: ownerID, Amount: amount, Message: message}
}

func wrapError(reason Reason, ownerID string, amount int64, message string, err error) *Error {
	return &Error{Reason: reason, OwnerID: ownerID, Amount: amount, Message: message, Err: err}
}

// ReasonOf 提取错误的失败分类；非账本错误返回空串
func ReasonOf(err error) Reason {
	var le *Error
	if errors.As(err, &le) {
		return le.Reason
	}
	return ""
}
