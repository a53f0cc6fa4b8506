package ledger

import (
	"context"
)

// CurrencyProvider 实物货币协作方
// 存款前确认调用方确实持有足额外部货币并收缴；取款落盘后负责出钞。
// 库存扫描、面额拆分等都在协作方内部，账本不关心
type CurrencyProvider interface {
	// HasSufficientValue 调用方是否持有不少于 amount 的外部货币
	HasSufficientValue(ctx context.Context, ownerID string, amount int64) (bool, error)
	// Consume 收缴 amount 的外部货币（存款路径）
	Consume(ctx context.Context, ownerID string, amount int64) error
	// Materialize 发放 amount 的外部货币（取款路径，须在落盘之后调用）
	Materialize(ctx context.Context, ownerID string, amount int64) error
}

// Notifier 通知协作方，单向投递，账本不消费返回值
type Notifier interface {
	Notify(ctx context.Context, ownerID, message string)
}

// TellerCurrency 柜面模式的货币协作方：资金真实性由外部调用方担保，
// 收缴与出钞都视为即时成功。适用于网关已完成支付渠道校验的部署形态
type TellerCurrency struct{}

func (TellerCurrency) HasSufficientValue(ctx context.Context, ownerID string, amount int64) (bool, error) {
	return true, nil
}

func (TellerCurrency) Consume(ctx context.Context, ownerID string, amount int64) error {
	return nil
}

func (TellerCurrency) Materialize(ctx context.Context, ownerID string, amount int64) error {
	return nil
}

// NopNotifier 空通知器
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, ownerID, message string) {}
